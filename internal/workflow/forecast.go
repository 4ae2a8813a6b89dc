package workflow

import (
	"context"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// runCashflowForecast generates a projection and fans out publication.
func (e *Engine) runCashflowForecast(ctx context.Context, exec *domain.WorkflowExecution, input any) (any, error) {
	in := input.(*domain.ForecastInput)

	genCtx, cancel := e.collabCtx(ctx)
	forecast, err := e.collab.Forecaster.GenerateForecast(genCtx, in.UserID)
	cancel()
	if err != nil {
		return nil, &domain.CollaboratorError{Step: "generate_forecast", Err: err}
	}

	branches := []branch{
		{
			name: "publish_dashboard",
			fn: func(stepCtx context.Context) error {
				return e.collab.Dashboard.PublishForecast(stepCtx, in.UserID, forecast)
			},
		},
	}

	if in.SendReport {
		branches = append(branches, branch{
			name: "send_report",
			fn: func(stepCtx context.Context) error {
				return e.collab.Notifier.SendForecastReport(stepCtx, in.UserID, forecast)
			},
		})
	}

	e.fanOut(ctx, exec.ID, branches)

	e.logger.Info("forecast generated",
		"workflow_id", exec.ID,
		"user_id", in.UserID,
		"horizon_days", forecast.HorizonDays)

	return forecast, nil
}
