package workflow

import (
	"context"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// runFraudDetection analyzes a single transaction. When the assessment
// demands an automatic block, the gate and the user alert run as isolated
// side effects; either failing leaves the assessment intact.
func (e *Engine) runFraudDetection(ctx context.Context, exec *domain.WorkflowExecution, input any) (any, error) {
	in := input.(*domain.FraudInput)
	obs := in.Observation

	analyzeCtx, cancel := e.collabCtx(ctx)
	assessment, err := e.analyzer.AnalyzeTransaction(analyzeCtx, obs, nil)
	cancel()
	if err != nil {
		return nil, &domain.CollaboratorError{Step: "analyze", Err: err}
	}

	if assessment.AutoBlock {
		alert := &domain.Alert{
			ID:            assessment.AlertID,
			AssessmentID:  assessment.AnalysisID,
			TransactionID: obs.ID,
			UserID:        obs.UserID,
			Type:          assessment.AlertType,
			Severity:      assessment.Severity,
			Score:         assessment.CompositeScore,
			Explanation:   assessment.Explanation,
			CreatedAt:     assessment.AnalyzedAt,
		}

		e.fanOut(ctx, exec.ID, []branch{
			{
				name: "block_transaction",
				fn: func(stepCtx context.Context) error {
					return e.collab.Gate.BlockTransaction(stepCtx, obs.ID)
				},
			},
			{
				name: "fraud_alert",
				fn: func(stepCtx context.Context) error {
					return e.collab.Notifier.SendFraudAlert(stepCtx, obs.UserID, alert)
				},
			},
		})
	}

	e.logger.Info("fraud detection finished",
		"workflow_id", exec.ID,
		"transaction_id", obs.ID,
		"severity", assessment.Severity,
		"score", assessment.CompositeScore,
		"auto_block", assessment.AutoBlock)

	return assessment, nil
}
