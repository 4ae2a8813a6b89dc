package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// runExpenseProcessing classifies a receipt, conditionally runs fraud
// analysis for material amounts, and branches between auto-approval and
// manual review. An approved expense schedules a detached forecast refresh.
func (e *Engine) runExpenseProcessing(ctx context.Context, exec *domain.WorkflowExecution, input any) (any, error) {
	in := input.(*domain.ExpenseInput)

	classifyCtx, cancel := e.collabCtx(ctx)
	record, err := e.collab.Classifier.ClassifyReceipt(classifyCtx, domain.ReceiptInput{
		UserID:   in.UserID,
		Filename: in.Filename,
		Content:  in.Content,
	})
	cancel()
	if err != nil {
		return nil, &domain.CollaboratorError{Step: "classify", Err: err}
	}

	result := &domain.ExpenseResult{Expense: record}

	// Fraud analysis only for material amounts.
	if record.Amount > e.cfg.MaterialityThreshold {
		obs := &domain.TransactionObservation{
			ID:        uuid.New().String(),
			UserID:    record.UserID,
			Amount:    record.Amount,
			Currency:  record.Currency,
			Merchant:  record.Merchant,
			Category:  record.Category,
			Timestamp: record.Date,
		}

		analyzeCtx, cancel := e.collabCtx(ctx)
		assessment, err := e.analyzer.AnalyzeTransaction(analyzeCtx, obs, nil)
		cancel()
		if err != nil {
			return nil, &domain.CollaboratorError{Step: "fraud_analysis", Err: err}
		}
		result.Fraud = assessment
	}

	switch {
	case record.Confidence < e.cfg.ReviewConfidence:
		result.Status = domain.ExpensePendingReview
		result.ReviewReason = fmt.Sprintf("classification confidence %.2f below threshold %.2f",
			record.Confidence, e.cfg.ReviewConfidence)

	case result.Fraud != nil && result.Fraud.Severity.AtLeast(domain.SeverityMedium):
		result.Status = domain.ExpensePendingReview
		result.ReviewReason = fmt.Sprintf("fraud risk %s (score %.1f)",
			result.Fraud.Severity, result.Fraud.CompositeScore)

	default:
		result.Status = domain.ExpenseApproved

		// Fire-and-forget: the caller does not wait and a refresh
		// failure never fails the workflow.
		userID, expense := record.UserID, record
		e.supervisor.Go("forecast_refresh", func(taskCtx context.Context) error {
			refreshCtx, cancel := context.WithTimeout(taskCtx, e.cfg.CollaboratorTimeout)
			defer cancel()
			return e.collab.Forecaster.RefreshForecast(refreshCtx, userID, expense)
		})
	}

	e.logger.Info("expense processed",
		"workflow_id", exec.ID,
		"expense_id", record.ExpenseID,
		"amount", record.Amount,
		"status", result.Status)

	return result, nil
}
