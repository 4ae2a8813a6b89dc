package workflow

import (
	"context"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// runInvoiceCreation creates an invoice and fans out delivery side effects.
// An incomplete draft is a successful run with status incomplete and no
// side effects; the caller reads MissingFields and resubmits.
func (e *Engine) runInvoiceCreation(ctx context.Context, exec *domain.WorkflowExecution, input any) (any, error) {
	in := input.(*domain.InvoiceInput)

	createCtx, cancel := e.collabCtx(ctx)
	record, err := e.collab.Invoicer.CreateInvoice(createCtx, in.Draft)
	cancel()
	if err != nil {
		return nil, &domain.CollaboratorError{Step: "create_invoice", Err: err}
	}

	if record.Status == domain.InvoiceIncomplete {
		e.logger.Info("invoice draft incomplete",
			"workflow_id", exec.ID,
			"user_id", in.Draft.UserID,
			"missing", record.MissingFields)
		return record, nil
	}

	var branches []branch

	if in.SendEmail && record.ClientEmail != "" {
		branches = append(branches, branch{
			name: "send_email",
			fn: func(stepCtx context.Context) error {
				return e.collab.Invoicer.SendInvoice(stepCtx, record.InvoiceID)
			},
		})
	}

	branches = append(branches, branch{
		name: "record_crm",
		fn: func(stepCtx context.Context) error {
			return e.collab.CRM.RecordInvoice(stepCtx, record)
		},
	})

	if in.WebhookURL != "" {
		branches = append(branches, branch{
			name: "webhook",
			fn: func(stepCtx context.Context) error {
				return e.collab.Webhook.Trigger(stepCtx, in.WebhookURL, record)
			},
		})
	}

	e.fanOut(ctx, exec.ID, branches)

	e.logger.Info("invoice created",
		"workflow_id", exec.ID,
		"invoice_id", record.InvoiceID,
		"total", record.TotalAmount)

	return record, nil
}
