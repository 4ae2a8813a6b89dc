package collab

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// SimpleInvoicer builds invoices in memory. Incomplete drafts are reported
// with status incomplete and the missing field names rather than an error,
// so the workflow can return a structured result without side effects.
type SimpleInvoicer struct {
	mu       sync.Mutex
	sequence int
	invoices map[string]*domain.InvoiceRecord
	logger   *slog.Logger
}

// NewSimpleInvoicer creates the bundled invoicer.
func NewSimpleInvoicer(logger *slog.Logger) *SimpleInvoicer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimpleInvoicer{
		invoices: make(map[string]*domain.InvoiceRecord),
		logger:   logger,
	}
}

// CreateInvoice implements domain.Invoicer.
func (s *SimpleInvoicer) CreateInvoice(ctx context.Context, draft *domain.InvoiceDraft) (*domain.InvoiceRecord, error) {
	if draft == nil {
		return nil, domain.NewValidationError("invoice draft is required")
	}

	var missing []string
	if draft.ClientName == "" {
		missing = append(missing, "client_name")
	}
	if len(draft.Items) == 0 {
		missing = append(missing, "items")
	}
	if len(missing) > 0 {
		return &domain.InvoiceRecord{
			Status:        domain.InvoiceIncomplete,
			MissingFields: missing,
		}, nil
	}

	var subtotal float64
	for _, item := range draft.Items {
		subtotal += item.Quantity * item.UnitPrice
	}
	taxAmount := round2(subtotal * draft.TaxRate)

	s.mu.Lock()
	s.sequence++
	number := fmt.Sprintf("INV-%d-%04d", time.Now().UTC().Year(), s.sequence)
	s.mu.Unlock()

	record := &domain.InvoiceRecord{
		InvoiceID:     uuid.New().String(),
		InvoiceNumber: number,
		Status:        domain.InvoiceDraftReady,
		ClientName:    draft.ClientName,
		ClientEmail:   draft.ClientEmail,
		Items:         draft.Items,
		Subtotal:      round2(subtotal),
		TaxAmount:     taxAmount,
		TotalAmount:   round2(subtotal + taxAmount),
		Currency:      "USD",
		CreatedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	s.invoices[record.InvoiceID] = record
	s.mu.Unlock()

	return record, nil
}

// SendInvoice implements domain.Invoicer.
func (s *SimpleInvoicer) SendInvoice(ctx context.Context, invoiceID string) error {
	s.mu.Lock()
	record, ok := s.invoices[invoiceID]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("invoice %s not found", invoiceID)
	}
	if record.ClientEmail == "" {
		return fmt.Errorf("invoice %s has no client email", invoiceID)
	}

	s.logger.Info("invoice sent",
		"invoice_id", invoiceID,
		"invoice_number", record.InvoiceNumber,
		"client_email", record.ClientEmail)
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
