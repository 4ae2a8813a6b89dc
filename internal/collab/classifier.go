// Package collab provides the bundled collaborator implementations used by
// the workflow engine: receipt classification, invoicing, forecasting,
// notification and webhook delivery. Production deployments swap these for
// real services behind the same interfaces.
package collab

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// DemoClassifier extracts expense records without calling an external OCR
// or ML service. Extraction is deterministic on the input so workflow
// behavior is reproducible.
type DemoClassifier struct{}

// NewDemoClassifier creates the bundled classifier.
func NewDemoClassifier() *DemoClassifier {
	return &DemoClassifier{}
}

// ClassifyReceipt implements domain.Classifier.
func (c *DemoClassifier) ClassifyReceipt(ctx context.Context, in domain.ReceiptInput) (*domain.ExpenseRecord, error) {
	if in.UserID == "" {
		return nil, domain.NewValidationError("receipt input incomplete", "user_id")
	}
	if len(in.Content) == 0 {
		return nil, domain.NewValidationError("receipt input incomplete", "content")
	}

	// Derive a stable pseudo-amount from the content so repeated
	// classifications of the same receipt agree.
	h := fnv.New32a()
	h.Write(in.Content)
	amount := 10 + float64(h.Sum32()%49000)/100

	record := &domain.ExpenseRecord{
		ExpenseID:   uuid.New().String(),
		UserID:      in.UserID,
		Amount:      amount,
		Currency:    "USD",
		Merchant:    merchantFromFilename(in.Filename),
		Category:    "office_supplies",
		Description: fmt.Sprintf("Expense from %s", in.Filename),
		Date:        time.Now().UTC(),
		Confidence:  0.95,
	}
	return record, nil
}

func merchantFromFilename(filename string) string {
	name := filename
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "Unknown Merchant"
	}
	return name
}
