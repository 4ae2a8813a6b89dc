package domain

import (
	"context"
	"time"
)

// The scoring and workflow core talks to specialist services through the
// narrow contracts below. Each call is a single request/response: success
// with a payload or an error, nothing more. Implementations live outside the
// core (or in internal/collab for the bundled stand-ins).

// ReceiptInput carries raw receipt bytes for classification.
type ReceiptInput struct {
	UserID   string `json:"userId"`
	Filename string `json:"filename"`
	Content  []byte `json:"-"`
}

// ExpenseRecord is the structured output of receipt classification.
type ExpenseRecord struct {
	ExpenseID   string    `json:"expenseId"`
	UserID      string    `json:"userId"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Merchant    string    `json:"merchant,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`

	// Confidence is the classifier's confidence in [0,1].
	Confidence float64 `json:"classificationConfidence"`
}

// Classifier extracts a structured expense record from raw receipt bytes.
type Classifier interface {
	ClassifyReceipt(ctx context.Context, in ReceiptInput) (*ExpenseRecord, error)
}

// LineItem is one billable line on an invoice draft.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// InvoiceDraft is the structured input for invoice creation.
type InvoiceDraft struct {
	UserID      string     `json:"userId"`
	ClientName  string     `json:"clientName"`
	ClientEmail string     `json:"clientEmail,omitempty"`
	Items       []LineItem `json:"items"`
	TaxRate     float64    `json:"taxRate,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Invoice statuses reported by the invoicing collaborator.
const (
	InvoiceIncomplete = "incomplete"
	InvoiceDraftReady = "draft"
)

// InvoiceRecord is the invoicing collaborator's response. Status incomplete
// means required input was missing; MissingFields names what to supply.
type InvoiceRecord struct {
	InvoiceID     string `json:"invoiceId,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	Status        string `json:"status"`

	MissingFields []string `json:"missingFields,omitempty"`

	ClientName  string     `json:"clientName,omitempty"`
	ClientEmail string     `json:"clientEmail,omitempty"`
	Items       []LineItem `json:"items,omitempty"`
	Subtotal    float64    `json:"subtotal,omitempty"`
	TaxAmount   float64    `json:"taxAmount,omitempty"`
	TotalAmount float64    `json:"totalAmount,omitempty"`
	Currency    string     `json:"currency,omitempty"`

	DocumentRef string `json:"documentRef,omitempty"`
	PaymentRef  string `json:"paymentRef,omitempty"`
	PaymentURL  string `json:"paymentUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Invoicer creates and delivers invoices.
type Invoicer interface {
	CreateInvoice(ctx context.Context, draft *InvoiceDraft) (*InvoiceRecord, error)
	SendInvoice(ctx context.Context, invoiceID string) error
}

// ForecastPoint is a single day of a cashflow projection.
type ForecastPoint struct {
	Date     time.Time `json:"date"`
	Expected float64   `json:"expected"`
	Lower    float64   `json:"lower"`
	Upper    float64   `json:"upper"`
}

// Forecast is a time-indexed cashflow projection for one user.
type Forecast struct {
	ForecastID  string          `json:"forecastId"`
	UserID      string          `json:"userId"`
	HorizonDays int             `json:"horizonDays"`
	Points      []ForecastPoint `json:"points"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Forecaster produces cashflow projections.
type Forecaster interface {
	GenerateForecast(ctx context.Context, userID string) (*Forecast, error)

	// RefreshForecast folds one new expense into the user's projection.
	// Invoked fire-and-forget after expense approval.
	RefreshForecast(ctx context.Context, userID string, latest *ExpenseRecord) error
}

// ProfileStore provides a fresh UserRiskProfile snapshot per analysis.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*UserRiskProfile, error)
}

// Notifier delivers user-facing alerts and reports.
type Notifier interface {
	SendFraudAlert(ctx context.Context, userID string, alert *Alert) error
	SendForecastReport(ctx context.Context, userID string, f *Forecast) error
}

// TransactionGate blocks suspicious transactions at the payment boundary.
type TransactionGate interface {
	BlockTransaction(ctx context.Context, transactionID string) error
}

// CRM records invoice activity in the customer system.
type CRM interface {
	RecordInvoice(ctx context.Context, inv *InvoiceRecord) error
}

// Dashboard receives refreshed forecasts for display.
type Dashboard interface {
	PublishForecast(ctx context.Context, userID string, f *Forecast) error
}

// WebhookClient delivers workflow events to configured external endpoints.
type WebhookClient interface {
	Trigger(ctx context.Context, url string, payload any) error
}
