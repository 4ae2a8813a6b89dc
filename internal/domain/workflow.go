package domain

import (
	"time"
)

// WorkflowType names a registered multi-step workflow.
type WorkflowType string

const (
	WorkflowExpenseProcessing WorkflowType = "expense_processing"
	WorkflowInvoiceCreation   WorkflowType = "invoice_creation"
	WorkflowFraudDetection    WorkflowType = "fraud_detection"
	WorkflowCashflowForecast  WorkflowType = "cashflow_forecast"
)

// WorkflowState is the lifecycle state of an execution. Executions move
// running -> completed or running -> failed; terminal states are final.
type WorkflowState string

const (
	StateRunning   WorkflowState = "running"
	StateCompleted WorkflowState = "completed"
	StateFailed    WorkflowState = "failed"
)

// Terminal reports whether the state is final.
func (s WorkflowState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Priority is an execution scheduling hint.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// WorkflowExecution tracks one workflow run. An execution is exclusively
// owned by the engine that created it: only that engine mutates it, and once
// a terminal state is reached the record never changes again.
type WorkflowExecution struct {
	ID       string        `json:"workflowId"`
	Type     WorkflowType  `json:"workflowType"`
	State    WorkflowState `json:"status"`
	Priority Priority      `json:"priority"`

	// InputRef is a short human-readable reference to the input (user id,
	// transaction id), not the input itself.
	InputRef string `json:"inputRef,omitempty"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`

	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WorkflowResult is the synchronous response of ExecuteWorkflow.
type WorkflowResult struct {
	WorkflowID string        `json:"workflowId"`
	Type       WorkflowType  `json:"workflowType"`
	State      WorkflowState `json:"status"`
	Output     any           `json:"output,omitempty"`
}

// Expense processing result statuses.
const (
	ExpenseApproved      = "approved"
	ExpensePendingReview = "pending_review"
)

// ExpenseInput is the input to the expense_processing workflow.
type ExpenseInput struct {
	UserID   string `json:"userId"`
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// ExpenseResult is the output of the expense_processing workflow.
type ExpenseResult struct {
	Expense      *ExpenseRecord  `json:"expense"`
	Fraud        *RiskAssessment `json:"fraudAnalysis,omitempty"`
	Status       string          `json:"status"`
	ReviewReason string          `json:"reviewReason,omitempty"`
}

// InvoiceInput is the input to the invoice_creation workflow.
type InvoiceInput struct {
	UserID     string        `json:"userId"`
	Draft      *InvoiceDraft `json:"draft"`
	SendEmail  bool          `json:"sendEmail,omitempty"`
	WebhookURL string        `json:"webhookUrl,omitempty"`
}

// FraudInput is the input to the fraud_detection workflow.
type FraudInput struct {
	Observation *TransactionObservation `json:"observation"`
}

// ForecastInput is the input to the cashflow_forecast workflow.
type ForecastInput struct {
	UserID     string `json:"userId"`
	SendReport bool   `json:"sendReport,omitempty"`
}
