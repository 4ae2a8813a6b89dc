// Package workflow implements the stateful orchestrator for named,
// multi-step workflows. Each execution runs once: running, then completed
// or failed, with no resumption. Terminal snapshots are persisted and a
// completion event is published; live status queries are served from the
// in-memory registry owned by the engine.
package workflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Config tunes workflow execution.
type Config struct {
	// CollaboratorTimeout bounds every outbound collaborator call.
	CollaboratorTimeout time.Duration

	// MaterialityThreshold is the expense amount above which fraud
	// analysis runs during expense processing.
	MaterialityThreshold float64

	// ReviewConfidence is the classification confidence below which an
	// expense goes to manual review.
	ReviewConfidence float64
}

// DefaultConfig returns the default workflow tuning.
func DefaultConfig() Config {
	return Config{
		CollaboratorTimeout:  30 * time.Second,
		MaterialityThreshold: 100,
		ReviewConfidence:     0.9,
	}
}

// Collaborators bundles the external services workflows call.
type Collaborators struct {
	Classifier domain.Classifier
	Invoicer   domain.Invoicer
	Forecaster domain.Forecaster
	Notifier   domain.Notifier
	Gate       domain.TransactionGate
	CRM        domain.CRM
	Dashboard  domain.Dashboard
	Webhook    domain.WebhookClient
}

type handlerFunc func(ctx context.Context, exec *domain.WorkflowExecution, input any) (any, error)

// Engine executes workflows and owns the execution registry. Each
// WorkflowExecution is mutated only by the engine that created it.
type Engine struct {
	mu         sync.RWMutex
	executions map[string]*domain.WorkflowExecution

	handlers map[domain.WorkflowType]handlerFunc

	analyzer   *scoring.Analyzer
	collab     Collaborators
	repo       domain.Repository
	bus        domain.EventBus
	supervisor *Supervisor
	cfg        Config
	logger     *slog.Logger
}

// NewEngine creates a workflow engine with the four built-in workflow
// types registered. repo and bus may be nil; terminal snapshots and events
// are then skipped.
func NewEngine(analyzer *scoring.Analyzer, collab Collaborators, repo domain.Repository, bus domain.EventBus, sup *Supervisor, cfg Config, logger *slog.Logger) *Engine {
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = DefaultConfig().CollaboratorTimeout
	}
	if cfg.MaterialityThreshold <= 0 {
		cfg.MaterialityThreshold = DefaultConfig().MaterialityThreshold
	}
	if cfg.ReviewConfidence <= 0 {
		cfg.ReviewConfidence = DefaultConfig().ReviewConfidence
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sup == nil {
		sup = NewSupervisor(logger)
	}

	e := &Engine{
		executions: make(map[string]*domain.WorkflowExecution),
		handlers:   make(map[domain.WorkflowType]handlerFunc),
		analyzer:   analyzer,
		collab:     collab,
		repo:       repo,
		bus:        bus,
		supervisor: sup,
		cfg:        cfg,
		logger:     logger,
	}

	e.handlers[domain.WorkflowExpenseProcessing] = e.runExpenseProcessing
	e.handlers[domain.WorkflowInvoiceCreation] = e.runInvoiceCreation
	e.handlers[domain.WorkflowFraudDetection] = e.runFraudDetection
	e.handlers[domain.WorkflowCashflowForecast] = e.runCashflowForecast

	return e
}

// Execute runs a workflow synchronously and returns its result.
// Unknown types and invalid input are rejected before any execution
// state is created. Errors on the critical path mark the execution
// failed and are returned to the caller.
func (e *Engine) Execute(ctx context.Context, typ domain.WorkflowType, input any, priority domain.Priority) (*domain.WorkflowResult, error) {
	handler, ok := e.handlers[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownWorkflowType, typ)
	}

	if err := validateInput(typ, input); err != nil {
		return nil, err
	}

	if priority == "" {
		priority = domain.PriorityNormal
	}

	exec := &domain.WorkflowExecution{
		ID:        newWorkflowID(),
		Type:      typ,
		State:     domain.StateRunning,
		Priority:  priority,
		InputRef:  inputRef(input),
		StartedAt: time.Now().UTC(),
	}

	e.mu.Lock()
	e.executions[exec.ID] = exec
	e.mu.Unlock()

	e.logger.Info("workflow started",
		"workflow_id", exec.ID,
		"type", typ,
		"priority", priority)

	output, err := handler(ctx, exec, input)
	if err != nil {
		e.markFailed(ctx, exec, err)
		return nil, err
	}

	e.markCompleted(ctx, exec, output)

	return &domain.WorkflowResult{
		WorkflowID: exec.ID,
		Type:       typ,
		State:      domain.StateCompleted,
		Output:     output,
	}, nil
}

// Status returns a copy of the execution record, or ErrWorkflowNotFound.
// Falls back to the persisted snapshot for executions the in-memory
// registry no longer holds.
func (e *Engine) Status(ctx context.Context, workflowID string) (*domain.WorkflowExecution, error) {
	e.mu.RLock()
	exec, ok := e.executions[workflowID]
	e.mu.RUnlock()

	if ok {
		copied := *exec
		return &copied, nil
	}

	if e.repo != nil {
		stored, err := e.repo.GetExecution(ctx, workflowID)
		if err == nil {
			return stored, nil
		}
	}

	return nil, domain.ErrWorkflowNotFound
}

// Supervisor exposes the engine's background task supervisor.
func (e *Engine) Supervisor() *Supervisor {
	return e.supervisor
}

func (e *Engine) markCompleted(ctx context.Context, exec *domain.WorkflowExecution, output any) {
	now := time.Now().UTC()

	e.mu.Lock()
	exec.State = domain.StateCompleted
	exec.CompletedAt = &now
	exec.Result = output
	e.mu.Unlock()

	e.finishExecution(ctx, exec, now)

	e.logger.Info("workflow completed",
		"workflow_id", exec.ID,
		"type", exec.Type,
		"duration", now.Sub(exec.StartedAt))
}

func (e *Engine) markFailed(ctx context.Context, exec *domain.WorkflowExecution, cause error) {
	now := time.Now().UTC()

	e.mu.Lock()
	exec.State = domain.StateFailed
	exec.FailedAt = &now
	exec.Error = cause.Error()
	e.mu.Unlock()

	e.finishExecution(ctx, exec, now)

	e.logger.Error("workflow failed",
		"workflow_id", exec.ID,
		"type", exec.Type,
		"error", cause)
}

// finishExecution records metrics, persists the terminal snapshot, and
// publishes the completion event. None of these affect the caller's result.
func (e *Engine) finishExecution(ctx context.Context, exec *domain.WorkflowExecution, now time.Time) {
	metrics.WorkflowsTotal.WithLabelValues(string(exec.Type), string(exec.State)).Inc()
	metrics.WorkflowDuration.WithLabelValues(string(exec.Type)).Observe(now.Sub(exec.StartedAt).Seconds())

	e.mu.RLock()
	snapshot := *exec
	e.mu.RUnlock()

	if e.repo != nil {
		if err := e.repo.SaveExecution(ctx, &snapshot); err != nil {
			e.logger.Error("failed to persist workflow execution",
				"workflow_id", exec.ID, "error", err)
		}
	}

	if e.bus != nil {
		payload, err := json.Marshal(&snapshot)
		if err == nil {
			if err := e.bus.Publish(ctx, domain.TopicWorkflowCompleted, payload); err != nil {
				e.logger.Error("failed to publish workflow event",
					"workflow_id", exec.ID, "error", err)
			}
		}
	}
}

// collabCtx bounds a collaborator call. Every external await goes through
// this; an unbounded collaborator call is a bug.
func (e *Engine) collabCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.CollaboratorTimeout)
}

func validateInput(typ domain.WorkflowType, input any) error {
	switch typ {
	case domain.WorkflowExpenseProcessing:
		in, ok := input.(*domain.ExpenseInput)
		if !ok || in == nil {
			return domain.NewValidationError("expense input is required")
		}
		var missing []string
		if in.UserID == "" {
			missing = append(missing, "user_id")
		}
		if len(in.Content) == 0 {
			missing = append(missing, "content")
		}
		if len(missing) > 0 {
			return domain.NewValidationError("expense input incomplete", missing...)
		}

	case domain.WorkflowInvoiceCreation:
		in, ok := input.(*domain.InvoiceInput)
		if !ok || in == nil || in.Draft == nil {
			return domain.NewValidationError("invoice draft is required")
		}

	case domain.WorkflowFraudDetection:
		in, ok := input.(*domain.FraudInput)
		if !ok || in == nil || in.Observation == nil {
			return domain.NewValidationError("observation is required")
		}

	case domain.WorkflowCashflowForecast:
		in, ok := input.(*domain.ForecastInput)
		if !ok || in == nil || in.UserID == "" {
			return domain.NewValidationError("forecast input incomplete", "user_id")
		}
	}
	return nil
}

func inputRef(input any) string {
	switch in := input.(type) {
	case *domain.ExpenseInput:
		return in.UserID
	case *domain.InvoiceInput:
		return in.Draft.UserID
	case *domain.FraudInput:
		return in.Observation.ID
	case *domain.ForecastInput:
		return in.UserID
	default:
		return ""
	}
}

func newWorkflowID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand is not expected to fail; fall back to a timestamp.
		return fmt.Sprintf("wf_%012x", time.Now().UnixNano()&0xffffffffffff)
	}
	return "wf_" + hex.EncodeToString(b[:])
}

// IsValidationError reports whether err is an input validation failure.
func IsValidationError(err error) bool {
	var ve *domain.ValidationError
	return errors.As(err, &ve)
}
