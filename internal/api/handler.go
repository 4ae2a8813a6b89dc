package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/worker"
	"github.com/opensource-finance/kestrel/internal/workflow"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	ruleEngine *rules.Engine
	analyzer   *scoring.Analyzer
	wfEngine   *workflow.Engine
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, c domain.Cache, bus domain.EventBus, ruleEngine *rules.Engine, analyzer *scoring.Analyzer, wfEngine *workflow.Engine, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      c,
		bus:        bus,
		ruleEngine: ruleEngine,
		analyzer:   analyzer,
		wfEngine:   wfEngine,
		version:    version,
	}
}

// WorkflowRequest is the request body for POST /workflows.
type WorkflowRequest struct {
	Type     domain.WorkflowType `json:"type"`
	Priority domain.Priority     `json:"priority,omitempty"`
	Input    json.RawMessage     `json:"input"`
}

// ExecuteWorkflow handles POST /workflows requests. The workflow runs
// synchronously; the response carries its terminal state and output.
func (h *Handler) ExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req WorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "type is required",
		})
		return
	}

	input, err := decodeWorkflowInput(req.Type, req.Input)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	result, err := h.wfEngine.Execute(ctx, req.Type, input, req.Priority)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownWorkflowType):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		case workflow.IsValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		default:
			slog.Error("workflow execution failed", "type", req.Type, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "workflow execution failed: " + err.Error(),
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// decodeWorkflowInput parses the raw input for a workflow type. An unknown
// type passes through as nil so the engine can reject it uniformly.
func decodeWorkflowInput(typ domain.WorkflowType, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	switch typ {
	case domain.WorkflowExpenseProcessing:
		var in domain.ExpenseInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, errors.New("invalid expense input")
		}
		return &in, nil
	case domain.WorkflowInvoiceCreation:
		var in domain.InvoiceInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, errors.New("invalid invoice input")
		}
		return &in, nil
	case domain.WorkflowFraudDetection:
		var in domain.FraudInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, errors.New("invalid fraud input")
		}
		return &in, nil
	case domain.WorkflowCashflowForecast:
		var in domain.ForecastInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, errors.New("invalid forecast input")
		}
		return &in, nil
	}
	return nil, nil
}

// WorkflowStatus handles GET /workflows/{id}.
func (h *Handler) WorkflowStatus(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "id")
	if workflowID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "workflow id is required",
		})
		return
	}

	exec, err := h.wfEngine.Status(r.Context(), workflowID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "workflow not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, exec)
}

// Analyze handles POST /analyze: synchronous fraud analysis of one
// observation.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var obs domain.TransactionObservation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if obs.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}
	if obs.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}
	if obs.ID == "" {
		obs.ID = uuid.New().String()
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().UTC()
	}

	assessment, err := h.analyzer.AnalyzeTransaction(ctx, &obs, nil)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": ve.Error(),
			})
			return
		}
		slog.Error("analysis failed", "transaction_id", obs.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	if h.cache != nil {
		if err := cache.SetAssessment(ctx, h.cache, assessment); err != nil {
			slog.Warn("failed to cache assessment", "analysis_id", assessment.AnalysisID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assessment)
}

// BatchRequest is the request body for POST /analyze/batch.
type BatchRequest struct {
	Observations []*domain.TransactionObservation `json:"observations"`
}

// BatchResponse is the response for POST /analyze/batch. Results are
// positionally aligned with the request; failed entries are null.
type BatchResponse struct {
	Results []*domain.RiskAssessment `json:"results"`
	Total   int                      `json:"total"`
	Failed  int                      `json:"failed"`
}

// AnalyzeBatch handles POST /analyze/batch.
func (h *Handler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Observations) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "observations are required",
		})
		return
	}

	for _, obs := range req.Observations {
		if obs != nil && obs.ID == "" {
			obs.ID = uuid.New().String()
		}
	}

	results := h.analyzer.AnalyzeBatch(ctx, req.Observations)

	failed := 0
	for _, a := range results {
		if a == nil {
			failed++
		}
	}

	writeJSON(w, http.StatusOK, BatchResponse{
		Results: results,
		Total:   len(results),
		Failed:  failed,
	})
}

// IngestObservation handles POST /observations: persist the observation
// and queue it for async fraud detection via the event bus.
func (h *Handler) IngestObservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var obs domain.TransactionObservation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if obs.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}
	if obs.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}
	if obs.ID == "" {
		obs.ID = uuid.New().String()
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().UTC()
	}

	if h.repo != nil {
		if err := h.repo.SaveObservation(ctx, &obs); err != nil {
			slog.Error("failed to save observation", "transaction_id", obs.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save observation",
			})
			return
		}
	}

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	payload, _ := json.Marshal(worker.ObservationMessage{
		Observation: &obs,
		Priority:    domain.Priority(r.URL.Query().Get("priority")),
		TraceID:     GetTraceID(ctx),
	})
	if err := h.bus.Publish(ctx, domain.TopicObservationIngested, payload); err != nil {
		slog.Error("failed to publish observation", "transaction_id", obs.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue observation",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"transactionId": obs.ID,
		"status":        "queued",
	})
}

// GetAssessment handles GET /assessments/{id}. The cache is consulted
// before the repository.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID := chi.URLParam(r, "id")

	if analysisID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.cache != nil {
		if a, err := cache.GetAssessment(ctx, h.cache, analysisID); err == nil && a != nil {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAssessment(ctx, analysisID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get assessment", "id", analysisID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// ListAlerts handles GET /alerts?user_id=&limit=.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "user_id is required",
		})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	alerts, err := h.repo.ListAlertsByUser(ctx, userID, limit)
	if err != nil {
		slog.Error("failed to list alerts", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic. Every
// wired component must answer a ping.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	components := map[string]string{}
	ready := true

	check := func(name string, ping func(context.Context) error) {
		if ping == nil {
			return
		}
		if err := ping(ctx); err != nil {
			components[name] = "unavailable"
			ready = false
			return
		}
		components[name] = "ok"
	}

	if h.repo != nil {
		check("repository", h.repo.Ping)
	}
	if h.cache != nil {
		check("cache", h.cache.Ping)
	}
	if h.bus != nil {
		check("bus", h.bus.Ping)
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ready":      ready,
		"components": components,
	})
}

// ListRules returns all rules loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.ruleEngine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.ruleEngine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Points      float64 `json:"points"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule compiles and hot-loads a rule into the engine. The
// expression must evaluate to a boolean over the feature vector.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Points < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "points must not be negative",
		})
		return
	}

	rule := &domain.FraudRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Points:      req.Points,
		Enabled:     req.Enabled,
	}

	if err := h.ruleEngine.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule expression: " + err.Error(),
		})
		return
	}

	slog.Info("rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule": rule,
	})
}

// ReloadRules restores the built-in rule set, discarding hot-loaded rules.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	builtin := rules.BuiltinRules()
	if err := h.ruleEngine.ReloadRules(builtin); err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded", "count", len(builtin))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(builtin),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
