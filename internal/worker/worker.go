// Package worker provides async observation processing from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/workflow"
)

// Worker consumes ingested observations from the EventBus and runs the
// fraud detection workflow for each one. It is the async counterpart of
// the synchronous analyze API.
type Worker struct {
	bus    domain.EventBus
	engine *workflow.Engine
	logger *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// ObservationMessage is the payload published on TopicObservationIngested.
type ObservationMessage struct {
	Observation *domain.TransactionObservation `json:"observation"`
	Priority    domain.Priority                `json:"priority,omitempty"`
	TraceID     string                         `json:"traceId,omitempty"`
}

// NewWorker creates an async worker.
func NewWorker(bus domain.EventBus, engine *workflow.Engine, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		engine: engine,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the observation topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicObservationIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started", "topic", domain.TopicObservationIngested)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var om ObservationMessage
	if err := json.Unmarshal(msg.Payload, &om); err != nil {
		w.logger.Error("failed to parse observation message",
			"message_id", msg.ID,
			"error", err)
		return err
	}
	if om.Observation == nil {
		// Bare observation payloads are accepted too.
		var obs domain.TransactionObservation
		if err := json.Unmarshal(msg.Payload, &obs); err != nil || obs.ID == "" {
			w.logger.Error("observation message has no observation",
				"message_id", msg.ID)
			return domain.NewValidationError("observation is required")
		}
		om.Observation = &obs
	}

	priority := om.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	result, err := w.engine.Execute(ctx, domain.WorkflowFraudDetection,
		&domain.FraudInput{Observation: om.Observation}, priority)
	if err != nil {
		w.logger.Error("fraud detection failed",
			"transaction_id", om.Observation.ID,
			"error", err)
		return err
	}

	w.logger.Info("observation processed",
		"transaction_id", om.Observation.ID,
		"workflow_id", result.WorkflowID,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// Stop cancels the subscription and stops message delivery.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err)
		}
	}
	w.subscriptions = nil

	w.logger.Info("worker stopped")
	return nil
}

// Stats reports the worker's active subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
