package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// SignalSource computes velocity and geo signals for an observation.
// Implementations may consult a cache or repository; failures are treated
// as signal unavailability, not analysis failures.
type SignalSource interface {
	Signals(ctx context.Context, obs *domain.TransactionObservation, profile *domain.UserRiskProfile) (features.Signals, error)
}

// Analyzer runs the full fraud analysis pipeline for one observation:
// profile lookup, feature extraction, parallel rule and anomaly scoring,
// composite fusion, persistence and alerting.
type Analyzer struct {
	profiles domain.ProfileStore
	signals  SignalSource
	rules    *rules.Engine
	scorer   anomaly.Scorer
	repo     domain.Repository
	bus      domain.EventBus
	logger   *slog.Logger
}

// NewAnalyzer creates an analyzer. signals, repo and bus may be nil; the
// pipeline degrades to default signals and skips persistence or events.
func NewAnalyzer(profiles domain.ProfileStore, signals SignalSource, engine *rules.Engine, scorer anomaly.Scorer, repo domain.Repository, bus domain.EventBus, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		profiles: profiles,
		signals:  signals,
		rules:    engine,
		scorer:   scorer,
		repo:     repo,
		bus:      bus,
		logger:   logger,
	}
}

// AnalyzeTransaction scores one observation. A nil profile is resolved
// through the profile store. Persistence and event publication failures
// are logged, never returned: the caller always gets a full assessment
// or a scoring error.
func (a *Analyzer) AnalyzeTransaction(ctx context.Context, obs *domain.TransactionObservation, profile *domain.UserRiskProfile) (*domain.RiskAssessment, error) {
	if obs == nil {
		return nil, domain.NewValidationError("observation is required")
	}
	if obs.ID == "" {
		return nil, domain.NewValidationError("observation id is required")
	}

	if profile == nil {
		p, err := a.profiles.GetProfile(ctx, obs.UserID)
		if err != nil {
			return nil, &domain.CollaboratorError{Step: "load_profile", Err: err}
		}
		profile = p
	}

	sig := features.DefaultSignals()
	if a.signals != nil {
		s, err := a.signals.Signals(ctx, obs, profile)
		if err != nil {
			a.logger.Warn("signal source unavailable, using defaults",
				"transaction_id", obs.ID, "error", err)
		} else {
			sig = s
		}
	}

	fv := features.Extract(obs, profile, &sig)

	// Rule engine and anomaly scorer run in parallel; they share nothing
	// but the immutable feature vector.
	var (
		wg           sync.WaitGroup
		ruleScore    float64
		firedRules   []domain.FiredRule
		ruleErr      error
		anomalyScore float64
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ruleScore, firedRules, ruleErr = a.rules.Evaluate(ctx, fv)
	}()
	go func() {
		defer wg.Done()
		anomalyScore = a.scorer.Score(fv)
	}()
	wg.Wait()

	if ruleErr != nil {
		return nil, fmt.Errorf("rule evaluation failed: %w", ruleErr)
	}

	out := Combine(anomalyScore, ruleScore, fv)

	assessment := &domain.RiskAssessment{
		TransactionID:       obs.ID,
		AnalysisID:          uuid.New().String(),
		UserID:              obs.UserID,
		AnomalyScore:        anomalyScore,
		RuleScore:           ruleScore,
		CompositeScore:      out.CompositeScore,
		Severity:            out.Severity,
		AlertType:           out.AlertType,
		ContributingFactors: out.ContributingFactors,
		FiredRules:          firedRules,
		Features:            fv,
		Explanation:         out.Explanation,
		RecommendedActions:  out.RecommendedActions,
		RequiresReview:      out.RequiresReview,
		AutoBlock:           out.AutoBlock,
		AnalyzedAt:          time.Now().UTC(),
	}

	metrics.AssessmentsTotal.WithLabelValues(string(assessment.Severity)).Inc()

	if assessment.Severity.AtLeast(domain.SeverityMedium) {
		alert := &domain.Alert{
			ID:            uuid.New().String(),
			AssessmentID:  assessment.AnalysisID,
			TransactionID: obs.ID,
			UserID:        obs.UserID,
			Type:          assessment.AlertType,
			Severity:      assessment.Severity,
			Score:         assessment.CompositeScore,
			Explanation:   assessment.Explanation,
			CreatedAt:     assessment.AnalyzedAt,
		}
		assessment.AlertID = alert.ID
		metrics.AlertsTotal.WithLabelValues(alert.Type).Inc()

		if a.repo != nil {
			if err := a.repo.SaveAlert(ctx, alert); err != nil {
				a.logger.Error("failed to save alert", "alert_id", alert.ID, "error", err)
			}
		}
		a.publish(ctx, domain.TopicAlertRaised, alert)

		a.logger.Warn("fraud alert raised",
			"transaction_id", obs.ID,
			"user_id", obs.UserID,
			"alert_type", alert.Type,
			"severity", alert.Severity,
			"score", alert.Score)
	}

	if a.repo != nil {
		if err := a.repo.SaveAssessment(ctx, assessment); err != nil {
			a.logger.Error("failed to save assessment",
				"analysis_id", assessment.AnalysisID, "error", err)
		}
	}
	a.publish(ctx, domain.TopicAssessmentCompleted, assessment)

	return assessment, nil
}

// AnalyzeBatch scores observations independently. A failing item is logged
// and reported as nil in the result slice; siblings are unaffected.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, observations []*domain.TransactionObservation) []*domain.RiskAssessment {
	results := make([]*domain.RiskAssessment, len(observations))
	for i, obs := range observations {
		assessment, err := a.AnalyzeTransaction(ctx, obs, nil)
		if err != nil {
			id := ""
			if obs != nil {
				id = obs.ID
			}
			a.logger.Error("batch item analysis failed", "transaction_id", id, "error", err)
			continue
		}
		results[i] = assessment
	}
	return results
}

func (a *Analyzer) publish(ctx context.Context, topic string, payload any) {
	if a.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("failed to marshal event payload", "topic", topic, "error", err)
		return
	}
	if err := a.bus.Publish(ctx, topic, data); err != nil {
		a.logger.Error("failed to publish event", "topic", topic, "error", err)
	}
}
