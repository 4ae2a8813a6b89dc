// Package scoring fuses rule and anomaly scores into a risk assessment.
package scoring

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Composite weighting: anomaly contributes 60%, rules 40%.
const (
	anomalyWeight = 0.6
	ruleWeight    = 0.4
)

// Severity thresholds, inclusive lower bounds.
const (
	thresholdLow      = 60.0
	thresholdMedium   = 70.0
	thresholdHigh     = 80.0
	thresholdCritical = 90.0
)

// contributingThreshold marks a feature as a contributing factor.
const contributingThreshold = 0.5

// Outcome holds the composite scoring decision for one analysis.
type Outcome struct {
	CompositeScore      float64
	Severity            domain.Severity
	AlertType           string
	ContributingFactors []domain.Feature
	Explanation         string
	RecommendedActions  []string
	RequiresReview      bool
	AutoBlock           bool
}

// Combine fuses an anomaly score and a rule score, both in [0,100], into
// a deterministic outcome. Same inputs always produce the same outcome.
func Combine(anomalyScore, ruleScore float64, fv domain.FeatureVector) Outcome {
	composite := anomalyWeight*anomalyScore + ruleWeight*ruleScore
	if composite > 100 {
		composite = 100
	}
	if composite < 0 {
		composite = 0
	}

	severity := SeverityFor(composite)

	return Outcome{
		CompositeScore:      composite,
		Severity:            severity,
		AlertType:           alertTypeFor(fv),
		ContributingFactors: contributingFactors(fv),
		Explanation:         explain(fv),
		RecommendedActions:  actionsFor(severity),
		RequiresReview:      composite >= thresholdMedium,
		AutoBlock:           composite >= thresholdCritical,
	}
}

// SeverityFor maps a composite score to its severity tier.
func SeverityFor(composite float64) domain.Severity {
	switch {
	case composite >= thresholdCritical:
		return domain.SeverityCritical
	case composite >= thresholdHigh:
		return domain.SeverityHigh
	case composite >= thresholdMedium:
		return domain.SeverityMedium
	case composite >= thresholdLow:
		return domain.SeverityLow
	default:
		return domain.SeverityNone
	}
}

// contributingFactors lists features above the contributing threshold,
// in canonical feature order.
func contributingFactors(fv domain.FeatureVector) []domain.Feature {
	var factors []domain.Feature
	for _, f := range domain.Features {
		if fv.Value(f) > contributingThreshold {
			factors = append(factors, f)
		}
	}
	return factors
}

// alertTypeFor picks the alert type from the highest-priority feature
// exceeding 0.7. Priority is fixed so the choice is reproducible.
func alertTypeFor(fv domain.FeatureVector) string {
	switch {
	case fv.LargeAmount > 0.7:
		return domain.AlertUnusualAmount
	case fv.MerchantNovelty > 0.7:
		return domain.AlertSuspiciousMerchant
	case fv.Velocity1h > 0.7:
		return domain.AlertRapidTransactions
	case fv.LocationDistance > 0.7:
		return domain.AlertLocationAnomaly
	case fv.CategoryMismatch > 0.7:
		return domain.AlertCategoryMismatch
	default:
		return domain.AlertGeneralAnomaly
	}
}

// explain concatenates the human-readable clauses for triggered features.
func explain(fv domain.FeatureVector) string {
	var clauses []string
	if fv.LargeAmount > 0.5 {
		clauses = append(clauses, "Transaction amount significantly exceeds your typical spending")
	}
	if fv.MerchantNovelty > 0.7 {
		clauses = append(clauses, "First-time transaction with this merchant")
	}
	if fv.OffHours > 0.5 {
		clauses = append(clauses, "Transaction occurred outside your normal hours")
	}
	if fv.Velocity1h > 0.5 {
		clauses = append(clauses, "Multiple transactions in short time period")
	}
	if len(clauses) == 0 {
		return "Transaction pattern matches your normal behavior."
	}
	return strings.Join(clauses, ". ") + "."
}

// actionsFor returns the recommended action list for a severity tier.
func actionsFor(severity domain.Severity) []string {
	switch severity {
	case domain.SeverityCritical:
		return []string{
			"Block transaction immediately",
			"Require multi-factor authentication",
			"Notify security team",
			"Send SMS alert to user",
		}
	case domain.SeverityHigh:
		return []string{
			"Hold transaction for review",
			"Require 2FA verification",
			"Send email alert",
		}
	case domain.SeverityMedium:
		return []string{
			"Flag for manual review",
			"Send notification to user",
			"Monitor subsequent transactions",
		}
	case domain.SeverityLow:
		return []string{
			"Log for analysis",
			"Continue monitoring",
		}
	default:
		return []string{"Approve transaction"}
	}
}
