package domain

import (
	"time"
)

// Severity is the discrete risk tier derived from the composite score.
// Tiers are ordered: none < low < medium < high < critical.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordinal position of the severity tier.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is at or above the given tier.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Alert type labels, chosen by the highest contributing feature.
const (
	AlertUnusualAmount      = "unusual_amount"
	AlertSuspiciousMerchant = "suspicious_merchant"
	AlertRapidTransactions  = "rapid_transactions"
	AlertLocationAnomaly    = "location_anomaly"
	AlertCategoryMismatch   = "category_mismatch"
	AlertGeneralAnomaly     = "general_anomaly"
)

// RiskAssessment is the immutable result of one fraud analysis. Exactly one
// assessment is created per analysis; it carries both component scores and
// the fused decision.
type RiskAssessment struct {
	TransactionID string `json:"transactionId"`
	AnalysisID    string `json:"analysisId"`
	UserID        string `json:"userId,omitempty"`

	AnomalyScore   float64 `json:"anomalyScore"`
	RuleScore      float64 `json:"ruleScore"`
	CompositeScore float64 `json:"compositeScore"`

	Severity  Severity `json:"severity"`
	AlertType string   `json:"alertType"`

	ContributingFactors []Feature `json:"contributingFactors"`
	FiredRules          []FiredRule `json:"firedRules,omitempty"`
	Features            FeatureVector `json:"features"`

	Explanation        string   `json:"explanation"`
	RecommendedActions []string `json:"recommendedActions"`

	RequiresReview bool `json:"requiresReview"`
	AutoBlock      bool `json:"autoBlock"`

	// AlertID is set when severity reached medium and an alert record was
	// derived from this assessment.
	AlertID string `json:"alertId,omitempty"`

	AnalyzedAt time.Time `json:"analyzedAt"`
}

// Alert is the append-only record derived from an assessment whose severity
// reached medium.
type Alert struct {
	ID            string    `json:"id"`
	AssessmentID  string    `json:"assessmentId"`
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	Type          string    `json:"type"`
	Severity      Severity  `json:"severity"`
	Score         float64   `json:"score"`
	Explanation   string    `json:"explanation"`
	CreatedAt     time.Time `json:"createdAt"`
}
