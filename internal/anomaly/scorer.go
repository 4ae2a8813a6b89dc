// Package anomaly provides pluggable anomaly scoring over feature vectors.
//
// A Scorer maps a feature vector to a risk score in [0,100], higher meaning
// more anomalous. Any backend satisfying the contract is valid as long as it
// is deterministic for a given model state and input.
package anomaly

import "github.com/opensource-finance/kestrel/internal/domain"

// Scorer estimates how anomalous a feature vector is.
type Scorer interface {
	// Score returns a value in [0,100]. Must be deterministic for the
	// same model state and feature vector.
	Score(fv domain.FeatureVector) float64

	// Name identifies the scoring backend for assessments and logs.
	Name() string
}

// BaselineScorer is a fixed-weight linear model. It is deliberately simple:
// a weighted sum of the normalized features scaled to [0,100]. The weights
// sum to 1 so the score is already bounded.
type BaselineScorer struct {
	weights map[domain.Feature]float64
}

// NewBaselineScorer returns the default linear scorer.
func NewBaselineScorer() *BaselineScorer {
	return &BaselineScorer{
		weights: map[domain.Feature]float64{
			domain.FeatureAmountZScore:     0.30,
			domain.FeatureLargeAmount:      0.15,
			domain.FeatureMerchantNovelty:  0.15,
			domain.FeatureCategoryMismatch: 0.08,
			domain.FeatureOffHours:         0.10,
			domain.FeatureVelocity1h:       0.10,
			domain.FeatureVelocity24h:      0.05,
			domain.FeatureLocationDistance: 0.07,
		},
	}
}

// Score implements Scorer.
func (s *BaselineScorer) Score(fv domain.FeatureVector) float64 {
	var sum float64
	for _, f := range domain.Features {
		sum += s.weights[f] * fv.Value(f)
	}
	score := sum * 100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Name implements Scorer.
func (s *BaselineScorer) Name() string { return "baseline_linear" }

// FixedScorer always returns the same score. Useful for tests and for
// pinning composite behavior while a model is being trained.
type FixedScorer struct {
	Value float64
}

// Score implements Scorer.
func (s FixedScorer) Score(domain.FeatureVector) float64 {
	if s.Value < 0 {
		return 0
	}
	if s.Value > 100 {
		return 100
	}
	return s.Value
}

// Name implements Scorer.
func (s FixedScorer) Name() string { return "fixed" }
