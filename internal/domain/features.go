package domain

// Feature names the fraud signals in a FeatureVector. The set is closed:
// every vector carries all features, and absent upstream signal is encoded
// as a neutral default value, never as a missing key.
type Feature string

const (
	FeatureAmountZScore     Feature = "amount_zscore"
	FeatureLargeAmount      Feature = "large_amount"
	FeatureMerchantNovelty  Feature = "merchant_novelty"
	FeatureCategoryMismatch Feature = "category_mismatch"
	FeatureOffHours         Feature = "off_hours"
	FeatureVelocity1h       Feature = "velocity_1h"
	FeatureVelocity24h      Feature = "velocity_24h"
	FeatureLocationDistance Feature = "location_distance"
)

// Features lists every feature in canonical order. Consumers that emit
// per-feature output (contributing factors, explanations) iterate this slice
// so results are deterministic.
var Features = []Feature{
	FeatureAmountZScore,
	FeatureLargeAmount,
	FeatureMerchantNovelty,
	FeatureCategoryMismatch,
	FeatureOffHours,
	FeatureVelocity1h,
	FeatureVelocity24h,
	FeatureLocationDistance,
}

// FeatureVector holds one normalized value in [0,1] per feature.
type FeatureVector struct {
	AmountZScore     float64 `json:"amount_zscore"`
	LargeAmount      float64 `json:"large_amount"`
	MerchantNovelty  float64 `json:"merchant_novelty"`
	CategoryMismatch float64 `json:"category_mismatch"`
	OffHours         float64 `json:"off_hours"`
	Velocity1h       float64 `json:"velocity_1h"`
	Velocity24h      float64 `json:"velocity_24h"`
	LocationDistance float64 `json:"location_distance"`
}

// Value returns the vector entry for a feature, 0 for unknown names.
func (v FeatureVector) Value(f Feature) float64 {
	switch f {
	case FeatureAmountZScore:
		return v.AmountZScore
	case FeatureLargeAmount:
		return v.LargeAmount
	case FeatureMerchantNovelty:
		return v.MerchantNovelty
	case FeatureCategoryMismatch:
		return v.CategoryMismatch
	case FeatureOffHours:
		return v.OffHours
	case FeatureVelocity1h:
		return v.Velocity1h
	case FeatureVelocity24h:
		return v.Velocity24h
	case FeatureLocationDistance:
		return v.LocationDistance
	default:
		return 0
	}
}

// Activation returns the vector as a flat map keyed by feature name, the
// shape expected by the rule engine's expression environment.
func (v FeatureVector) Activation() map[string]any {
	m := make(map[string]any, len(Features))
	for _, f := range Features {
		m[string(f)] = v.Value(f)
	}
	return m
}
