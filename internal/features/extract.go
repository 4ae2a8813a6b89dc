// Package features turns a transaction observation and a user risk profile
// into a normalized feature vector. Extraction is pure: no I/O, no side
// effects, and missing inputs degrade to neutral defaults instead of erroring.
package features

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Signals carries externally computed velocity and geo features.
// Values are already normalized to [0,1].
type Signals struct {
	Velocity1h       float64
	Velocity24h      float64
	LocationDistance float64
}

// DefaultSignals returns the neutral values used when no velocity/geo
// collaborator is available. Low but nonzero, reflecting unknown rather
// than known-safe.
func DefaultSignals() Signals {
	return Signals{
		Velocity1h:       0.2,
		Velocity24h:      0.1,
		LocationDistance: 0.1,
	}
}

// Extract computes the feature vector for one observation against a profile.
// A nil sig falls back to DefaultSignals. A nil profile yields fully neutral
// amount features (zscore 0, large_amount 0) and absence defaults elsewhere.
func Extract(obs *domain.TransactionObservation, profile *domain.UserRiskProfile, sig *Signals) domain.FeatureVector {
	s := DefaultSignals()
	if sig != nil {
		s = *sig
	}

	fv := domain.FeatureVector{
		Velocity1h:       clamp01(s.Velocity1h),
		Velocity24h:      clamp01(s.Velocity24h),
		LocationDistance: clamp01(s.LocationDistance),
	}
	if obs == nil {
		fv.MerchantNovelty = 0.5
		fv.CategoryMismatch = 0.3
		return fv
	}

	if profile != nil && profile.StdAmount > 0 {
		z := math.Abs(obs.Amount-profile.AvgAmount) / profile.StdAmount
		fv.AmountZScore = math.Min(z, 3) / 3
		if obs.Amount > profile.AvgAmount+3*profile.StdAmount {
			fv.LargeAmount = 1.0
		}
	}

	switch {
	case obs.Merchant == "":
		fv.MerchantNovelty = 0.5
	case profile != nil && profile.KnowsMerchant(obs.Merchant):
		fv.MerchantNovelty = 0.0
	default:
		fv.MerchantNovelty = 1.0
	}

	switch {
	case obs.Category == "":
		fv.CategoryMismatch = 0.3
	case profile != nil && profile.TypicalCategory(obs.Category):
		fv.CategoryMismatch = 0.0
	default:
		fv.CategoryMismatch = 0.6
	}

	if profile == nil || !profile.TypicalHour(obs.Timestamp.UTC().Hour()) {
		fv.OffHours = 0.8
	}

	return fv
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
