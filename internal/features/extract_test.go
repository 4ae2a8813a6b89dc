package features

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func testProfile() *domain.UserRiskProfile {
	return &domain.UserRiskProfile{
		UserID:            "user-001",
		AvgAmount:         250,
		StdAmount:         150,
		KnownMerchants:    []string{"Coffee Corner", "Grocery Mart"},
		TypicalCategories: []string{"food", "groceries"},
		TypicalHours:      []int{9, 10, 11, 12, 13, 14, 15, 16, 17},
	}
}

func TestExtractNormalTransaction(t *testing.T) {
	obs := &domain.TransactionObservation{
		ID:        "tx-001",
		UserID:    "user-001",
		Amount:    45,
		Merchant:  "Coffee Corner",
		Category:  "food",
		Timestamp: time.Date(2026, 3, 10, 11, 30, 0, 0, time.UTC),
	}

	fv := Extract(obs, testProfile(), &Signals{})

	if fv.LargeAmount != 0 {
		t.Errorf("expected large_amount 0, got %v", fv.LargeAmount)
	}
	if fv.MerchantNovelty != 0 {
		t.Errorf("expected merchant_novelty 0, got %v", fv.MerchantNovelty)
	}
	if fv.CategoryMismatch != 0 {
		t.Errorf("expected category_mismatch 0, got %v", fv.CategoryMismatch)
	}
	if fv.OffHours != 0 {
		t.Errorf("expected off_hours 0, got %v", fv.OffHours)
	}
}

func TestExtractAnomalousTransaction(t *testing.T) {
	obs := &domain.TransactionObservation{
		ID:        "tx-002",
		UserID:    "user-001",
		Amount:    5000,
		Merchant:  "Tech Supplies Intl",
		Category:  "electronics",
		Timestamp: time.Date(2026, 3, 10, 2, 15, 0, 0, time.UTC),
	}

	fv := Extract(obs, testProfile(), &Signals{})

	if fv.AmountZScore != 1.0 {
		t.Errorf("expected amount_zscore 1.0 (capped), got %v", fv.AmountZScore)
	}
	if fv.LargeAmount != 1.0 {
		t.Errorf("expected large_amount 1.0, got %v", fv.LargeAmount)
	}
	if fv.MerchantNovelty != 1.0 {
		t.Errorf("expected merchant_novelty 1.0, got %v", fv.MerchantNovelty)
	}
	if fv.CategoryMismatch != 0.6 {
		t.Errorf("expected category_mismatch 0.6, got %v", fv.CategoryMismatch)
	}
	if fv.OffHours != 0.8 {
		t.Errorf("expected off_hours 0.8, got %v", fv.OffHours)
	}
}

func TestExtractAbsentFields(t *testing.T) {
	obs := &domain.TransactionObservation{
		ID:        "tx-003",
		UserID:    "user-001",
		Amount:    100,
		Timestamp: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}

	fv := Extract(obs, testProfile(), nil)

	if fv.MerchantNovelty != 0.5 {
		t.Errorf("expected merchant_novelty 0.5 for absent merchant, got %v", fv.MerchantNovelty)
	}
	if fv.CategoryMismatch != 0.3 {
		t.Errorf("expected category_mismatch 0.3 for absent category, got %v", fv.CategoryMismatch)
	}
}

func TestExtractDefaultSignals(t *testing.T) {
	obs := &domain.TransactionObservation{
		ID:        "tx-004",
		UserID:    "user-001",
		Amount:    100,
		Merchant:  "Grocery Mart",
		Category:  "groceries",
		Timestamp: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}

	fv := Extract(obs, testProfile(), nil)

	def := DefaultSignals()
	if fv.Velocity1h != def.Velocity1h {
		t.Errorf("expected velocity_1h %v, got %v", def.Velocity1h, fv.Velocity1h)
	}
	if fv.Velocity24h != def.Velocity24h {
		t.Errorf("expected velocity_24h %v, got %v", def.Velocity24h, fv.Velocity24h)
	}
	if fv.LocationDistance != def.LocationDistance {
		t.Errorf("expected location_distance %v, got %v", def.LocationDistance, fv.LocationDistance)
	}
}

func TestExtractZScoreNotCapped(t *testing.T) {
	obs := &domain.TransactionObservation{
		ID:        "tx-005",
		UserID:    "user-001",
		Amount:    400, // z = 1.0
		Merchant:  "Grocery Mart",
		Timestamp: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}

	fv := Extract(obs, testProfile(), &Signals{})

	want := 1.0 / 3.0
	if diff := fv.AmountZScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected amount_zscore %v, got %v", want, fv.AmountZScore)
	}
	if fv.LargeAmount != 0 {
		t.Errorf("expected large_amount 0 at z=1, got %v", fv.LargeAmount)
	}
}

func TestExtractZeroStdProfile(t *testing.T) {
	p := testProfile()
	p.StdAmount = 0

	obs := &domain.TransactionObservation{
		ID:        "tx-006",
		UserID:    "user-001",
		Amount:    99999,
		Merchant:  "Grocery Mart",
		Timestamp: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}

	fv := Extract(obs, p, &Signals{})

	if fv.AmountZScore != 0 {
		t.Errorf("expected amount_zscore 0 with zero std, got %v", fv.AmountZScore)
	}
	if fv.LargeAmount != 0 {
		t.Errorf("expected large_amount 0 with zero std, got %v", fv.LargeAmount)
	}
}

func TestExtractAllValuesInRange(t *testing.T) {
	obs := &domain.TransactionObservation{
		ID:        "tx-007",
		UserID:    "user-001",
		Amount:    1e9,
		Merchant:  "Unknown Shop",
		Category:  "misc",
		Timestamp: time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC),
	}

	fv := Extract(obs, testProfile(), &Signals{Velocity1h: 7, Velocity24h: -1, LocationDistance: 2})

	for _, f := range domain.Features {
		v := fv.Value(f)
		if v < 0 || v > 1 {
			t.Errorf("feature %s out of range: %v", f, v)
		}
	}
}
