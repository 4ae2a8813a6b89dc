package profile

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newTestStore(t *testing.T) (*Store, domain.Repository) {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "profile-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return NewStore(repo), repo
}

func TestColdStartProfile(t *testing.T) {
	store, _ := newTestStore(t)

	p, err := store.GetProfile(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}

	if p.UserID != "new-user" {
		t.Errorf("user id mismatch: %s", p.UserID)
	}
	if p.AvgAmount != 250 || p.StdAmount != 150 {
		t.Errorf("expected cold-start defaults 250/150, got %v/%v", p.AvgAmount, p.StdAmount)
	}
	if !p.TypicalHour(12) || p.TypicalHour(2) {
		t.Errorf("expected business-hours default, got %v", p.TypicalHours)
	}
	if len(p.KnownMerchants) != 0 {
		t.Errorf("expected no known merchants, got %v", p.KnownMerchants)
	}
}

func TestDerivedProfile(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	amounts := []float64{100, 100, 100, 200, 200, 200}
	for i, amount := range amounts {
		obs := &domain.TransactionObservation{
			ID:        fmt.Sprintf("tx-%d", i),
			UserID:    "user-010",
			Amount:    amount,
			Currency:  "USD",
			Merchant:  "Grocery Mart",
			Category:  "groceries",
			Timestamp: time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, time.UTC).Add(-time.Duration(i) * 24 * time.Hour),
			Location:  &domain.Geolocation{Latitude: 40.7128, Longitude: -74.0060, City: "New York"},
		}
		if err := repo.SaveObservation(ctx, obs); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	p, err := store.GetProfile(ctx, "user-010")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}

	if math.Abs(p.AvgAmount-150) > 1e-9 {
		t.Errorf("expected avg 150, got %v", p.AvgAmount)
	}
	if math.Abs(p.StdAmount-50) > 1e-9 {
		t.Errorf("expected std 50, got %v", p.StdAmount)
	}
	if !p.KnowsMerchant("Grocery Mart") {
		t.Errorf("expected merchant to be known: %v", p.KnownMerchants)
	}
	if !p.TypicalCategory("groceries") {
		t.Errorf("expected category to be typical: %v", p.TypicalCategories)
	}
	if !p.TypicalHour(10) {
		t.Errorf("expected hour 10 typical: %v", p.TypicalHours)
	}

	// Near-identical coordinates collapse into one known location.
	if len(p.KnownLocations) != 1 {
		t.Errorf("expected 1 deduplicated location, got %d", len(p.KnownLocations))
	}
}

func TestThinHistoryFallsBackToDefaults(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	// Below the minimum history size.
	for i := 0; i < 3; i++ {
		obs := &domain.TransactionObservation{
			ID:        fmt.Sprintf("tx-thin-%d", i),
			UserID:    "user-011",
			Amount:    9999,
			Currency:  "USD",
			Timestamp: time.Now().UTC(),
		}
		if err := repo.SaveObservation(ctx, obs); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	p, err := store.GetProfile(ctx, "user-011")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}
	if p.AvgAmount != 250 || p.StdAmount != 150 {
		t.Errorf("expected defaults for thin history, got %v/%v", p.AvgAmount, p.StdAmount)
	}
}
