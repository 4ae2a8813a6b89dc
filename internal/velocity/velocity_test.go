package velocity

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newTestService(t *testing.T) (*Service, domain.Repository) {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "velocity-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	lru := cache.NewLRUCache(100)
	t.Cleanup(func() { lru.Close() })

	return NewService(repo, lru, DefaultConfig()), repo
}

func TestSignalsDefaultsWithoutHistory(t *testing.T) {
	svc, _ := newTestService(t)

	obs := &domain.TransactionObservation{
		ID:        "tx-001",
		UserID:    "user-001",
		Amount:    50,
		Timestamp: time.Now().UTC(),
	}

	sig, err := svc.Signals(context.Background(), obs, &domain.UserRiskProfile{UserID: "user-001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// First observation of the hour: no prior activity.
	if sig.Velocity1h != 0 {
		t.Errorf("expected velocity_1h 0, got %v", sig.Velocity1h)
	}
	if sig.Velocity24h != 0 {
		t.Errorf("expected velocity_24h 0, got %v", sig.Velocity24h)
	}
}

func TestSignalsHourlyVelocity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	profile := &domain.UserRiskProfile{UserID: "user-002"}

	var last float64
	for i := 0; i < 6; i++ {
		obs := &domain.TransactionObservation{
			ID:        fmt.Sprintf("tx-%d", i),
			UserID:    "user-002",
			Amount:    50,
			Timestamp: time.Now().UTC(),
		}
		sig, err := svc.Signals(ctx, obs, profile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		last = sig.Velocity1h
	}

	// Sixth call sees five prior observations against a ceiling of five.
	if last != 1.0 {
		t.Errorf("expected velocity_1h saturated at 1.0, got %v", last)
	}
}

func TestSignalsDailyVelocity(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		obs := &domain.TransactionObservation{
			ID:        fmt.Sprintf("hist-%d", i),
			UserID:    "user-003",
			Amount:    25,
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
		}
		if err := repo.SaveObservation(ctx, obs); err != nil {
			t.Fatalf("failed to save observation: %v", err)
		}
	}

	obs := &domain.TransactionObservation{
		ID:        "tx-now",
		UserID:    "user-003",
		Amount:    25,
		Timestamp: now,
	}
	sig, err := svc.Signals(ctx, obs, &domain.UserRiskProfile{UserID: "user-003"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10 observations against a ceiling of 20.
	if diff := sig.Velocity24h - 0.5; math.Abs(diff) > 1e-9 {
		t.Errorf("expected velocity_24h 0.5, got %v", sig.Velocity24h)
	}
}

func TestSignalsLocationDistance(t *testing.T) {
	svc, _ := newTestService(t)

	home := domain.Geolocation{Latitude: 40.7128, Longitude: -74.0060, City: "New York"}
	profile := &domain.UserRiskProfile{
		UserID:         "user-004",
		KnownLocations: []domain.Geolocation{home},
	}

	t.Run("SameCity", func(t *testing.T) {
		obs := &domain.TransactionObservation{
			ID:        "tx-local",
			UserID:    "user-004",
			Timestamp: time.Now().UTC(),
			Location:  &domain.Geolocation{Latitude: 40.73, Longitude: -73.99},
		}
		sig, _ := svc.Signals(context.Background(), obs, profile)
		if sig.LocationDistance > 0.05 {
			t.Errorf("expected near-zero distance signal, got %v", sig.LocationDistance)
		}
	})

	t.Run("FarAway", func(t *testing.T) {
		obs := &domain.TransactionObservation{
			ID:        "tx-remote",
			UserID:    "user-004",
			Timestamp: time.Now().UTC(),
			// Los Angeles, ~3900 km from New York.
			Location: &domain.Geolocation{Latitude: 34.0522, Longitude: -118.2437},
		}
		sig, _ := svc.Signals(context.Background(), obs, profile)
		if sig.LocationDistance != 1.0 {
			t.Errorf("expected saturated distance signal, got %v", sig.LocationDistance)
		}
	})

	t.Run("NoLocation", func(t *testing.T) {
		obs := &domain.TransactionObservation{
			ID:        "tx-nowhere",
			UserID:    "user-004",
			Timestamp: time.Now().UTC(),
		}
		sig, _ := svc.Signals(context.Background(), obs, profile)
		def := features.DefaultSignals().LocationDistance
		if sig.LocationDistance != def {
			t.Errorf("expected default distance signal %v, got %v", def, sig.LocationDistance)
		}
	})
}

func TestHaversine(t *testing.T) {
	ny := domain.Geolocation{Latitude: 40.7128, Longitude: -74.0060}
	la := domain.Geolocation{Latitude: 34.0522, Longitude: -118.2437}

	d := haversineKm(ny, la)
	if d < 3800 || d > 4050 {
		t.Errorf("expected NY-LA distance ~3940km, got %v", d)
	}

	if d := haversineKm(ny, ny); d != 0 {
		t.Errorf("expected zero distance for same point, got %v", d)
	}
}
