// Package velocity computes normalized velocity and geo-distance signals
// for fraud analysis.
package velocity

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
)

const earthRadiusKm = 6371.0

// Config tunes signal normalization.
type Config struct {
	// Velocity1hCeiling and Velocity24hCeiling map raw counts to [0,1]:
	// count/ceiling, capped at 1.
	Velocity1hCeiling  int
	Velocity24hCeiling int

	// GeoDistanceCapKm maps kilometers from the nearest known location
	// to [0,1]: distance/cap, capped at 1.
	GeoDistanceCapKm float64
}

// DefaultConfig returns the default normalization ceilings.
func DefaultConfig() Config {
	return Config{
		Velocity1hCeiling:  5,
		Velocity24hCeiling: 20,
		GeoDistanceCapKm:   500,
	}
}

// Service computes signals from the transaction counter cache and the
// observation history. Either data source may be absent; the corresponding
// signals degrade to defaults.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
	cfg   Config
}

// NewService creates a signal service.
func NewService(repo domain.Repository, cache domain.Cache, cfg Config) *Service {
	if cfg.Velocity1hCeiling <= 0 {
		cfg.Velocity1hCeiling = DefaultConfig().Velocity1hCeiling
	}
	if cfg.Velocity24hCeiling <= 0 {
		cfg.Velocity24hCeiling = DefaultConfig().Velocity24hCeiling
	}
	if cfg.GeoDistanceCapKm <= 0 {
		cfg.GeoDistanceCapKm = DefaultConfig().GeoDistanceCapKm
	}
	return &Service{repo: repo, cache: cache, cfg: cfg}
}

// Signals computes the velocity and geo signals for one observation.
// Counts the observation into the hourly window as a side effect, so call
// exactly once per analyzed observation. Unavailable sources yield the
// neutral defaults for their signals.
func (s *Service) Signals(ctx context.Context, obs *domain.TransactionObservation, profile *domain.UserRiskProfile) (features.Signals, error) {
	sig := features.DefaultSignals()

	if s.cache != nil {
		key := fmt.Sprintf("velocity:1h:%s", obs.UserID)
		count, err := s.cache.IncrementCounter(ctx, key, time.Hour)
		if err == nil {
			// IncrementCounter counts this call too; subtract it so the
			// signal reflects prior activity.
			sig.Velocity1h = normalize(count-1, s.cfg.Velocity1hCeiling)
		}
	}

	if s.repo != nil {
		since := obs.Timestamp.Add(-24 * time.Hour)
		count, err := s.repo.CountObservationsByUser(ctx, obs.UserID, since)
		if err == nil {
			sig.Velocity24h = normalize(int64(count), s.cfg.Velocity24hCeiling)
		}
	}

	if obs.Location != nil && profile != nil && len(profile.KnownLocations) > 0 {
		nearest := math.MaxFloat64
		for _, loc := range profile.KnownLocations {
			d := haversineKm(*obs.Location, loc)
			if d < nearest {
				nearest = d
			}
		}
		sig.LocationDistance = math.Min(nearest/s.cfg.GeoDistanceCapKm, 1)
	}

	return sig, nil
}

func normalize(count int64, ceiling int) float64 {
	if count <= 0 {
		return 0
	}
	v := float64(count) / float64(ceiling)
	if v > 1 {
		return 1
	}
	return v
}

// haversineKm returns the great-circle distance between two points.
func haversineKm(a, b domain.Geolocation) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
