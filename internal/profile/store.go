// Package profile derives user risk profiles from observation history.
package profile

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Cold-start defaults for users with too little history to profile.
const (
	defaultAvgAmount = 250.0
	defaultStdAmount = 150.0

	// minObservations is the history size below which defaults apply.
	minObservations = 5

	// historyWindow bounds how far back profiling looks.
	historyWindow = 90 * 24 * time.Hour
)

// Store builds UserRiskProfile snapshots from the repository. Each call
// returns a fresh snapshot; callers must not retain one across analyses.
type Store struct {
	repo domain.Repository
}

// NewStore creates a profile store backed by a repository.
func NewStore(repo domain.Repository) *Store {
	return &Store{repo: repo}
}

// GetProfile derives a profile from the user's recent observations.
// Users with little or no history get conservative defaults.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.UserRiskProfile, error) {
	profile := defaultProfile(userID)
	if s.repo == nil {
		return profile, nil
	}

	since := time.Now().UTC().Add(-historyWindow)
	history, err := s.repo.ListObservationsByUser(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if len(history) < minObservations {
		return profile, nil
	}

	var sum float64
	merchants := make(map[string]struct{})
	categories := make(map[string]struct{})
	hours := make(map[int]struct{})
	var locations []domain.Geolocation

	for _, obs := range history {
		sum += obs.Amount
		if obs.Merchant != "" {
			merchants[obs.Merchant] = struct{}{}
		}
		if obs.Category != "" {
			categories[obs.Category] = struct{}{}
		}
		hours[obs.Timestamp.UTC().Hour()] = struct{}{}
		if obs.Location != nil {
			locations = appendLocation(locations, *obs.Location)
		}
	}

	avg := sum / float64(len(history))

	var variance float64
	for _, obs := range history {
		d := obs.Amount - avg
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(history)))

	profile.AvgAmount = avg
	profile.StdAmount = std
	profile.KnownMerchants = sortedKeys(merchants)
	profile.TypicalCategories = sortedKeys(categories)
	profile.TypicalHours = sortedHours(hours)
	profile.KnownLocations = locations

	return profile, nil
}

// defaultProfile is the cold-start profile: modest spending during
// business hours, nothing known about merchants or locations.
func defaultProfile(userID string) *domain.UserRiskProfile {
	return &domain.UserRiskProfile{
		UserID:       userID,
		AvgAmount:    defaultAvgAmount,
		StdAmount:    defaultStdAmount,
		TypicalHours: []int{9, 10, 11, 12, 13, 14, 15, 16, 17},
	}
}

// appendLocation deduplicates near-identical coordinates so the profile
// does not grow unbounded for users transacting from one place.
func appendLocation(locations []domain.Geolocation, loc domain.Geolocation) []domain.Geolocation {
	for _, known := range locations {
		if math.Abs(known.Latitude-loc.Latitude) < 0.01 &&
			math.Abs(known.Longitude-loc.Longitude) < 0.01 {
			return locations
		}
	}
	return append(locations, loc)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedHours(set map[int]struct{}) []int {
	hours := make([]int, 0, len(set))
	for h := range set {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}
