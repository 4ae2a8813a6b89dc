package collab

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// forecastHorizonDays is the projection length.
const forecastHorizonDays = 30

// StaticForecaster produces deterministic cashflow projections from a
// seasonal curve seeded by the user id. It stands in for a real forecasting
// service; the shape is stable across calls for the same user and day.
type StaticForecaster struct {
	logger *slog.Logger
}

// NewStaticForecaster creates the bundled forecaster.
func NewStaticForecaster(logger *slog.Logger) *StaticForecaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticForecaster{logger: logger}
}

// GenerateForecast implements domain.Forecaster.
func (f *StaticForecaster) GenerateForecast(ctx context.Context, userID string) (*domain.Forecast, error) {
	h := fnv.New32a()
	h.Write([]byte(userID))
	base := 500 + float64(h.Sum32()%2000)

	start := time.Now().UTC().Truncate(24 * time.Hour)
	points := make([]domain.ForecastPoint, 0, forecastHorizonDays)
	for day := 0; day < forecastHorizonDays; day++ {
		// Weekly seasonality around the user's baseline.
		expected := base * (1 + 0.2*math.Sin(2*math.Pi*float64(day)/7))
		spread := expected * 0.15
		points = append(points, domain.ForecastPoint{
			Date:     start.AddDate(0, 0, day+1),
			Expected: round2(expected),
			Lower:    round2(expected - spread),
			Upper:    round2(expected + spread),
		})
	}

	return &domain.Forecast{
		ForecastID:  uuid.New().String(),
		UserID:      userID,
		HorizonDays: forecastHorizonDays,
		Points:      points,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// RefreshForecast implements domain.Forecaster.
func (f *StaticForecaster) RefreshForecast(ctx context.Context, userID string, latest *domain.ExpenseRecord) error {
	if _, err := f.GenerateForecast(ctx, userID); err != nil {
		return err
	}

	amount := 0.0
	if latest != nil {
		amount = latest.Amount
	}
	f.logger.Info("forecast refreshed",
		"user_id", userID,
		"latest_expense", amount)
	return nil
}
