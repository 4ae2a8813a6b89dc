package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "kestrel-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestObservationRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	obs := &domain.TransactionObservation{
		ID:        "tx-001",
		UserID:    "user-001",
		Amount:    129.99,
		Currency:  "USD",
		Merchant:  "Grocery Mart",
		Category:  "groceries",
		Timestamp: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		Location: &domain.Geolocation{
			Latitude:  40.7128,
			Longitude: -74.0060,
			City:      "New York",
			Region:    "NY",
		},
	}

	if err := repo.SaveObservation(ctx, obs); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := repo.GetObservation(ctx, "tx-001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.UserID != "user-001" || got.Amount != 129.99 || got.Merchant != "Grocery Mart" {
		t.Errorf("observation mismatch: %+v", got)
	}
	if got.Location == nil || got.Location.City != "New York" {
		t.Errorf("location not round-tripped: %+v", got.Location)
	}
}

func TestObservationWithoutOptionalFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	obs := &domain.TransactionObservation{
		ID:        "tx-bare",
		UserID:    "user-001",
		Amount:    10,
		Currency:  "USD",
		Timestamp: time.Now().UTC(),
	}

	if err := repo.SaveObservation(ctx, obs); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := repo.GetObservation(ctx, "tx-bare")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Merchant != "" || got.Category != "" {
		t.Errorf("expected empty merchant/category, got %q/%q", got.Merchant, got.Category)
	}
	if got.Location != nil {
		t.Errorf("expected nil location, got %+v", got.Location)
	}
}

func TestGetObservationNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetObservation(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndCountObservations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		obs := &domain.TransactionObservation{
			ID:        fmt.Sprintf("tx-%d", i),
			UserID:    "user-002",
			Amount:    float64(10 * i),
			Currency:  "USD",
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
		}
		if err := repo.SaveObservation(ctx, obs); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	since := now.Add(-2*time.Hour - time.Minute)
	list, err := repo.ListObservationsByUser(ctx, "user-002", since)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("expected 3 observations in window, got %d", len(list))
	}
	// Newest first.
	if len(list) > 1 && list[0].Timestamp.Before(list[1].Timestamp) {
		t.Error("expected observations ordered newest first")
	}

	count, err := repo.CountObservationsByUser(ctx, "user-002", since)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}

	users, err := repo.ListActiveUsers(ctx, since)
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 || users[0] != "user-002" {
		t.Errorf("expected active user user-002, got %v", users)
	}
}

func TestAssessmentRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := &domain.RiskAssessment{
		TransactionID:       "tx-001",
		AnalysisID:          "analysis-001",
		UserID:              "user-001",
		AnomalyScore:        87,
		RuleScore:           80,
		CompositeScore:      84.2,
		Severity:            domain.SeverityHigh,
		AlertType:           domain.AlertUnusualAmount,
		ContributingFactors: []domain.Feature{domain.FeatureLargeAmount, domain.FeatureMerchantNovelty},
		FiredRules: []domain.FiredRule{
			{Name: "large_amount", Points: 40},
			{Name: "new_merchant", Points: 25},
		},
		Features:           domain.FeatureVector{LargeAmount: 1, MerchantNovelty: 1, OffHours: 0.8},
		Explanation:        "Transaction amount significantly exceeds your typical spending.",
		RecommendedActions: []string{"Hold transaction for review"},
		RequiresReview:     true,
		AutoBlock:          false,
		AlertID:            "alert-001",
		AnalyzedAt:         time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC),
	}

	if err := repo.SaveAssessment(ctx, a); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := repo.GetAssessment(ctx, "analysis-001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CompositeScore != 84.2 || got.Severity != domain.SeverityHigh {
		t.Errorf("assessment mismatch: %+v", got)
	}
	if !got.RequiresReview || got.AutoBlock {
		t.Errorf("flags mismatch: review=%v block=%v", got.RequiresReview, got.AutoBlock)
	}
	if len(got.FiredRules) != 2 || got.FiredRules[0].Name != "large_amount" {
		t.Errorf("fired rules mismatch: %+v", got.FiredRules)
	}
	if got.Features.LargeAmount != 1 {
		t.Errorf("features mismatch: %+v", got.Features)
	}
	if got.AlertID != "alert-001" {
		t.Errorf("alert id mismatch: %s", got.AlertID)
	}
}

func TestAlertRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		alert := &domain.Alert{
			ID:            fmt.Sprintf("alert-%d", i),
			AssessmentID:  fmt.Sprintf("analysis-%d", i),
			TransactionID: fmt.Sprintf("tx-%d", i),
			UserID:        "user-003",
			Type:          domain.AlertUnusualAmount,
			Severity:      domain.SeverityHigh,
			Score:         85,
			Explanation:   "Transaction amount significantly exceeds your typical spending.",
			CreatedAt:     time.Now().UTC().Add(-time.Duration(i) * time.Minute),
		}
		if err := repo.SaveAlert(ctx, alert); err != nil {
			t.Fatalf("save alert failed: %v", err)
		}
	}

	alerts, err := repo.ListAlertsByUser(ctx, "user-003", 2)
	if err != nil {
		t.Fatalf("list alerts failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts with limit, got %d", len(alerts))
	}
	if alerts[0].ID != "alert-0" {
		t.Errorf("expected newest alert first, got %s", alerts[0].ID)
	}
	if alerts[0].Severity != domain.SeverityHigh {
		t.Errorf("severity mismatch: %s", alerts[0].Severity)
	}
}

func TestExecutionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	completed := started.Add(2 * time.Second)

	exec := &domain.WorkflowExecution{
		ID:          "wf_0123456789ab",
		Type:        domain.WorkflowExpenseProcessing,
		State:       domain.StateCompleted,
		Priority:    domain.PriorityNormal,
		InputRef:    "user-001",
		StartedAt:   started,
		CompletedAt: &completed,
		Result:      map[string]any{"status": "approved"},
	}

	if err := repo.SaveExecution(ctx, exec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := repo.GetExecution(ctx, "wf_0123456789ab")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Type != domain.WorkflowExpenseProcessing || got.State != domain.StateCompleted {
		t.Errorf("execution mismatch: %+v", got)
	}
	if got.CompletedAt == nil || got.FailedAt != nil {
		t.Errorf("timestamps mismatch: completed=%v failed=%v", got.CompletedAt, got.FailedAt)
	}

	// Upsert on the same id updates state instead of erroring.
	failed := completed.Add(time.Second)
	exec.State = domain.StateFailed
	exec.CompletedAt = nil
	exec.FailedAt = &failed
	exec.Error = "collaborator classify: timeout"
	if err := repo.SaveExecution(ctx, exec); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, _ = repo.GetExecution(ctx, "wf_0123456789ab")
	if got.State != domain.StateFailed || got.Error == "" {
		t.Errorf("expected failed state after upsert, got %+v", got)
	}
}

func TestExecutionNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetExecution(context.Background(), "wf_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
