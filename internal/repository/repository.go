// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveObservation stores a transaction observation.
func (r *SQLRepository) SaveObservation(ctx context.Context, obs *domain.TransactionObservation) error {
	if obs == nil || obs.ID == "" {
		return fmt.Errorf("%w: observation id is required", ErrInvalidInput)
	}

	var lat, lon sql.NullFloat64
	var city, region sql.NullString
	if obs.Location != nil {
		lat = sql.NullFloat64{Float64: obs.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: obs.Location.Longitude, Valid: true}
		city = sql.NullString{String: obs.Location.City, Valid: true}
		region = sql.NullString{String: obs.Location.Region, Valid: true}
	}

	query := `
		INSERT INTO observations (
			id, user_id, amount, currency, merchant, category,
			timestamp, latitude, longitude, city, region, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		obs.ID, obs.UserID, obs.Amount, obs.Currency,
		nullString(obs.Merchant), nullString(obs.Category),
		obs.Timestamp, lat, lon, city, region,
		time.Now().UTC(),
	)
	return err
}

// GetObservation retrieves an observation by ID.
func (r *SQLRepository) GetObservation(ctx context.Context, obsID string) (*domain.TransactionObservation, error) {
	query := `
		SELECT id, user_id, amount, currency, merchant, category,
			   timestamp, latitude, longitude, city, region
		FROM observations
		WHERE id = ?
	`

	obs, err := scanObservation(r.db.QueryRowContext(ctx, r.rebind(query), obsID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return obs, err
}

// ListObservationsByUser retrieves a user's observations since a point in time,
// newest first.
func (r *SQLRepository) ListObservationsByUser(ctx context.Context, userID string, since time.Time) ([]*domain.TransactionObservation, error) {
	query := `
		SELECT id, user_id, amount, currency, merchant, category,
			   timestamp, latitude, longitude, city, region
		FROM observations
		WHERE user_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []*domain.TransactionObservation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// CountObservationsByUser counts a user's observations since a point in time.
func (r *SQLRepository) CountObservationsByUser(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM observations WHERE user_id = ? AND timestamp >= ?`

	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(query), userID, since).Scan(&count)
	return count, err
}

// ListActiveUsers returns the distinct user ids with observations since a
// point in time.
func (r *SQLRepository) ListActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM observations WHERE timestamp >= ? ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// SaveAssessment stores a risk assessment.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.RiskAssessment) error {
	if a == nil || a.AnalysisID == "" {
		return fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}

	factors, _ := json.Marshal(a.ContributingFactors)
	fired, _ := json.Marshal(a.FiredRules)
	features, _ := json.Marshal(a.Features)
	actions, _ := json.Marshal(a.RecommendedActions)

	query := `
		INSERT INTO assessments (
			analysis_id, transaction_id, user_id,
			anomaly_score, rule_score, composite_score,
			severity, alert_type, contributing_factors, fired_rules,
			features, explanation, recommended_actions,
			requires_review, auto_block, alert_id, analyzed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.AnalysisID, a.TransactionID, a.UserID,
		a.AnomalyScore, a.RuleScore, a.CompositeScore,
		string(a.Severity), a.AlertType, string(factors), string(fired),
		string(features), a.Explanation, string(actions),
		boolInt(a.RequiresReview), boolInt(a.AutoBlock),
		nullString(a.AlertID), a.AnalyzedAt,
	)
	return err
}

// GetAssessment retrieves a risk assessment by analysis ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, analysisID string) (*domain.RiskAssessment, error) {
	query := `
		SELECT analysis_id, transaction_id, user_id,
			   anomaly_score, rule_score, composite_score,
			   severity, alert_type, contributing_factors, fired_rules,
			   features, explanation, recommended_actions,
			   requires_review, auto_block, alert_id, analyzed_at
		FROM assessments
		WHERE analysis_id = ?
	`

	var a domain.RiskAssessment
	var severity, factors, fired, features, actions string
	var requiresReview, autoBlock int
	var alertID sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), analysisID).Scan(
		&a.AnalysisID, &a.TransactionID, &a.UserID,
		&a.AnomalyScore, &a.RuleScore, &a.CompositeScore,
		&severity, &a.AlertType, &factors, &fired,
		&features, &a.Explanation, &actions,
		&requiresReview, &autoBlock, &alertID, &a.AnalyzedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Severity = domain.Severity(severity)
	a.RequiresReview = requiresReview != 0
	a.AutoBlock = autoBlock != 0
	a.AlertID = alertID.String
	json.Unmarshal([]byte(factors), &a.ContributingFactors)
	json.Unmarshal([]byte(fired), &a.FiredRules)
	json.Unmarshal([]byte(features), &a.Features)
	json.Unmarshal([]byte(actions), &a.RecommendedActions)

	return &a, nil
}

// SaveAlert stores a fraud alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO alerts (
			id, assessment_id, transaction_id, user_id,
			type, severity, score, explanation, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.AssessmentID, alert.TransactionID, alert.UserID,
		alert.Type, string(alert.Severity), alert.Score,
		alert.Explanation, alert.CreatedAt,
	)
	return err
}

// ListAlertsByUser retrieves a user's alerts, newest first.
func (r *SQLRepository) ListAlertsByUser(ctx context.Context, userID string, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, assessment_id, transaction_id, user_id,
			   type, severity, score, explanation, created_at
		FROM alerts
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var alert domain.Alert
		var severity string
		if err := rows.Scan(
			&alert.ID, &alert.AssessmentID, &alert.TransactionID, &alert.UserID,
			&alert.Type, &severity, &alert.Score,
			&alert.Explanation, &alert.CreatedAt,
		); err != nil {
			return nil, err
		}
		alert.Severity = domain.Severity(severity)
		alerts = append(alerts, &alert)
	}
	return alerts, rows.Err()
}

// SaveExecution stores a terminal workflow execution snapshot.
// Upserts so a retried write after completion is harmless.
func (r *SQLRepository) SaveExecution(ctx context.Context, exec *domain.WorkflowExecution) error {
	if exec == nil || exec.ID == "" {
		return fmt.Errorf("%w: workflow id is required", ErrInvalidInput)
	}

	var result sql.NullString
	if exec.Result != nil {
		data, err := json.Marshal(exec.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	var completedAt, failedAt sql.NullTime
	if exec.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *exec.CompletedAt, Valid: true}
	}
	if exec.FailedAt != nil {
		failedAt = sql.NullTime{Time: *exec.FailedAt, Valid: true}
	}

	query := `
		INSERT INTO workflow_executions (
			id, type, state, priority, input_ref,
			started_at, completed_at, failed_at, result, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			completed_at = excluded.completed_at,
			failed_at = excluded.failed_at,
			result = excluded.result,
			error = excluded.error
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		exec.ID, string(exec.Type), string(exec.State), string(exec.Priority),
		nullString(exec.InputRef), exec.StartedAt, completedAt, failedAt,
		result, nullString(exec.Error),
	)
	return err
}

// GetExecution retrieves a workflow execution snapshot by ID.
func (r *SQLRepository) GetExecution(ctx context.Context, workflowID string) (*domain.WorkflowExecution, error) {
	query := `
		SELECT id, type, state, priority, input_ref,
			   started_at, completed_at, failed_at, result, error
		FROM workflow_executions
		WHERE id = ?
	`

	var exec domain.WorkflowExecution
	var typ, state, priority string
	var inputRef, result, execErr sql.NullString
	var completedAt, failedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, r.rebind(query), workflowID).Scan(
		&exec.ID, &typ, &state, &priority, &inputRef,
		&exec.StartedAt, &completedAt, &failedAt, &result, &execErr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	exec.Type = domain.WorkflowType(typ)
	exec.State = domain.WorkflowState(state)
	exec.Priority = domain.Priority(priority)
	exec.InputRef = inputRef.String
	exec.Error = execErr.String
	if completedAt.Valid {
		exec.CompletedAt = &completedAt.Time
	}
	if failedAt.Valid {
		exec.FailedAt = &failedAt.Time
	}
	if result.Valid && result.String != "" {
		var payload any
		if err := json.Unmarshal([]byte(result.String), &payload); err == nil {
			exec.Result = payload
		}
	}

	return &exec, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*domain.TransactionObservation, error) {
	var obs domain.TransactionObservation
	var merchant, category, city, region sql.NullString
	var lat, lon sql.NullFloat64

	err := row.Scan(
		&obs.ID, &obs.UserID, &obs.Amount, &obs.Currency,
		&merchant, &category, &obs.Timestamp,
		&lat, &lon, &city, &region,
	)
	if err != nil {
		return nil, err
	}

	obs.Merchant = merchant.String
	obs.Category = category.String
	if lat.Valid && lon.Valid {
		obs.Location = &domain.Geolocation{
			Latitude:  lat.Float64,
			Longitude: lon.Float64,
			City:      city.String,
			Region:    region.String,
		}
	}

	return &obs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
