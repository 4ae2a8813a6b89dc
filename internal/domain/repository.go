package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Observation operations
	SaveObservation(ctx context.Context, obs *TransactionObservation) error
	GetObservation(ctx context.Context, obsID string) (*TransactionObservation, error)
	ListObservationsByUser(ctx context.Context, userID string, since time.Time) ([]*TransactionObservation, error)
	CountObservationsByUser(ctx context.Context, userID string, since time.Time) (int, error)
	ListActiveUsers(ctx context.Context, since time.Time) ([]string, error)

	// Assessment results
	SaveAssessment(ctx context.Context, a *RiskAssessment) error
	GetAssessment(ctx context.Context, analysisID string) (*RiskAssessment, error)

	// Alert operations
	SaveAlert(ctx context.Context, alert *Alert) error
	ListAlertsByUser(ctx context.Context, userID string, limit int) ([]*Alert, error)

	// Workflow execution snapshots (written once at terminal state)
	SaveExecution(ctx context.Context, exec *WorkflowExecution) error
	GetExecution(ctx context.Context, workflowID string) (*WorkflowExecution, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `koanf:"driver"`

	// SQLite specific
	SQLitePath string `koanf:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `koanf:"postgres_host"`
	PostgresPort     int    `koanf:"postgres_port"`
	PostgresUser     string `koanf:"postgres_user"`
	PostgresPassword string `koanf:"postgres_password"`
	PostgresDB       string `koanf:"postgres_db"`
	PostgresSSLMode  string `koanf:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}
