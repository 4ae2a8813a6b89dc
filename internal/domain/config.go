package domain

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `koanf:"server"`

	// Component configurations
	Repository RepositoryConfig `koanf:"repository"`
	Cache      CacheConfig      `koanf:"cache"`
	EventBus   EventBusConfig   `koanf:"event_bus"`

	// Pipeline tuning
	Workflow WorkflowConfig `koanf:"workflow"`
	Scoring  ScoringConfig  `koanf:"scoring"`

	// Observability
	Logging LoggingConfig `koanf:"logging"`
	Tracing TracingConfig `koanf:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds
}

// WorkflowConfig holds orchestration settings.
type WorkflowConfig struct {
	// CollaboratorTimeout bounds every outbound collaborator call, in seconds.
	CollaboratorTimeout int `koanf:"collaborator_timeout"`

	// MaterialityThreshold is the expense amount above which fraud
	// analysis runs during expense processing.
	MaterialityThreshold float64 `koanf:"materiality_threshold"`

	// ReviewConfidence is the classification confidence below which an
	// expense is routed to manual review.
	ReviewConfidence float64 `koanf:"review_confidence"`

	// ForecastRefreshInterval drives the periodic forecast refresh, in seconds.
	// Zero disables the periodic task.
	ForecastRefreshInterval int `koanf:"forecast_refresh_interval"`
}

// ScoringConfig holds fraud scoring settings.
type ScoringConfig struct {
	// Velocity ceilings normalize raw transaction counts to [0,1].
	Velocity1hCeiling  int `koanf:"velocity_1h_ceiling"`
	Velocity24hCeiling int `koanf:"velocity_24h_ceiling"`

	// GeoDistanceCapKm normalizes location distance to [0,1].
	GeoDistanceCapKm float64 `koanf:"geo_distance_cap_km"`

	// MaxRuleWorkers limits concurrent rule evaluations per analysis.
	MaxRuleWorkers int `koanf:"max_rule_workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ServiceName  string `koanf:"service_name"`
	ExporterType string `koanf:"exporter_type"` // stdout, otlp
	Endpoint     string `koanf:"endpoint"`
}

// DefaultConfig returns a default configuration: SQLite + in-process
// channels + local LRU cache, suitable for a single node.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Workflow: WorkflowConfig{
			CollaboratorTimeout:     30,
			MaterialityThreshold:    100,
			ReviewConfidence:        0.9,
			ForecastRefreshInterval: 0,
		},
		Scoring: ScoringConfig{
			Velocity1hCeiling:  5,
			Velocity24hCeiling: 20,
			GeoDistanceCapKm:   500,
			MaxRuleWorkers:     10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// DistributedConfig returns a configuration for multi-node deployments:
// PostgreSQL + NATS + two-phase Redis cache.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
