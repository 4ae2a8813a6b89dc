// Package config loads the Kestrel configuration from defaults, an
// optional YAML file, and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Load builds a Config by layering sources, lowest precedence first:
//  1. defaults (domain.DefaultConfig)
//  2. YAML file named by KESTREL_CONFIG, if set
//  3. environment variables with the KESTREL_ prefix
//
// Env keys use a double underscore between nesting levels so single
// underscores inside a key survive: KESTREL_SERVER__PORT maps to
// server.port, KESTREL_EVENT_BUS__NATS_URL to event_bus.nats_url.
func Load() (*domain.Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("KESTREL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("KESTREL_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "KESTREL_"))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *domain.DefaultConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that would fail at startup.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown repository driver %q", cfg.Repository.Driver)
	}

	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}

	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("unknown event bus type %q", cfg.EventBus.Type)
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}

	if cfg.Workflow.ReviewConfidence < 0 || cfg.Workflow.ReviewConfidence > 1 {
		return fmt.Errorf("review confidence %v outside [0,1]", cfg.Workflow.ReviewConfidence)
	}

	return nil
}
