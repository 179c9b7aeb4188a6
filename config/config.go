// Package config loads runtime configuration for the workflow
// automator from a YAML file, with environment variable overrides for
// deployment settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Journal backends.
const (
	JournalNone   = "none"
	JournalMemory = "memory"
	JournalSQLite = "sqlite"
	JournalMySQL  = "mysql"
)

// Config holds all application configuration. Zero values fall back to
// the defaults applied by Load.
type Config struct {
	// Debug delivers debug instructions to the console.
	Debug bool `yaml:"debug"`

	// Graph is the path of a DOT graph description. Empty runs the
	// built-in demo workflow in routine-driven mode.
	Graph string `yaml:"graph"`

	// MaxSteps caps committed transitions per run; 0 means unlimited.
	MaxSteps int `yaml:"max_steps"`

	Log     Logging `yaml:"log"`
	Journal Journal `yaml:"journal"`
	Metrics Metrics `yaml:"metrics"`
	Tracing Tracing `yaml:"tracing"`
}

// Logging configures the diagnostics logger.
type Logging struct {
	// Level is a logrus level name ("debug", "info", "warn", ...).
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Journal configures run-transcript recording.
type Journal struct {
	// Backend is one of none, memory, sqlite, mysql.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// DSN is the MySQL data source name. Prefer the WORKFLOW_MYSQL_DSN
	// environment variable over committing credentials to a file.
	DSN string `yaml:"dsn"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Tracing configures the OpenTelemetry tracer provider.
type Tracing struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:     Logging{Level: "info", Format: "text"},
		Journal: Journal{Backend: JournalNone, Path: "workflow.db"},
		Metrics: Metrics{Addr: ":9090"},
	}
}

// Load reads the YAML file at path (skipped when empty), applies
// environment overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = JournalNone
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays WORKFLOW_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("WORKFLOW_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("WORKFLOW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WORKFLOW_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WORKFLOW_JOURNAL_BACKEND"); v != "" {
		cfg.Journal.Backend = v
	}
	if v := os.Getenv("WORKFLOW_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("WORKFLOW_MYSQL_DSN"); v != "" {
		cfg.Journal.DSN = v
	}
	if v := os.Getenv("WORKFLOW_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("WORKFLOW_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSteps = n
		}
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Journal.Backend {
	case JournalNone, JournalMemory:
	case JournalSQLite:
		if c.Journal.Path == "" {
			return fmt.Errorf("journal backend %q requires path", c.Journal.Backend)
		}
	case JournalMySQL:
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal backend %q requires dsn", c.Journal.Backend)
		}
	default:
		return fmt.Errorf("unknown journal backend %q", c.Journal.Backend)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}
	return nil
}
