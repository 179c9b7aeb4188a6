package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Debug {
		t.Error("debug on by default")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
	if cfg.Journal.Backend != JournalNone {
		t.Errorf("journal backend = %q, want %q", cfg.Journal.Backend, JournalNone)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("metrics addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
debug: true
graph: flows/main.dot
max_steps: 200
log:
  level: debug
  format: json
journal:
  backend: sqlite
  path: runs.db
metrics:
  enabled: true
  addr: ":9100"
tracing:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug || cfg.Graph != "flows/main.dot" || cfg.MaxSteps != 200 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Journal.Backend != JournalSQLite || cfg.Journal.Path != "runs.db" {
		t.Errorf("journal = %+v", cfg.Journal)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9100" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if !cfg.Tracing.Enabled {
		t.Errorf("tracing = %+v", cfg.Tracing)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WORKFLOW_DEBUG", "true")
	t.Setenv("WORKFLOW_LOG_LEVEL", "warn")
	t.Setenv("WORKFLOW_JOURNAL_BACKEND", "memory")
	t.Setenv("WORKFLOW_MAX_STEPS", "42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("WORKFLOW_DEBUG not applied")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Journal.Backend != JournalMemory {
		t.Errorf("journal backend = %q", cfg.Journal.Backend)
	}
	if cfg.MaxSteps != 42 {
		t.Errorf("max steps = %d", cfg.MaxSteps)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load accepted a missing file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("debug: [not a bool"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"sqlite without path", func(c *Config) { c.Journal = Journal{Backend: JournalSQLite} }, "requires path"},
		{"mysql without dsn", func(c *Config) { c.Journal = Journal{Backend: JournalMySQL} }, "requires dsn"},
		{"unknown backend", func(c *Config) { c.Journal = Journal{Backend: "etcd"} }, "unknown journal backend"},
		{"negative max steps", func(c *Config) { c.MaxSteps = -1 }, "must not be negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate = %v, want %q", err, tc.wantErr)
			}
		})
	}
}
