package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
store:
  path: /tmp/plan.db
planner:
  period_minutes: 60
  max_fleet_size: 40
logging:
  level: debug
  console: true
metrics:
  enabled: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "/tmp/plan.db" {
		t.Fatalf("store path: %v", cfg.Store.Path)
	}
	if cfg.Planner.PeriodMinutes != 60 || cfg.Planner.PeriodsPerDay() != 24 {
		t.Fatalf("planner grid: %+v", cfg.Planner)
	}
	if cfg.Planner.MaxFleetSize != 40 {
		t.Fatalf("max fleet: %d", cfg.Planner.MaxFleetSize)
	}
	// Unset constants fall back to the defaults.
	if cfg.Planner.ChargerEfficiency != 0.9 || cfg.Planner.PayloadDerogation != 725 {
		t.Fatalf("defaults not applied: %+v", cfg.Planner)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging: %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != "2112" {
		t.Fatalf("metrics: %+v", cfg.Metrics)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", "store:\n  path: base.db\n")
	t.Setenv("FP_STORE__PATH", "override.db")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "override.db" {
		t.Fatalf("environment override ignored: %v", cfg.Store.Path)
	}
}

func TestLoadRejectsBadGrid(t *testing.T) {
	path := writeConfig(t, "config.yaml", "planner:\n  period_minutes: 7\n")
	if _, err := Load(path); err == nil {
		t.Fatal("7-minute periods do not divide a day and must be rejected")
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := writeConfig(t, "config.yaml", "logging:\n  level: loud\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown log level must be rejected")
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unsupported extension must be rejected")
	}
}
