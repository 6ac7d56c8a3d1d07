package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration of the planner service.
type Config struct {
	Store   StoreConfig   `json:"store"`
	Planner Planner       `json:"planner"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`
}

// StoreConfig locates the persistence backend.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "fleetplan.db"
	}
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.Port == "" {
		c.Port = "2112"
	}
}

// Load reads the configuration file, applies FP_ environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fp_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Store.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Planner.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Planner.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
