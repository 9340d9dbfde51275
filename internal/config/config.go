// Package config loads dataflowd's process configuration from a YAML
// file, with individual fields overridable by environment variables at
// startup.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full set of knobs a dataflowd process needs at
// startup: pool shape, the HTTP front door, and the two optional
// sinks spec.md §6 names (audit logging, remote peek delivery).
type Config struct {
	NumWorkers int    `yaml:"num_workers"`
	ListenAddr string `yaml:"listen_addr"`

	// AuditDatabaseURL, if set, wires internal/audit.Log behind an
	// AuditingHandler. Empty disables audit logging entirely.
	AuditDatabaseURL string `yaml:"audit_database_url"`

	// RemoteSinkURL, if set, delivers peeks to an external HTTP
	// endpoint (internal/results.Remote) instead of the Local
	// in-process registry.
	RemoteSinkURL string `yaml:"remote_sink_url"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// defaults mirrors the teacher's own fallback values for unset fields.
func defaults() Config {
	return Config{
		NumWorkers:     4,
		ListenAddr:     ":8080",
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
}

// Load reads path as YAML, then applies environment overrides the way
// main.go in the teacher resolves DB_URL/API_PORT ahead of file
// defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATAFLOWD_NUM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NumWorkers = n
		}
	}
	if v := os.Getenv("DATAFLOWD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATAFLOWD_AUDIT_DATABASE_URL"); v != "" {
		cfg.AuditDatabaseURL = v
	}
	if v := os.Getenv("DATAFLOWD_REMOTE_SINK_URL"); v != "" {
		cfg.RemoteSinkURL = v
	}
	if v := os.Getenv("DATAFLOWD_RATE_LIMIT_RPS"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = n
		}
	}
	if v := os.Getenv("DATAFLOWD_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitBurst = n
		}
	}

	return &cfg, nil
}
