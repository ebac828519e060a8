// Package config reads csc settings from the environment. Command-line
// flags default to these values and override them.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds environment-level settings.
type Config struct {
	// DB is the SQLite attempt store path. Empty disables the store.
	DB string `env:"CSC_DB"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"CSC_LOG_LEVEL" envDefault:"warn"`

	// Format is the CLI output format: text or json.
	Format string `env:"CSC_FORMAT" envDefault:"text"`

	// MetricsNamespace prefixes every exported metric.
	MetricsNamespace string `env:"CSC_METRICS_NAMESPACE" envDefault:"csc"`

	// Journal is the JSONL decisions journal path. Empty disables it.
	Journal string `env:"CSC_JOURNAL"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	switch cfg.Format {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("CSC_FORMAT: unsupported format %q (want text or json)", cfg.Format)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
