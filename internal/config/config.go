// Package config loads relfilter settings from RELFILTER_* environment
// variables. Command-line flags override what is loaded here.
package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Connector kinds a storage-engine key can be bound to.
const (
	KindSQL      = "sql"
	KindDocument = "document"
)

// Config is the process configuration.
type Config struct {
	// Format is the CLI output format: "text" or "json".
	Format string `env:"RELFILTER_FORMAT" envDefault:"text"`

	// LogLevel is the minimum slog level written to stderr.
	LogLevel slog.Level `env:"RELFILTER_LOG_LEVEL" envDefault:"warn"`

	// SchemaDir is the directory of CUE model files.
	SchemaDir string `env:"RELFILTER_SCHEMA_DIR" envDefault:"."`

	// DBPath is the SQLite database used by exec.
	DBPath string `env:"RELFILTER_DB" envDefault:"relfilter.db"`

	// Connectors binds storage-engine keys to connector kinds:
	//
	//	RELFILTER_CONNECTORS=bookshelf:sql,mongoose:document
	Connectors map[string]string `env:"RELFILTER_CONNECTORS" envDefault:"bookshelf:sql,mongoose:document" envSeparator:"," envKeyValSeparator:":"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: expected text or json", c.Format)
	}

	for _, key := range c.ConnectorKeys() {
		switch kind := c.Connectors[key]; kind {
		case KindSQL, KindDocument:
		default:
			return fmt.Errorf("connector %q: unknown kind %q (expected %s or %s)", key, kind, KindSQL, KindDocument)
		}
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("connector binding with empty storage-engine key")
		}
	}
	return nil
}

// ConnectorKeys returns the bound storage-engine keys in sorted order.
func (c Config) ConnectorKeys() []string {
	keys := make([]string, 0, len(c.Connectors))
	for k := range c.Connectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
