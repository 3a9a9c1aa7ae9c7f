// Package config loads semql configuration.
//
// Configuration is layered: built-in defaults, then the semql.yaml file,
// then SEMQL_ environment variables, then command-line flags. The result
// is shared by the CLI, the server and the REPL.
package config

import (
	"time"

	"github.com/leapstack-labs/semql/pkg/adapter"
	"github.com/leapstack-labs/semql/pkg/transform"
)

// Config holds all semql configuration options.
type Config struct {
	// Manifest is the manifest file, JSON or YAML.
	Manifest  string                     `koanf:"manifest"`
	Dialect   string                     `koanf:"dialect"`
	LogLevel  string                     `koanf:"log_level"`
	Verbose   bool                       `koanf:"verbose"`
	Output    string                     `koanf:"output"`
	Functions []transform.RemoteFunction `koanf:"functions"`
	Server    ServerConfig               `koanf:"server"`
	History   HistoryConfig              `koanf:"history"`

	// Source is the physical database models are checked against. Nil
	// means schemas are inferred from the manifest.
	Source *adapter.Config `koanf:"source"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// ServerConfig configures `semql serve`.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxConns        int           `koanf:"max_conns"`
	// Watch reloads the manifest when its file changes.
	Watch bool `koanf:"watch"`
}

// HistoryConfig configures the transform history store.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Default configuration values.
const (
	ConfigFileName    = "semql.yaml"
	ConfigFileNameAlt = "semql.yml"

	DefaultManifest        = "mdl.json"
	DefaultDialect         = "wren"
	DefaultLogLevel        = "info"
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultHistoryPath     = ".semql/history.db"
)

// defaults is the first configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"manifest":                DefaultManifest,
		"dialect":                 DefaultDialect,
		"log_level":               DefaultLogLevel,
		"verbose":                 false,
		"output":                  DefaultOutput,
		"server.addr":             DefaultAddr,
		"server.read_timeout":     DefaultReadTimeout.String(),
		"server.shutdown_timeout": DefaultShutdownTimeout.String(),
		"server.max_conns":        0,
		"server.watch":            true,
		"history.enabled":         false,
		"history.path":            DefaultHistoryPath,
	}
}
