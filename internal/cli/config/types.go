// Package config provides configuration management for the reportdsl CLI.
//
// Settings are layered with koanf: built-in defaults, then reportdsl.yaml,
// then REPORTDSL_ environment variables, then explicitly set flags.
package config

import (
	"time"

	"github.com/leapstack-labs/reportdsl/internal/starlark"
	"github.com/leapstack-labs/reportdsl/pkg/adapter"
)

// Config holds all CLI configuration options.
type Config struct {
	// ConfigDir is the root of the report scripts tree.
	ConfigDir string `koanf:"config_dir"`
	// StatePath is the script history database. "none" disables history.
	StatePath string         `koanf:"state_path"`
	Verbose   bool           `koanf:"verbose"`
	Output    string         `koanf:"output"`
	Preview   *PreviewConfig `koanf:"preview"`
	Target    *TargetConfig  `koanf:"target"`
	Server    *ServerConfig  `koanf:"server"`

	// Targets are named alternatives merged over Target with --target.
	Targets map[string]*TargetConfig `koanf:"targets"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// PreviewConfig controls trial executions.
type PreviewConfig struct {
	Limit   int           `koanf:"limit"`
	Timeout time.Duration `koanf:"timeout"`
	// BackendURL is the remote execution backend used by --backend previews.
	BackendURL string `koanf:"backend_url"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// TargetConfig holds the database previews run against.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres, sqlite

	// File path for duckdb and sqlite, database name for postgres.
	// Empty means in-memory for the file-based types.
	Database string `koanf:"database"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, settings)
	Params map[string]any `koanf:"params"`
}

// AdapterConfig converts the target to the adapter connection settings.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	cfg := adapter.Config{
		Type:     t.Type,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
	if t.Type != "postgres" && t.Database != ":memory:" {
		cfg.Path = t.Database
	}
	return cfg
}

// TargetInfo returns the credential-free view exposed to data-source scripts.
func (t *TargetConfig) TargetInfo() *starlark.TargetInfo {
	return &starlark.TargetInfo{
		Type:     t.Type,
		Schema:   t.Schema,
		Database: t.Database,
	}
}

// Default configuration values.
const (
	DefaultConfigDir    = "."
	DefaultStateFile    = ".reportdsl/history.db"
	DefaultOutput       = "table"
	DefaultTargetType   = "duckdb"
	DefaultPreviewLimit = 100
	DefaultTimeout      = 30 * time.Second
	DefaultServerPort   = 8765

	// NoHistory as state_path disables script history.
	NoHistory = "none"
)

// OutputFormats lists the accepted values of --output.
var OutputFormats = []string{"table", "json", "csv", "md"}
