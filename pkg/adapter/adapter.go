// Package adapter defines the database contract used to run preview queries.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves from init(). Import them with a blank identifier:
//
//	import _ "github.com/leapstack-labs/reportdsl/pkg/adapters/duckdb"
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the settings for connecting to a database.
type Config struct {
	// Type selects the registered adapter (e.g. "duckdb", "postgres", "sqlite").
	Type string `json:"type" yaml:"type"`

	// Path is the file path for file-based databases. Empty means in-memory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	Username string `json:"user,omitempty" yaml:"user,omitempty"`
	Password string `json:"-" yaml:"password,omitempty"`
	Schema   string `json:"schema,omitempty" yaml:"schema,omitempty"`

	// Options are driver connection options (e.g. sslmode).
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`

	// Params holds adapter-specific settings decoded by the adapter itself.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Rows wraps the rows of a query so callers can collect them with Collect.
type Rows struct {
	*sql.Rows
}

// Adapter is implemented by every database target a preview can run against.
type Adapter interface {
	// Connect opens the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query runs a statement that returns rows. Args bind to the
	// placeholders produced by Placeholder.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// DialectName names the SQL dialect spoken by the adapter.
	DialectName() string
}
