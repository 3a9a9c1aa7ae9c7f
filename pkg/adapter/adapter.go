// Package adapter connects semql to physical databases.
//
// An Adapter introspects a database catalog so that a manifest can be
// validated against the real tables instead of the schemas inferred from
// the manifest itself, and so that a manifest skeleton can be generated
// from an existing database. Tables returned by an adapter implement
// mdl.DataSource.
//
// Concrete adapters live in pkg/adapters/ and register themselves from
// their init functions:
//
//	import _ "github.com/leapstack-labs/semql/pkg/adapters/duckdb"
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

// Config is the connection configuration of an adapter.
type Config struct {
	// Type selects the registered adapter ("duckdb", "postgres", "sqlite").
	Type string `koanf:"type" mapstructure:"type" json:"type" yaml:"type"`

	// Path is the database file for embedded engines. Empty means an
	// in-memory database.
	Path string `koanf:"path" mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`

	Database string `koanf:"database" mapstructure:"database" json:"database,omitempty" yaml:"database,omitempty"`
	Host     string `koanf:"host" mapstructure:"host" json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `koanf:"port" mapstructure:"port" json:"port,omitempty" yaml:"port,omitempty"`
	Username string `koanf:"user" mapstructure:"user" json:"user,omitempty" yaml:"user,omitempty"`
	Password string `koanf:"password" mapstructure:"password" json:"-" yaml:"-"`

	// Schema is the schema introspected when a table name is unqualified.
	// Empty means the dialect default.
	Schema string `koanf:"schema" mapstructure:"schema" json:"schema,omitempty" yaml:"schema,omitempty"`

	// Options holds driver options such as sslmode.
	Options map[string]string `koanf:"options" mapstructure:"options" json:"options,omitempty" yaml:"options,omitempty"`

	// Params holds adapter specific settings, decoded by the adapter.
	Params map[string]any `koanf:"params" mapstructure:"params" json:"params,omitempty" yaml:"params,omitempty"`
}

// Adapter is a connection to a physical database.
type Adapter interface {
	// Connect opens the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string) error

	// Query runs a statement that returns rows. The caller closes them.
	Query(ctx context.Context, sql string) (*sql.Rows, error)

	// Tables lists the tables of schema, sorted. Empty means the
	// configured schema.
	Tables(ctx context.Context, schema string) ([]string, error)

	// TableSchema returns the columns of a table named "table" or
	// "schema.table", in ordinal order.
	TableSchema(ctx context.Context, table string) (mdl.Schema, error)

	// Dialect returns the dialect queries against this database are
	// printed with.
	Dialect() *dialect.Dialect
}
