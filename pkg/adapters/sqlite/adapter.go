// Package sqlite provides a SQLite database adapter for semql, backed by
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/semql/pkg/adapter"
	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/dialects/sqlite"
	"github.com/leapstack-labs/semql/pkg/mdl"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Connect opens the database file at cfg.Path, or an in-memory database
// when the path is empty.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// Tables lists the tables and views of an attached schema, "main" by
// default.
func (a *Adapter) Tables(ctx context.Context, schema string) ([]string, error) {
	if a.DB == nil {
		return nil, adapter.ErrNotConnected
	}
	if schema == "" {
		schema = a.DefaultSchema(sqlite.SQLite)
	}

	//nolint:gosec // schema is quoted
	query := fmt.Sprintf(`
		SELECT name
		FROM %s.sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%%'
		ORDER BY name
	`, sqlite.SQLite.QuoteIdentifier(schema))

	rows, err := a.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// TableSchema reads the columns of a table with the table_info pragma.
func (a *Adapter) TableSchema(ctx context.Context, table string) (mdl.Schema, error) {
	if a.DB == nil {
		return nil, adapter.ErrNotConnected
	}

	schema, name := adapter.ParseQualifiedName(table, a.DefaultSchema(sqlite.SQLite))
	rows, err := a.DB.QueryContext(ctx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?, ?) ORDER BY cid`, name, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fields mdl.Schema
	for rows.Next() {
		var f mdl.Field
		var notNull, pk int
		if err := rows.Scan(&f.Name, &f.Type, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		// declared types are free text; an empty type has no affinity
		f.Type = strings.ToUpper(f.Type)
		f.Nullable = notNull == 0 && pk == 0
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(fields) == 0 {
		return nil, &adapter.TableNotFoundError{Table: table}
	}
	return fields, nil
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return sqlite.SQLite
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
