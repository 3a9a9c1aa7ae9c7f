package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

// ErrNotConnected is returned by every operation before Connect succeeds.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter provides the database/sql plumbing shared by adapters.
// Embed it in concrete adapters for Close, Exec, Query and the
// information_schema based introspection.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger

	// Placeholder formats the n-th bind parameter, 1-based. Nil means "?".
	Placeholder func(n int) string
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	b.logger().Debug("closing database connection")
	err := b.DB.Close()
	b.DB = nil
	return err
}

// Exec executes a statement that returns no rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*sql.Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// IsConnected reports whether Connect succeeded.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

func (b *BaseSQLAdapter) placeholder(n int) string {
	if b.Placeholder == nil {
		return "?"
	}
	return b.Placeholder(n)
}

// ParseQualifiedName splits a table reference into schema and name. An
// unqualified name uses def.
func ParseQualifiedName(table, def string) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return def, table
}

// DefaultSchema returns the configured schema, or the dialect default.
func (b *BaseSQLAdapter) DefaultSchema(d *dialect.Dialect) string {
	if b.Cfg.Schema != "" {
		return b.Cfg.Schema
	}
	return d.DefaultSchema
}

// TablesCommon lists base tables and views of schema from
// information_schema.tables.
func (b *BaseSQLAdapter) TablesCommon(ctx context.Context, schema string, d *dialect.Dialect) ([]string, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	if schema == "" {
		schema = b.DefaultSchema(d)
	}

	//nolint:gosec // placeholders are produced by the adapter
	query := fmt.Sprintf(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = %s
		ORDER BY table_name
	`, b.placeholder(1))

	rows, err := b.DB.QueryContext(ctx, query, schema)
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

// TableSchemaCommon reads the columns of a table from
// information_schema.columns.
func (b *BaseSQLAdapter) TableSchemaCommon(ctx context.Context, table string, d *dialect.Dialect) (mdl.Schema, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	schema, name := ParseQualifiedName(table, b.DefaultSchema(d))

	//nolint:gosec // placeholders are produced by the adapter
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, b.placeholder(1), b.placeholder(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fields mdl.Schema
	for rows.Next() {
		var f mdl.Field
		var nullable string
		if err := rows.Scan(&f.Name, &f.Type, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		f.Nullable = nullable == "YES"
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(fields) == 0 {
		return nil, &TableNotFoundError{Table: table}
	}
	return fields, nil
}

// TableNotFoundError is returned when introspection finds no columns for
// a table.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s not found", e.Table)
}
