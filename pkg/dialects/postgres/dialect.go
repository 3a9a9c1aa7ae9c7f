// Package postgres provides the PostgreSQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import (
	"github.com/leapstack-labs/semql/pkg/dialect"
)

func init() {
	dialect.Register(Postgres, "postgresql")
}

// postgresReservedWords are PostgreSQL reserved words missing from the
// wren table. For a complete list, use pg_get_keywords() at runtime.
var postgresReservedWords = []string{
	"analyse", "analyze", "deferrable", "do", "freeze", "initially",
	"isnull", "notnull", "placing", "variadic", "verbose",
}

// Postgres is the PostgreSQL dialect. Interval literals use the
// 'n unit' form Postgres prints itself.
var Postgres = dialect.Extend("postgres", dialect.Wren).
	DefaultSchema("public").
	IntervalStyle(dialect.IntervalPostgres).
	Keywords(postgresReservedWords...).
	Aggregates(
		"jsonb_agg", "jsonb_object_agg", "json_agg", "json_object_agg",
		"every", "percentile_cont", "percentile_disc", "mode", "xmlagg",
	).
	Scalars(
		"age", "to_number", "jsonb_build_object", "json_build_object",
		"jsonb_extract_path", "string_to_array", "array_to_string",
		"gen_random_uuid", "clock_timestamp", "statement_timestamp",
		"format", "quote_ident", "quote_literal",
	).
	Build()
