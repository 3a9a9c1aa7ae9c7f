// Package duckdb provides the DuckDB SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import (
	"github.com/leapstack-labs/semql/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

// DuckDB extends the wren dialect with DuckDB's function catalog.
var DuckDB = dialect.Extend("duckdb", dialect.Wren).
	DefaultSchema("main").
	Keywords("PIVOT", "UNPIVOT", "QUALIFY", "ASOF", "POSITIONAL").
	Aggregates(
		"list", "first", "last", "any_value", "arbitrary", "mode",
		"quantile", "quantile_cont", "quantile_disc",
		"approx_count_distinct", "approx_quantile",
		"histogram", "entropy", "kurtosis", "skewness",
		"product", "fsum", "favg", "mad", "group_concat",
	).
	Scalars(
		"list_value", "list_extract", "struct_pack", "strftime", "strptime",
		"epoch", "epoch_ms", "today", "age", "datediff", "date_diff",
		"date_add", "date_sub", "regexp_extract", "string_split",
		"if", "iff", "typeof", "hash",
	).
	Aliases(map[string]string{
		"COLLECT_LIST": "LIST",
		"COLLECT_SET":  "LIST",
	}).
	Build()
