package dialect

// reservedKeywords are the words that must be quoted when used as
// identifiers. The table is shared by every dialect built from Wren.
var reservedKeywords = []string{
	"ALL", "ALTER", "AND", "ANY", "ARRAY", "AS", "ASC", "ASYMMETRIC", "AT",
	"AUTHORIZATION", "BEGIN", "BETWEEN", "BIGINT", "BINARY", "BOOLEAN",
	"BOTH", "BY", "CALL", "CASE", "CAST", "CHAR", "CHARACTER", "CHECK",
	"COLLATE", "COLUMN", "COMMIT", "CONSTRAINT", "CREATE", "CROSS", "CUBE",
	"CURRENT", "CURRENT_CATALOG", "CURRENT_DATE", "CURRENT_ROLE",
	"CURRENT_SCHEMA", "CURRENT_TIME", "CURRENT_TIMESTAMP", "CURRENT_USER",
	"DAY", "DECIMAL", "DECLARE", "DEFAULT", "DELETE", "DESC", "DESCRIBE",
	"DISTINCT", "DOUBLE", "DROP", "ELSE", "END", "ESCAPE", "EXCEPT",
	"EXECUTE", "EXISTS", "EXTRACT", "FALSE", "FETCH", "FILTER", "FIRST",
	"FLOAT", "FOLLOWING", "FOR", "FOREIGN", "FROM", "FULL", "FUNCTION",
	"GRANT", "GROUP", "GROUPING", "GROUPS", "HAVING", "HOUR", "ILIKE", "IN",
	"INNER", "INSERT", "INT", "INTEGER", "INTERSECT", "INTERVAL", "INTO",
	"IS", "JOIN", "LAST", "LATERAL", "LEADING", "LEFT", "LIKE", "LIMIT",
	"LOCALTIME", "LOCALTIMESTAMP", "MERGE", "MINUTE", "MONTH", "NATURAL",
	"NOT", "NULL", "NULLS", "NUMERIC", "OF", "OFFSET", "ON", "ONLY", "OR",
	"ORDER", "OUTER", "OVER", "OVERLAPS", "PARTITION", "PRECEDING", "PRIMARY",
	"QUALIFY", "RANGE", "RECURSIVE", "REFERENCES", "RETURNING", "REVOKE",
	"RIGHT", "ROLLBACK", "ROLLUP", "ROW", "ROWS", "SECOND", "SELECT",
	"SESSION_USER", "SET", "SIMILAR", "SMALLINT", "SOME", "SYMMETRIC",
	"TABLE", "TABLESAMPLE", "THEN", "TIME", "TIMESTAMP", "TO", "TRAILING",
	"TRUE", "UNBOUNDED", "UNION", "UNIQUE", "UNKNOWN", "UPDATE", "USER",
	"USING", "VALUES", "VARCHAR", "VARYING", "WHEN", "WHERE", "WINDOW",
	"WITH", "WITHIN", "YEAR",
}

// Builtin function catalog shared by the bundled dialects.
var (
	builtinAggregates = []string{
		"sum", "count", "avg", "min", "max", "mean",
		"stddev", "stddev_pop", "stddev_samp",
		"variance", "var_pop", "var_samp",
		"array_agg", "string_agg", "bool_and", "bool_or",
		"bit_and", "bit_or", "bit_xor",
		"corr", "covar_pop", "covar_samp",
		"regr_avgx", "regr_avgy", "regr_count", "regr_intercept",
		"regr_r2", "regr_slope", "regr_sxx", "regr_sxy", "regr_syy",
		"approx_distinct", "approx_median", "approx_percentile_cont",
		"median", "first_value_agg", "last_value_agg", "grouping",
	}

	builtinWindows = []string{
		"row_number", "rank", "dense_rank", "ntile", "percent_rank", "cume_dist",
		"lag", "lead", "first_value", "last_value", "nth_value",
	}

	builtinScalars = []string{
		// Conditional
		"coalesce", "nullif", "greatest", "least", "ifnull", "nvl",
		// Math
		"abs", "ceil", "ceiling", "floor", "round", "trunc", "sqrt", "cbrt",
		"exp", "ln", "log", "log2", "log10", "power", "pow", "mod",
		"sign", "signum", "pi", "random", "degrees", "radians",
		"sin", "cos", "tan", "asin", "acos", "atan", "atan2",
		// String
		"lower", "upper", "length", "char_length", "character_length",
		"octet_length", "bit_length", "concat", "concat_ws", "substr",
		"substring", "left", "right", "lpad", "rpad", "trim", "ltrim",
		"rtrim", "btrim", "replace", "reverse", "repeat", "split_part",
		"strpos", "position", "starts_with", "ends_with", "initcap",
		"ascii", "chr", "md5", "sha256", "to_hex", "translate",
		"regexp_like", "regexp_match", "regexp_replace",
		// Date and time
		"now", "current_date", "current_time", "current_timestamp",
		"date_trunc", "date_part", "datepart", "to_timestamp", "to_date",
		"to_char", "from_unixtime", "make_date", "date_bin",
		// Misc
		"to_json", "array_length", "cardinality", "uuid",
	}
)

// Wren is the default dialect. It quotes every identifier that is not
// already plain lower case.
var Wren = NewDialect("wren").
	Identifiers(`"`, `""`).
	IntervalStyle(IntervalSQLStandard).
	Keywords(reservedKeywords...).
	Aggregates(builtinAggregates...).
	Windows(builtinWindows...).
	Scalars(builtinScalars...).
	Aliases(map[string]string{
		"LEN":   "LENGTH",
		"UCASE": "UPPER",
		"LCASE": "LOWER",
	}).
	Build()

func init() {
	Register(Wren, "ansi")
	SetDefault(Wren)
}
