// Package sqlite provides the SQLite SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package sqlite

import (
	"github.com/leapstack-labs/semql/pkg/dialect"
)

func init() {
	dialect.Register(SQLite, "sqlite3")
}

// SQLite extends the wren dialect with SQLite's function catalog.
var SQLite = dialect.Extend("sqlite", dialect.Wren).
	DefaultSchema("main").
	Keywords("GLOB", "REGEXP", "PRAGMA", "VACUUM", "AUTOINCREMENT").
	Aggregates("group_concat", "total").
	Scalars(
		"ifnull", "iif", "instr", "printf", "quote", "random", "randomblob",
		"unicode", "zeroblob", "julianday", "strftime", "datetime",
		"typeof", "sqlite_version", "likelihood", "unlikely",
	).
	Build()
