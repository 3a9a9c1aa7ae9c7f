package format

import (
	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/dialect"
)

// SQL prints a statement on a single line. A nil dialect means
// dialect.Default().
func SQL(stmt *core.SelectStmt, d *dialect.Dialect) string {
	p := newPrinter(d, false)
	p.formatSelectStmt(stmt)
	return p.String()
}

// Pretty prints a statement with one clause per line and indented
// subqueries.
func Pretty(stmt *core.SelectStmt, d *dialect.Dialect) string {
	p := newPrinter(d, true)
	p.formatSelectStmt(stmt)
	return p.String()
}

// Expr prints a single expression.
func Expr(e core.Expr, d *dialect.Dialect) string {
	p := newPrinter(d, false)
	p.formatExpr(e)
	return p.String()
}
