package format

import (
	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/token"
)

func (p *Printer) formatSelectStmt(stmt *core.SelectStmt) {
	if stmt == nil {
		return
	}

	if stmt.With != nil {
		p.formatWithClause(stmt.With)
		p.sep()
	}

	if stmt.Body != nil {
		p.formatSelectBody(stmt.Body)
	}
}

func (p *Printer) formatWithClause(with *core.WithClause) {
	p.kw(token.WITH)
	if with.Recursive {
		p.space()
		p.kw(token.RECURSIVE)
	}
	p.space()

	p.formatList(len(with.CTEs), func(i int) {
		cte := with.CTEs[i]
		p.ident(cte.Name)
		p.space()
		p.kw(token.AS)
		p.space()
		p.formatSubquery(cte.Select)
	}, ", ", true)
}

// formatSubquery prints a parenthesized statement.
func (p *Printer) formatSubquery(stmt *core.SelectStmt) {
	p.write("(")
	if p.pretty {
		p.writeln()
		p.indent()
		p.formatSelectStmt(stmt)
		p.dedent()
		p.writeln()
	} else {
		p.formatSelectStmt(stmt)
	}
	p.write(")")
}

func (p *Printer) formatSelectBody(body *core.SelectBody) {
	if body == nil {
		return
	}

	p.formatSelectCore(body.Left)

	if body.Op == core.SetOpNone || body.Right == nil {
		return
	}

	p.sep()
	switch body.Op {
	case core.SetOpUnion:
		p.kw(token.UNION)
	case core.SetOpIntersect:
		p.kw(token.INTERSECT)
	case core.SetOpExcept:
		p.kw(token.EXCEPT)
	}
	if body.All {
		p.space()
		p.kw(token.ALL)
	}
	p.sep()
	p.formatSelectBody(body.Right)
}

func (p *Printer) formatSelectCore(sc *core.SelectCore) {
	if sc == nil {
		return
	}

	// SELECT [DISTINCT]
	p.kw(token.SELECT)
	if sc.Distinct {
		p.space()
		p.kw(token.DISTINCT)
	}

	if p.pretty {
		p.writeln()
		p.indent()
		p.formatList(len(sc.Columns), func(i int) { p.formatSelectItem(sc.Columns[i]) }, ", ", true)
		p.dedent()
	} else {
		p.space()
		p.formatList(len(sc.Columns), func(i int) { p.formatSelectItem(sc.Columns[i]) }, ", ", false)
	}

	if sc.From != nil {
		p.sep()
		p.kw(token.FROM)
		p.space()
		p.formatFromClause(sc.From)
	}

	if sc.Where != nil {
		p.sep()
		p.kw(token.WHERE)
		p.space()
		p.formatExpr(sc.Where)
	}

	if len(sc.GroupBy) > 0 {
		p.sep()
		p.kw(token.GROUP, token.BY)
		p.space()
		p.formatList(len(sc.GroupBy), func(i int) { p.formatExpr(sc.GroupBy[i]) }, ", ", false)
	}

	if sc.Having != nil {
		p.sep()
		p.kw(token.HAVING)
		p.space()
		p.formatExpr(sc.Having)
	}

	if len(sc.OrderBy) > 0 {
		p.sep()
		p.kw(token.ORDER, token.BY)
		p.space()
		p.formatOrderByList(sc.OrderBy)
	}

	if sc.Limit != nil {
		p.sep()
		p.kw(token.LIMIT)
		p.space()
		p.formatExpr(sc.Limit)
	}

	if sc.Offset != nil {
		p.sep()
		p.kw(token.OFFSET)
		p.space()
		p.formatExpr(sc.Offset)
	}
}

func (p *Printer) formatSelectItem(item core.SelectItem) {
	switch {
	case item.Star:
		p.write("*")
		return
	case len(item.TableStar) > 0:
		p.idents(item.TableStar)
		p.write(".*")
		return
	}

	p.formatExpr(item.Expr)
	if !item.Alias.IsZero() {
		p.space()
		p.kw(token.AS)
		p.space()
		p.ident(item.Alias)
	}
}

func (p *Printer) formatFromClause(from *core.FromClause) {
	p.formatTableRef(from.Source)

	for _, join := range from.Joins {
		p.formatJoin(join)
	}
}

func (p *Printer) formatJoin(join *core.Join) {
	if join.Type == core.JoinComma {
		p.write(", ")
		p.formatTableRef(join.Right)
		return
	}

	p.sep()
	if join.Natural {
		p.kw(token.NATURAL)
		p.space()
	}
	switch join.Type {
	case core.JoinLeft:
		p.kw(token.LEFT, token.JOIN)
	case core.JoinRight:
		p.kw(token.RIGHT, token.JOIN)
	case core.JoinFull:
		p.kw(token.FULL, token.JOIN)
	case core.JoinCross:
		p.kw(token.CROSS, token.JOIN)
	default:
		p.kw(token.INNER, token.JOIN)
	}
	p.space()
	p.formatTableRef(join.Right)

	switch {
	case join.Condition != nil:
		p.space()
		p.kw(token.ON)
		p.space()
		p.formatExpr(join.Condition)
	case len(join.Using) > 0:
		p.space()
		p.kw(token.USING)
		p.write(" (")
		p.formatList(len(join.Using), func(i int) { p.ident(join.Using[i]) }, ", ", false)
		p.write(")")
	}
}

func (p *Printer) formatTableRef(ref core.TableRef) {
	switch t := ref.(type) {
	case *core.TableName:
		p.idents(t.Parts)
		p.formatAlias(t.Alias)
	case *core.DerivedTable:
		p.formatSubquery(t.Select)
		p.formatAlias(t.Alias)
	}
}

func (p *Printer) formatAlias(alias core.Ident) {
	if alias.IsZero() {
		return
	}
	p.space()
	p.kw(token.AS)
	p.space()
	p.ident(alias)
}

func (p *Printer) formatOrderByList(items []core.OrderByItem) {
	p.formatList(len(items), func(i int) { p.formatOrderByItem(items[i]) }, ", ", false)
}

func (p *Printer) formatOrderByItem(item core.OrderByItem) {
	p.formatExpr(item.Expr)
	switch {
	case item.Desc:
		p.space()
		p.kw(token.DESC)
	case item.Explicit:
		p.space()
		p.kw(token.ASC)
	}
	if item.NullsFirst != nil {
		p.space()
		if *item.NullsFirst {
			p.kw(token.NULLS, token.FIRST)
		} else {
			p.kw(token.NULLS, token.LAST)
		}
	}
}
