package format

import (
	"strings"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/token"
)

// precedenceAtom is the binding power of expressions that never need
// parentheses: literals, references, calls and bracketed forms.
const precedenceAtom = core.PrecedencePostfix + 1

// precedence returns how tightly e binds when printed.
func precedence(e core.Expr) int {
	switch expr := e.(type) {
	case *core.BinaryExpr:
		return core.BinaryPrecedence(expr.Op)
	case *core.UnaryExpr:
		if expr.Op == token.NOT {
			return core.PrecedenceNot
		}
		return core.PrecedenceUnary
	case *core.IsNullExpr, *core.IsBoolExpr, *core.InExpr, *core.BetweenExpr, *core.LikeExpr:
		return core.PrecedenceComparison
	default:
		return precedenceAtom
	}
}

func (p *Printer) formatExpr(e core.Expr) {
	if e == nil {
		return
	}

	switch expr := e.(type) {
	case *core.Literal:
		p.formatLiteral(expr)
	case *core.TypedLiteral:
		p.keyword(expr.TypeName)
		p.space()
		p.writeString(expr.Value)
	case *core.IntervalExpr:
		p.formatInterval(expr)
	case *core.ColumnRef:
		p.idents(expr.Parts())
	case *core.BinaryExpr:
		p.formatBinaryExpr(expr)
	case *core.UnaryExpr:
		p.formatUnaryExpr(expr)
	case *core.FuncCall:
		p.formatFuncCall(expr)
	case *core.CaseExpr:
		p.formatCaseExpr(expr)
	case *core.CastExpr:
		p.formatCastExpr(expr)
	case *core.ExtractExpr:
		p.keyword("EXTRACT")
		p.write("(")
		p.keyword(expr.Field)
		p.space()
		p.kw(token.FROM)
		p.space()
		p.formatExpr(expr.Expr)
		p.write(")")
	case *core.InExpr:
		p.formatInExpr(expr)
	case *core.BetweenExpr:
		p.formatBetweenExpr(expr)
	case *core.IsNullExpr:
		p.formatOperand(expr.Expr, core.PrecedenceComparison)
		p.space()
		p.kw(token.IS)
		if expr.Not {
			p.space()
			p.kw(token.NOT)
		}
		p.space()
		p.kw(token.NULL)
	case *core.IsBoolExpr:
		p.formatOperand(expr.Expr, core.PrecedenceComparison)
		p.space()
		p.kw(token.IS)
		if expr.Not {
			p.space()
			p.kw(token.NOT)
		}
		p.space()
		if expr.Value {
			p.kw(token.TRUE)
		} else {
			p.kw(token.FALSE)
		}
	case *core.LikeExpr:
		p.formatLikeExpr(expr)
	case *core.ParenExpr:
		p.write("(")
		p.formatExpr(expr.Expr)
		p.write(")")
	case *core.SubqueryExpr:
		p.formatSubquery(expr.Select)
	case *core.ExistsExpr:
		if expr.Not {
			p.kw(token.NOT)
			p.space()
		}
		p.kw(token.EXISTS)
		p.space()
		p.formatSubquery(expr.Select)
	}
}

// formatOperand prints e, parenthesized when it binds looser than min.
func (p *Printer) formatOperand(e core.Expr, min int) {
	if precedence(e) < min {
		p.write("(")
		p.formatExpr(e)
		p.write(")")
		return
	}
	p.formatExpr(e)
}

func (p *Printer) writeString(s string) {
	p.write("'" + strings.ReplaceAll(s, "'", "''") + "'")
}

func (p *Printer) formatLiteral(lit *core.Literal) {
	switch lit.Type {
	case core.LiteralString:
		p.writeString(lit.Value)
	case core.LiteralBool:
		if strings.EqualFold(lit.Value, "true") {
			p.kw(token.TRUE)
		} else {
			p.kw(token.FALSE)
		}
	case core.LiteralNull:
		p.kw(token.NULL)
	default:
		p.write(lit.Value)
	}
}

func (p *Printer) formatInterval(iv *core.IntervalExpr) {
	p.kw(token.INTERVAL)
	p.space()
	switch {
	case iv.Unit == "":
		p.writeString(iv.Value)
	case p.dialect.IntervalStyle() == dialect.IntervalPostgres:
		p.writeString(iv.Value + " " + iv.Unit)
	default:
		p.writeString(iv.Value)
		p.space()
		p.keyword(iv.Unit)
	}
}

func (p *Printer) formatBinaryExpr(expr *core.BinaryExpr) {
	prec := core.BinaryPrecedence(expr.Op)

	// operators associate to the left, so an equal-precedence right
	// operand keeps its grouping only inside parentheses
	p.formatOperand(expr.Left, prec)
	p.space()
	p.kw(expr.Op)
	p.space()
	p.formatOperand(expr.Right, prec+1)
}

func (p *Printer) formatUnaryExpr(expr *core.UnaryExpr) {
	p.kw(expr.Op)
	if expr.Op == token.NOT {
		p.space()
		p.formatOperand(expr.Expr, core.PrecedenceNot)
		return
	}
	// "- -x" must not collapse into a line comment
	if _, nested := expr.Expr.(*core.UnaryExpr); nested {
		p.space()
	}
	p.formatOperand(expr.Expr, core.PrecedenceUnary)
}

func (p *Printer) formatFuncCall(fn *core.FuncCall) {
	p.write(p.dialect.FunctionName(fn.Name.Name))
	p.write("(")

	if fn.Distinct {
		p.kw(token.DISTINCT)
		p.space()
	}

	if fn.Star {
		p.write("*")
	} else {
		p.formatList(len(fn.Args), func(i int) { p.formatExpr(fn.Args[i]) }, ", ", false)
	}

	p.write(")")

	// FILTER clause
	if fn.Filter != nil {
		p.space()
		p.kw(token.FILTER)
		p.write(" (")
		p.kw(token.WHERE)
		p.space()
		p.formatExpr(fn.Filter)
		p.write(")")
	}

	// OVER clause (window function)
	if fn.Window != nil {
		p.space()
		p.formatWindowSpec(fn.Window)
	}
}

func (p *Printer) formatWindowSpec(w *core.WindowSpec) {
	p.kw(token.OVER)
	p.write(" (")

	var parts int
	if len(w.PartitionBy) > 0 {
		p.kw(token.PARTITION, token.BY)
		p.space()
		p.formatList(len(w.PartitionBy), func(i int) { p.formatExpr(w.PartitionBy[i]) }, ", ", false)
		parts++
	}

	if len(w.OrderBy) > 0 {
		if parts > 0 {
			p.space()
		}
		p.kw(token.ORDER, token.BY)
		p.space()
		p.formatOrderByList(w.OrderBy)
		parts++
	}

	if w.Frame != nil {
		if parts > 0 {
			p.space()
		}
		p.formatFrameSpec(w.Frame)
	}

	p.write(")")
}

func (p *Printer) formatFrameSpec(f *core.FrameSpec) {
	p.keyword(string(f.Type))
	p.space()
	if f.End == nil {
		p.formatFrameBound(f.Start)
		return
	}
	p.kw(token.BETWEEN)
	p.space()
	p.formatFrameBound(f.Start)
	p.space()
	p.kw(token.AND)
	p.space()
	p.formatFrameBound(f.End)
}

func (p *Printer) formatFrameBound(b *core.FrameBound) {
	if b == nil {
		return
	}
	switch b.Type {
	case core.FrameUnboundedPreceding:
		p.kw(token.UNBOUNDED, token.PRECEDING)
	case core.FrameUnboundedFollowing:
		p.kw(token.UNBOUNDED, token.FOLLOWING)
	case core.FrameCurrentRow:
		p.kw(token.CURRENT, token.ROW)
	case core.FrameExprPreceding:
		p.formatOperand(b.Offset, core.PrecedenceAddition)
		p.space()
		p.kw(token.PRECEDING)
	case core.FrameExprFollowing:
		p.formatOperand(b.Offset, core.PrecedenceAddition)
		p.space()
		p.kw(token.FOLLOWING)
	}
}

func (p *Printer) formatCaseExpr(c *core.CaseExpr) {
	p.kw(token.CASE)

	if c.Operand != nil {
		p.space()
		p.formatExpr(c.Operand)
	}

	for _, w := range c.Whens {
		p.space()
		p.kw(token.WHEN)
		p.space()
		p.formatExpr(w.Condition)
		p.space()
		p.kw(token.THEN)
		p.space()
		p.formatExpr(w.Result)
	}

	if c.Else != nil {
		p.space()
		p.kw(token.ELSE)
		p.space()
		p.formatExpr(c.Else)
	}

	p.space()
	p.kw(token.END)
}

func (p *Printer) formatCastExpr(c *core.CastExpr) {
	p.kw(token.CAST)
	p.write("(")
	p.formatExpr(c.Expr)
	p.space()
	p.kw(token.AS)
	p.space()
	p.write(c.TypeName)
	p.write(")")
}

func (p *Printer) formatInExpr(in *core.InExpr) {
	p.formatOperand(in.Expr, core.PrecedenceComparison)
	p.space()
	if in.Not {
		p.kw(token.NOT)
		p.space()
	}
	p.kw(token.IN)
	p.space()

	if in.Query != nil {
		p.formatSubquery(in.Query)
		return
	}
	p.write("(")
	p.formatList(len(in.Values), func(i int) { p.formatExpr(in.Values[i]) }, ", ", false)
	p.write(")")
}

func (p *Printer) formatBetweenExpr(b *core.BetweenExpr) {
	p.formatOperand(b.Expr, core.PrecedenceComparison)
	p.space()
	if b.Not {
		p.kw(token.NOT)
		p.space()
	}
	p.kw(token.BETWEEN)
	p.space()
	p.formatOperand(b.Low, core.PrecedenceAddition)
	p.space()
	p.kw(token.AND)
	p.space()
	p.formatOperand(b.High, core.PrecedenceAddition)
}

func (p *Printer) formatLikeExpr(l *core.LikeExpr) {
	p.formatOperand(l.Expr, core.PrecedenceComparison)
	p.space()
	if l.Not {
		p.kw(token.NOT)
		p.space()
	}
	p.kw(l.Op)
	p.space()
	p.formatOperand(l.Pattern, core.PrecedenceAddition)
}
