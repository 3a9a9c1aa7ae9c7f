package core

import "github.com/leapstack-labs/semql/pkg/token"

// ---------- Expression Types ----------

// ColumnRef represents a column reference, qualified by up to three parts
// (catalog.schema.table.column).
type ColumnRef struct {
	NodeInfo
	Qualifier []Ident
	Column    Ident
}

func (*ColumnRef) exprNode() {}

// Table returns the innermost qualifier, or the zero Ident.
func (c *ColumnRef) Table() Ident {
	if len(c.Qualifier) == 0 {
		return Ident{}
	}
	return c.Qualifier[len(c.Qualifier)-1]
}

// Parts returns qualifier and column as one chain.
func (c *ColumnRef) Parts() []Ident {
	parts := make([]Ident, 0, len(c.Qualifier)+1)
	parts = append(parts, c.Qualifier...)
	return append(parts, c.Column)
}

// Literal represents a literal value.
type Literal struct {
	NodeInfo
	Type  LiteralType
	Value string
}

func (*Literal) exprNode() {}

// LiteralType represents the type of a literal.
type LiteralType int

// LiteralType constants for SQL literal value types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// IntervalExpr represents INTERVAL 'value' [unit].
type IntervalExpr struct {
	NodeInfo
	Value string
	Unit  string // upper case, empty when the unit lives inside Value
}

func (*IntervalExpr) exprNode() {}

// TypedLiteral represents a literal prefixed by its type: DATE '2024-01-01'.
type TypedLiteral struct {
	NodeInfo
	TypeName string // upper case
	Value    string
}

func (*TypedLiteral) exprNode() {}

// ExtractExpr represents EXTRACT(field FROM expr).
type ExtractExpr struct {
	NodeInfo
	Field string // upper case
	Expr  Expr
}

func (*ExtractExpr) exprNode() {}

// BinaryExpr represents a binary expression.
type BinaryExpr struct {
	NodeInfo
	Left  Expr
	Op    token.TokenType
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression.
type UnaryExpr struct {
	NodeInfo
	Op   token.TokenType
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	NodeInfo
	Name     Ident
	Distinct bool
	Args     []Expr
	Star     bool        // COUNT(*)
	Window   *WindowSpec // OVER clause
	Filter   Expr        // FILTER (WHERE ...) clause
}

func (*FuncCall) exprNode() {}

// WindowSpec represents a window specification (OVER clause).
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameSpec represents a window frame specification.
type FrameSpec struct {
	Type  FrameType
	Start *FrameBound
	End   *FrameBound // nil without BETWEEN
}

// FrameType represents the type of window frame.
type FrameType string

// FrameType constants for window frame specification types.
const (
	FrameRows   FrameType = "ROWS"
	FrameRange  FrameType = "RANGE"
	FrameGroups FrameType = "GROUPS"
)

// FrameBound represents a window frame bound.
type FrameBound struct {
	Type   FrameBoundType
	Offset Expr // for N PRECEDING/FOLLOWING
}

// FrameBoundType represents the type of frame bound.
type FrameBoundType string

// FrameBoundType constants for window frame bound types.
const (
	FrameUnboundedPreceding FrameBoundType = "UNBOUNDED PRECEDING"
	FrameUnboundedFollowing FrameBoundType = "UNBOUNDED FOLLOWING"
	FrameCurrentRow         FrameBoundType = "CURRENT ROW"
	FrameExprPreceding      FrameBoundType = "PRECEDING"
	FrameExprFollowing      FrameBoundType = "FOLLOWING"
)

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	NodeInfo
	Operand Expr // CASE operand WHEN... (optional)
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// WhenClause represents a WHEN clause in CASE expression.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(expr AS type) or expr::type.
type CastExpr struct {
	NodeInfo
	Expr     Expr
	TypeName string
}

func (*CastExpr) exprNode() {}

// InExpr represents expr [NOT] IN (values) or (subquery).
type InExpr struct {
	NodeInfo
	Expr   Expr
	Not    bool
	Values []Expr
	Query  *SelectStmt
}

func (*InExpr) exprNode() {}

// BetweenExpr represents expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// IsNullExpr represents expr IS [NOT] NULL.
type IsNullExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
}

func (*IsNullExpr) exprNode() {}

// IsBoolExpr represents expr IS [NOT] TRUE/FALSE.
type IsBoolExpr struct {
	NodeInfo
	Expr  Expr
	Not   bool
	Value bool
}

func (*IsBoolExpr) exprNode() {}

// LikeExpr represents expr [NOT] LIKE|ILIKE pattern.
type LikeExpr struct {
	NodeInfo
	Expr    Expr
	Not     bool
	Pattern Expr
	Op      token.TokenType // LIKE or ILIKE
}

func (*LikeExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	NodeInfo
	Expr Expr
}

func (*ParenExpr) exprNode() {}

// SubqueryExpr represents a scalar subquery.
type SubqueryExpr struct {
	NodeInfo
	Select *SelectStmt
}

func (*SubqueryExpr) exprNode() {}

// ExistsExpr represents [NOT] EXISTS (subquery).
type ExistsExpr struct {
	NodeInfo
	Not    bool
	Select *SelectStmt
}

func (*ExistsExpr) exprNode() {}

// ---------- Precedence Constants ----------

// Operator precedence levels.
const (
	PrecedenceNone       = 0
	PrecedenceOr         = 1
	PrecedenceAnd        = 2
	PrecedenceNot        = 3
	PrecedenceComparison = 4
	PrecedenceAddition   = 5
	PrecedenceMultiply   = 6
	PrecedenceUnary      = 7
	PrecedencePostfix    = 8
)

// BinaryPrecedence returns the binding power of a binary operator.
func BinaryPrecedence(op token.TokenType) int {
	switch op {
	case token.OR:
		return PrecedenceOr
	case token.AND:
		return PrecedenceAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE:
		return PrecedenceComparison
	case token.PLUS, token.MINUS, token.DPIPE:
		return PrecedenceAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return PrecedenceMultiply
	default:
		return PrecedenceNone
	}
}
