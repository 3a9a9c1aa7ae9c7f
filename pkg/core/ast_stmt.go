package core

// ---------- Statement Types ----------

// SelectStmt represents a complete SELECT statement.
type SelectStmt struct {
	NodeInfo
	With *WithClause
	Body *SelectBody
}

func (*SelectStmt) stmtNode() {}

// WithClause represents WITH [RECURSIVE] cte, ...
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
}

// CTE represents a Common Table Expression.
type CTE struct {
	Name   Ident
	Select *SelectStmt
}

// SelectBody represents the body of a SELECT with optional set operations.
type SelectBody struct {
	Left  *SelectCore
	Op    SetOpType
	All   bool
	Right *SelectBody
}

// SetOpType represents the type of set operation.
type SetOpType string

// SetOpType constants for SQL set operations.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// Cores returns every SelectCore of the body, left to right.
func (b *SelectBody) Cores() []*SelectCore {
	var out []*SelectCore
	for body := b; body != nil; body = body.Right {
		out = append(out, body.Left)
	}
	return out
}

// SelectCore represents the core SELECT clause.
type SelectCore struct {
	Distinct bool
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool    // SELECT *
	TableStar []Ident // SELECT t.*
	Expr      Expr
	Alias     Ident
}

// OrderByItem represents an item in ORDER BY clause.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	Explicit   bool // ASC or DESC written out
	NullsFirst *bool
}
