package core

// ---------- Table References ----------

// TableRef is the interface for table references in FROM clause.
type TableRef interface {
	Node
	tableRef()
}

// FromClause represents the FROM clause.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// Join represents a JOIN clause.
type Join struct {
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr
	Using     []Ident
}

// JoinType represents the type of join.
type JoinType string

// JoinType constants.
const (
	JoinComma JoinType = ","
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
)

// TableName represents a table reference by name, 1 to 3 parts.
type TableName struct {
	NodeInfo
	Parts []Ident
	Alias Ident
}

func (*TableName) tableRef() {}

// Name returns the last part of the reference.
func (t *TableName) Name() Ident {
	if len(t.Parts) == 0 {
		return Ident{}
	}
	return t.Parts[len(t.Parts)-1]
}

// EffectiveName returns the alias if present, otherwise the table name.
func (t *TableName) EffectiveName() Ident {
	if !t.Alias.IsZero() {
		return t.Alias
	}
	return t.Name()
}

// DerivedTable represents a subquery in FROM clause.
type DerivedTable struct {
	NodeInfo
	Select *SelectStmt
	Alias  Ident
}

func (*DerivedTable) tableRef() {}
