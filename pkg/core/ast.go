package core

import (
	"strings"

	"github.com/leapstack-labs/semql/pkg/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	// Pos returns the position of the first character of the node.
	Pos() token.Position
	// End returns the position of the character immediately after the node.
	End() token.Position
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode() // Marker method to distinguish expressions
}

// Stmt is a marker interface for statement nodes.
type Stmt interface {
	Node
	stmtNode() // Marker method to distinguish statements
}

// NodeInfo carries the source span of a node. Nodes built by the
// rewriter rather than the parser have a zero span.
type NodeInfo struct {
	Span token.Span
}

// Pos implements Node.
func (n NodeInfo) Pos() token.Position { return n.Span.Start }

// End implements Node.
func (n NodeInfo) End() token.Position { return n.Span.End }

// Ident is a single identifier. Name holds the normalized form: unquoted
// identifiers are lower-cased by the parser, quoted ones are kept verbatim.
type Ident struct {
	Name   string
	Quoted bool
}

// NewIdent returns an unquoted identifier.
func NewIdent(name string) Ident { return Ident{Name: name} }

// IsZero reports whether the identifier is absent.
func (i Ident) IsZero() bool { return i.Name == "" }

func (i Ident) String() string { return i.Name }

// Idents builds identifiers from names.
func Idents(names ...string) []Ident {
	out := make([]Ident, len(names))
	for i, n := range names {
		out[i] = Ident{Name: n}
	}
	return out
}

// JoinIdents joins identifier names with dots.
func JoinIdents(parts []Ident) string {
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.Name
	}
	return strings.Join(names, ".")
}
