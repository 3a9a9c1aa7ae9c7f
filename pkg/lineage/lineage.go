// Package lineage resolves, for every column of a manifest, the columns,
// physical fields and relationship hops it transitively depends on.
//
// Resolution runs once per manifest and rejects dependency cycles. The
// result is immutable and shared by every transform of that manifest.
package lineage

import (
	"sort"

	"github.com/leapstack-labs/semql/internal/dag"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

// Kind classifies how a column gets its value.
type Kind string

const (
	// KindSource is a physical column, possibly behind a source expression.
	KindSource Kind = "source"
	// KindCalculated is computed from other columns of the model.
	KindCalculated Kind = "calculated"
	// KindRelationship stands for the related row of a relationship.
	KindRelationship Kind = "relationship"
	// KindMetric is a metric dimension or measure.
	KindMetric Kind = "metric"
)

// SourceColumn is a physical field a column reads.
type SourceColumn struct {
	Table  string // table reference, or the model name for SQL sources
	Column string
}

func (s SourceColumn) String() string {
	return s.Table + "." + s.Column
}

// Hop is one traversal of a relationship.
type Hop struct {
	Relationship string
	From         string       // dataset the traversal starts at
	To           string       // dataset it reaches
	Column       string       // relationship column of From
	JoinType     mdl.JoinType // as seen from From
}

// IsToOne reports whether the hop keeps one row per source row.
func (h Hop) IsToOne() bool {
	return h.JoinType.IsToOne()
}

func (h Hop) key() string {
	return h.From + "." + h.Column
}

// ColumnLineage is the resolved lineage of one column.
type ColumnLineage struct {
	Name mdl.QualifiedName
	Ref  mdl.ColumnReference
	Kind Kind

	// Refs are the columns the definition names directly.
	Refs []mdl.QualifiedName
	// Hops are the relationships the definition traverses directly.
	Hops []Hop

	// Dependencies lists every column reached transitively, in dependency
	// order.
	Dependencies []mdl.QualifiedName
	// Sources lists every physical field reached transitively, sorted.
	Sources []SourceColumn
	// Path lists every hop reached transitively, sorted.
	Path []Hop
}

// Lineage is the resolved lineage of a whole manifest.
type Lineage struct {
	columns map[mdl.QualifiedName]*ColumnLineage
	order   []mdl.QualifiedName
	graph   *dag.Graph[mdl.QualifiedName]
	idx     *mdl.Index
}

// Column returns the lineage of one column.
func (l *Lineage) Column(q mdl.QualifiedName) (*ColumnLineage, bool) {
	c, ok := l.columns[q]
	return c, ok
}

// Order returns every column with dependencies before dependents.
func (l *Lineage) Order() []mdl.QualifiedName {
	return l.order
}

// Dependents returns the columns that directly or transitively depend on q,
// sorted.
func (l *Lineage) Dependents(q mdl.QualifiedName) []mdl.QualifiedName {
	ids := l.graph.Downstream(q.String())
	out := make([]mdl.QualifiedName, 0, len(ids))
	for _, id := range ids {
		if n, ok := l.graph.Node(id); ok {
			out = append(out, n)
		}
	}
	return out
}

// RequiredColumns returns the named columns of dataset together with
// everything they depend on, in dependency order. Unknown names are
// skipped.
func (l *Lineage) RequiredColumns(dataset string, columns []string) []mdl.QualifiedName {
	need := make(map[mdl.QualifiedName]bool)
	for _, name := range columns {
		c, ok := l.columns[l.idx.QualifiedColumnName(dataset, name)]
		if !ok {
			continue
		}
		need[c.Name] = true
		for _, dep := range c.Dependencies {
			need[dep] = true
		}
	}

	out := make([]mdl.QualifiedName, 0, len(need))
	for _, q := range l.order {
		if need[q] {
			out = append(out, q)
		}
	}
	return out
}

// Relationships returns the hops the named columns of dataset need,
// transitively, one per relationship column, sorted.
func (l *Lineage) Relationships(dataset string, columns []string) []Hop {
	hops := make(map[string]Hop)
	for _, name := range columns {
		c, ok := l.columns[l.idx.QualifiedColumnName(dataset, name)]
		if !ok {
			continue
		}
		for _, h := range c.Path {
			hops[h.key()] = h
		}
	}
	return sortedHops(hops)
}

func sortedHops(hops map[string]Hop) []Hop {
	out := make([]Hop, 0, len(hops))
	for _, h := range hops {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out
}
