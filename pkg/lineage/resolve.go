package lineage

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/semql/internal/dag"
	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/parser"
)

// Resolve computes the lineage of every column in idx.
//
// An expression may name a column of its own dataset bare or qualified by
// the dataset name, or a column of a related model through one of the
// model's relationship columns (relcol.column). Unknown names fail with a
// ResolutionError, deeper relationship paths with an
// UnsupportedConstructError and dependency cycles with a
// LineageCycleError.
func Resolve(idx *mdl.Index) (*Lineage, error) {
	r := &resolver{
		idx:     idx,
		graph:   dag.New[mdl.QualifiedName](),
		columns: make(map[mdl.QualifiedName]*ColumnLineage),
	}

	refs := idx.References()
	for _, q := range refs {
		ref, _ := idx.ColumnReference(q)
		r.graph.AddNode(q.String(), q)
		r.columns[q] = &ColumnLineage{Name: q, Ref: ref}
	}

	for _, q := range refs {
		if err := r.resolveColumn(r.columns[q]); err != nil {
			return nil, err
		}
	}

	if hasCycle, path := r.graph.HasCycle(); hasCycle {
		chain := make([]string, len(path))
		for i, id := range path {
			n, _ := r.graph.Node(id)
			chain[i] = n.Short()
		}
		return nil, &mdl.LineageCycleError{Chain: chain}
	}

	ids, err := r.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	order := make([]mdl.QualifiedName, len(ids))
	for i, id := range ids {
		order[i], _ = r.graph.Node(id)
	}

	position := make(map[mdl.QualifiedName]int, len(order))
	for i, q := range order {
		position[q] = i
	}
	for _, q := range order {
		r.collect(r.columns[q], position)
	}

	return &Lineage{columns: r.columns, order: order, graph: r.graph, idx: idx}, nil
}

type resolver struct {
	idx     *mdl.Index
	graph   *dag.Graph[mdl.QualifiedName]
	columns map[mdl.QualifiedName]*ColumnLineage
}

func (r *resolver) resolveColumn(c *ColumnLineage) error {
	ds := c.Ref.Dataset
	col := c.Ref.Column

	if metric := ds.Metric(); metric != nil {
		c.Kind = KindMetric
		base, ok := r.idx.Dataset(metric.BaseObject)
		if !ok {
			return mdl.UnresolvedError(metric.BaseObject)
		}
		if col.Expression == "" {
			return r.dependOn(c, base, col.Name)
		}
		return r.resolveExpression(c, base, col.Expression)
	}

	model := ds.Model()
	switch {
	case col.IsRelationship():
		c.Kind = KindRelationship
		return r.resolveRelationship(c, model)

	case col.IsCalculated:
		c.Kind = KindCalculated
		if col.Expression == "" {
			return &mdl.ManifestValidationError{Field: "models." + model.Name + "." + col.Name, Msg: "calculated column without expression"}
		}
		return r.resolveExpression(c, ds, col.Expression)
	}

	c.Kind = KindSource
	if model.BaseObject != "" {
		base, ok := r.idx.Dataset(model.BaseObject)
		if !ok {
			return mdl.UnresolvedError(model.BaseObject)
		}
		if col.Expression == "" {
			return r.dependOn(c, base, col.Name)
		}
		return r.resolveExpression(c, base, col.Expression)
	}

	table := sourceTable(model)
	if col.Expression == "" {
		c.Sources = []SourceColumn{{Table: table, Column: col.Name}}
		return nil
	}
	expr, err := parseExpression(model.Name, col)
	if err != nil {
		return err
	}
	for _, ref := range core.ColumnRefs(expr) {
		c.Sources = append(c.Sources, SourceColumn{Table: table, Column: ref.Column.Name})
	}
	return nil
}

// resolveRelationship makes a relationship column depend on the columns
// its join condition names.
func (r *resolver) resolveRelationship(c *ColumnLineage, model *mdl.Model) error {
	col := c.Ref.Column
	rel, ok := r.idx.Relationship(col.Relationship)
	if !ok {
		return mdl.UnresolvedError(col.Relationship)
	}
	if !rel.Involves(model.Name) {
		return mdl.UnresolvedError(fmt.Sprintf("%s in relationship %s", model.Name, rel.Name))
	}
	target, ok := rel.Other(model.Name)
	if !ok {
		return &mdl.UnsupportedConstructError{Construct: "self relationship " + rel.Name}
	}
	if _, ok := r.idx.Model(target); !ok {
		return mdl.UnresolvedError(target)
	}

	c.Hops = []Hop{{
		Relationship: rel.Name,
		From:         model.Name,
		To:           target,
		Column:       col.Name,
		JoinType:     rel.JoinTypeFrom(model.Name),
	}}

	cond, err := parser.ParseExpr(rel.Condition)
	if err != nil {
		return fmt.Errorf("relationship %s condition: %w", rel.Name, err)
	}
	for _, ref := range core.ColumnRefs(cond) {
		owner := ref.Table().Name
		if owner != model.Name && owner != target {
			return mdl.UnresolvedError(core.JoinIdents(ref.Parts()))
		}
		ds, _ := r.idx.Dataset(owner)
		if err := r.dependOn(c, ds, ref.Column.Name); err != nil {
			return err
		}
	}
	return nil
}

// resolveExpression makes c depend on every column expr names, resolved in
// owner.
func (r *resolver) resolveExpression(c *ColumnLineage, owner mdl.Dataset, text string) error {
	expr, err := parseExpression(c.Ref.Dataset.Name(), &mdl.Column{Name: c.Ref.Column.Name, Expression: text})
	if err != nil {
		return err
	}

	for _, ref := range core.ColumnRefs(expr) {
		switch len(ref.Qualifier) {
		case 0:
			if err := r.dependOnValue(c, owner, ref.Column.Name); err != nil {
				return err
			}
			continue
		case 1:
			qual := ref.Qualifier[0].Name
			if qual == owner.Name() {
				if err := r.dependOnValue(c, owner, ref.Column.Name); err != nil {
					return err
				}
				continue
			}
			if relcol, ok := owner.Column(qual); ok && relcol.IsRelationship() {
				if err := r.traverse(c, owner, relcol, ref.Column.Name); err != nil {
					return err
				}
				continue
			}
		default:
			if relcol, ok := owner.Column(ref.Qualifier[0].Name); ok && relcol.IsRelationship() {
				return &mdl.UnsupportedConstructError{Construct: "relationship path " + core.JoinIdents(ref.Parts())}
			}
		}
		return mdl.UnresolvedError(core.JoinIdents(ref.Parts()))
	}
	return nil
}

// traverse resolves relcol.name: it depends on the relationship column and
// on the named column of the related model.
func (r *resolver) traverse(c *ColumnLineage, owner mdl.Dataset, relcol *mdl.Column, name string) error {
	if err := r.dependOn(c, owner, relcol.Name); err != nil {
		return err
	}
	rel, ok := r.idx.Relationship(relcol.Relationship)
	if !ok {
		return mdl.UnresolvedError(relcol.Relationship)
	}
	to, ok := rel.Other(owner.Name())
	if !ok {
		return &mdl.UnsupportedConstructError{Construct: "self relationship " + rel.Name}
	}
	target, ok := r.idx.Dataset(to)
	if !ok {
		return mdl.UnresolvedError(to)
	}
	c.Hops = appendHop(c.Hops, Hop{
		Relationship: rel.Name,
		From:         owner.Name(),
		To:           to,
		Column:       relcol.Name,
		JoinType:     rel.JoinTypeFrom(owner.Name()),
	})
	return r.dependOnValue(c, target, name)
}

// dependOnValue is dependOn for a name used as a value; a bare relationship
// column has none.
func (r *resolver) dependOnValue(c *ColumnLineage, ds mdl.Dataset, name string) error {
	col, ok := ds.Column(name)
	if !ok {
		return mdl.UnresolvedError(ds.Name() + "." + name)
	}
	if col.IsRelationship() {
		return &mdl.UnsupportedConstructError{Construct: "relationship column " + ds.Name() + "." + col.Name + " used as a value"}
	}
	return r.dependOn(c, ds, col.Name)
}

func (r *resolver) dependOn(c *ColumnLineage, ds mdl.Dataset, name string) error {
	q := r.idx.QualifiedColumnName(ds.Name(), name)
	if _, ok := r.columns[q]; !ok {
		return mdl.UnresolvedError(q.Short())
	}
	for _, have := range c.Refs {
		if have == q {
			return nil
		}
	}
	c.Refs = append(c.Refs, q)
	return r.graph.DependsOn(c.Name.String(), q.String())
}

// collect fills the transitive fields of c from its direct references,
// which come earlier in order.
func (r *resolver) collect(c *ColumnLineage, position map[mdl.QualifiedName]int) {
	deps := make(map[mdl.QualifiedName]bool)
	sources := make(map[SourceColumn]bool)
	hops := make(map[string]Hop)

	for _, s := range c.Sources {
		sources[s] = true
	}
	for _, h := range c.Hops {
		hops[h.key()] = h
	}
	for _, q := range c.Refs {
		dep := r.columns[q]
		deps[q] = true
		for _, d := range dep.Dependencies {
			deps[d] = true
		}
		for _, s := range dep.Sources {
			sources[s] = true
		}
		for _, h := range dep.Path {
			hops[h.key()] = h
		}
	}

	c.Dependencies = make([]mdl.QualifiedName, 0, len(deps))
	for q := range deps {
		c.Dependencies = append(c.Dependencies, q)
	}
	sort.Slice(c.Dependencies, func(i, j int) bool {
		return position[c.Dependencies[i]] < position[c.Dependencies[j]]
	})

	c.Sources = make([]SourceColumn, 0, len(sources))
	for s := range sources {
		c.Sources = append(c.Sources, s)
	}
	sort.Slice(c.Sources, func(i, j int) bool { return c.Sources[i].String() < c.Sources[j].String() })

	c.Path = sortedHops(hops)
}

func parseExpression(dataset string, col *mdl.Column) (core.Expr, error) {
	expr, err := parser.ParseExpr(col.Expression)
	if err != nil {
		return nil, fmt.Errorf("column %s.%s: %w", dataset, col.Name, err)
	}
	return expr, nil
}

// sourceTable names the physical relation of a model for SourceColumn.
func sourceTable(model *mdl.Model) string {
	if model.TableReference != "" {
		return model.TableReference
	}
	return model.Name
}

func appendHop(hops []Hop, h Hop) []Hop {
	for _, have := range hops {
		if have.key() == h.key() {
			return hops
		}
	}
	return append(hops, h)
}
