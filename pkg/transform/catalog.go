package transform

import (
	"fmt"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/parser"
)

// relationKind tells what a name in FROM refers to.
type relationKind int

const (
	relationNone relationKind = iota
	relationDataset
	relationView
)

// catalog is the virtual catalog of one transform: every dataset and view
// of the manifest with its definitions parsed. It is built per call and
// discarded afterwards.
type catalog struct {
	idx *mdl.Index

	exprs      map[*mdl.Column]core.Expr
	conditions map[string]core.Expr
	refSQL     map[string]*core.SelectStmt
	views      map[string]*core.SelectStmt
}

func buildCatalog(idx *mdl.Index) (*catalog, error) {
	m := idx.Manifest()
	c := &catalog{
		idx:        idx,
		exprs:      make(map[*mdl.Column]core.Expr),
		conditions: make(map[string]core.Expr, len(m.Relationships)),
		refSQL:     make(map[string]*core.SelectStmt),
		views:      make(map[string]*core.SelectStmt, len(m.Views)),
	}

	parseColumns := func(dataset string, cols []*mdl.Column) error {
		for _, col := range cols {
			if col.Expression == "" || col.IsRelationship() {
				continue
			}
			expr, err := parser.ParseExpr(col.Expression)
			if err != nil {
				return fmt.Errorf("column %s.%s: %w", dataset, col.Name, err)
			}
			c.exprs[col] = expr
		}
		return nil
	}

	for _, model := range m.Models {
		if err := parseColumns(model.Name, model.Columns); err != nil {
			return nil, err
		}
		if model.RefSQL != "" {
			stmt, err := parser.Parse(model.RefSQL)
			if err != nil {
				return nil, fmt.Errorf("model %s refSql: %w", model.Name, err)
			}
			c.refSQL[model.Name] = stmt
		}
	}
	for _, metric := range m.Metrics {
		if err := parseColumns(metric.Name, metric.Dimension); err != nil {
			return nil, err
		}
		if err := parseColumns(metric.Name, metric.Measure); err != nil {
			return nil, err
		}
	}
	for _, rel := range m.Relationships {
		cond, err := parser.ParseExpr(rel.Condition)
		if err != nil {
			return nil, fmt.Errorf("relationship %s condition: %w", rel.Name, err)
		}
		c.conditions[rel.Name] = cond
	}
	for _, view := range m.Views {
		stmt, err := parser.Parse(view.Statement)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", view.Name, err)
		}
		c.views[view.Name] = stmt
	}
	return c, nil
}

// lookup resolves a relation name of one to three parts. Qualified names
// must carry the manifest catalog and schema.
func (c *catalog) lookup(parts []core.Ident) (relationKind, string) {
	var name string
	switch len(parts) {
	case 1:
		name = parts[0].Name
	case 2:
		if parts[0].Name != c.idx.Schema() {
			return relationNone, ""
		}
		name = parts[1].Name
	case 3:
		if parts[0].Name != c.idx.Catalog() || parts[1].Name != c.idx.Schema() {
			return relationNone, ""
		}
		name = parts[2].Name
	default:
		return relationNone, ""
	}

	if _, ok := c.idx.Dataset(name); ok {
		return relationDataset, name
	}
	if _, ok := c.views[name]; ok {
		return relationView, name
	}
	return relationNone, ""
}

// expr returns the parsed expression of a column, nil if it has none.
func (c *catalog) expr(col *mdl.Column) core.Expr {
	return c.exprs[col]
}
