package transform

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

// relation builds the body of a model or metric relation projecting the
// required columns.
func (a *analyzer) relation(ds mdl.Dataset, required []string) (*core.SelectStmt, error) {
	if err := a.ctx.Err(); err != nil {
		return nil, err
	}
	if model := ds.Model(); model != nil {
		return a.modelRelation(model, required)
	}
	return a.metricRelation(ds.Metric(), required)
}

// modelRelation builds
//
//	SELECT <expr> AS <column>, ... FROM <source>
//	  [LEFT JOIN (<related model>) AS <relationship column> ON <condition>]
//
// Columns keep their declaration order. Calculated columns are inlined;
// references through a relationship column add one join per column.
func (a *analyzer) modelRelation(model *mdl.Model, required []string) (*core.SelectStmt, error) {
	if err := a.checkTraversals(model, required); err != nil {
		return nil, err
	}

	need := make(map[string]bool, len(required))
	for _, name := range required {
		need[name] = true
	}
	var cols []*mdl.Column
	for _, col := range model.Columns {
		if need[col.Name] && !col.IsRelationship() {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		// nothing referenced: project one column, a plain physical one when
		// the model has it so no join is dragged in
		if col := placeholderColumn(model); col != nil {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return nil, planningErrorf("model %s has no columns to project", model.Name)
	}

	mb := newModelBuilder(a, model)
	sc := &core.SelectCore{}
	for _, col := range cols {
		expr, err := mb.column(col)
		if err != nil {
			return nil, err
		}
		sc.Columns = append(sc.Columns, selectItem(expr, col.Name))
	}

	// conditions can add joins, target columns and physical fields, so
	// every condition is translated before any body is built
	for i := 0; i < len(mb.joinOrder); i++ {
		if err := mb.condition(mb.joins[mb.joinOrder[i]]); err != nil {
			return nil, err
		}
	}
	var joins []*core.Join
	for _, name := range mb.joinOrder {
		join, err := mb.join(mb.joins[name])
		if err != nil {
			return nil, err
		}
		joins = append(joins, join)
	}

	from, err := mb.source()
	if err != nil {
		return nil, err
	}
	if from != nil {
		sc.From = &core.FromClause{Source: from, Joins: joins}
	}
	return wrap(sc), nil
}

func placeholderColumn(model *mdl.Model) *mdl.Column {
	var fallback *mdl.Column
	for _, col := range model.Columns {
		if col.IsRelationship() {
			continue
		}
		if !col.IsCalculated {
			return col
		}
		if fallback == nil {
			fallback = col
		}
	}
	return fallback
}

// checkTraversals rejects required columns whose lineage crosses a to-many
// relationship: inlining it as a join would multiply the model's rows.
func (a *analyzer) checkTraversals(model *mdl.Model, required []string) error {
	for _, hop := range a.am.Lineage.Relationships(model.Name, required) {
		if hop.IsToOne() {
			continue
		}
		return &mdl.UnsupportedConstructError{
			Construct: fmt.Sprintf("%s traversal of relationship %s from %s", strings.ToLower(string(hop.JoinType)), hop.Relationship, hop.From),
		}
	}
	return nil
}

// metricRelation builds
//
//	SELECT <dimension> AS <dimension>, ..., <measure> AS <measure>, ...
//	FROM (<base>) AS <base> GROUP BY <dimension>, ...
//
// Every dimension is kept since dropping one changes the grouping;
// measures nobody asked for are dropped.
func (a *analyzer) metricRelation(metric *mdl.Metric, required []string) (*core.SelectStmt, error) {
	base, ok := a.cat.idx.Dataset(metric.BaseObject)
	if !ok {
		return nil, mdl.UnresolvedError(metric.BaseObject)
	}
	qual := []core.Ident{{Name: base.Name()}}

	var baseCols []string
	seen := make(map[string]bool)
	ref := func(name string) (core.Expr, error) {
		col, ok := base.Column(name)
		if !ok {
			return nil, mdl.NoFieldError(base.Name() + "." + name)
		}
		if col.IsRelationship() {
			return nil, &mdl.UnsupportedConstructError{Construct: "relationship column " + base.Name() + "." + name + " in metric " + metric.Name}
		}
		if !seen[name] {
			seen[name] = true
			baseCols = append(baseCols, name)
		}
		return &core.ColumnRef{Qualifier: qual, Column: core.Ident{Name: name}}, nil
	}
	value := func(col *mdl.Column) (core.Expr, error) {
		expr := a.cat.expr(col)
		if expr == nil {
			return ref(col.Name)
		}
		return core.Rewrite(expr, func(n core.Expr) (core.Expr, error) {
			r, ok := n.(*core.ColumnRef)
			if !ok {
				return n, nil
			}
			switch {
			case len(r.Qualifier) == 0:
				return ref(r.Column.Name)
			case len(r.Qualifier) == 1 && r.Qualifier[0].Name == base.Name():
				return ref(r.Column.Name)
			}
			return nil, &mdl.UnsupportedConstructError{Construct: "reference " + core.JoinIdents(r.Parts()) + " in metric " + metric.Name}
		})
	}

	need := make(map[string]bool, len(required))
	for _, name := range required {
		need[name] = true
	}

	sc := &core.SelectCore{}
	for _, dim := range metric.Dimension {
		expr, err := value(dim)
		if err != nil {
			return nil, err
		}
		sc.Columns = append(sc.Columns, selectItem(expr, dim.Name))
		sc.GroupBy = append(sc.GroupBy, expr)
	}
	for _, measure := range metric.Measure {
		if !need[measure.Name] && len(metric.Dimension) > 0 {
			continue
		}
		expr, err := value(measure)
		if err != nil {
			return nil, err
		}
		sc.Columns = append(sc.Columns, selectItem(expr, measure.Name))
	}

	body, err := a.relation(base, baseCols)
	if err != nil {
		return nil, err
	}
	sc.From = &core.FromClause{Source: &core.DerivedTable{Select: body, Alias: core.Ident{Name: base.Name()}}}
	return wrap(sc), nil
}

// joinRequirement is one relationship column a model relation joins.
type joinRequirement struct {
	column *mdl.Column
	rel    *mdl.Relationship
	target *mdl.Model
	need   []string
	seen   map[string]bool
	cond   core.Expr
}

func (j *joinRequirement) require(name string) {
	if !j.seen[name] {
		j.seen[name] = true
		j.need = append(j.need, name)
	}
}

// modelBuilder builds one model relation.
type modelBuilder struct {
	a     *analyzer
	model *mdl.Model
	qual  []core.Ident // qualifier of physical fields, nil without a source

	memo      map[string]core.Expr
	expanding map[string]bool
	fields    []string // physical fields in first-use order
	seen      map[string]bool
	joins     map[string]*joinRequirement
	joinOrder []string
}

func newModelBuilder(a *analyzer, model *mdl.Model) *modelBuilder {
	mb := &modelBuilder{
		a:         a,
		model:     model,
		memo:      make(map[string]core.Expr),
		expanding: make(map[string]bool),
		seen:      make(map[string]bool),
		joins:     make(map[string]*joinRequirement),
	}
	switch {
	case model.TableReference != "":
		for _, part := range model.TableParts() {
			mb.qual = append(mb.qual, core.Ident{Name: part})
		}
	case model.RefSQL != "":
		mb.qual = []core.Ident{{Name: model.Name}}
	case model.BaseObject != "":
		mb.qual = []core.Ident{{Name: model.BaseObject}}
	}
	return mb
}

// column returns the expression of col over the model source.
func (mb *modelBuilder) column(col *mdl.Column) (core.Expr, error) {
	if expr, ok := mb.memo[col.Name]; ok {
		return expr, nil
	}
	if mb.expanding[col.Name] {
		return nil, &mdl.LineageCycleError{Chain: []string{mb.model.Name + "." + col.Name, mb.model.Name + "." + col.Name}}
	}
	mb.expanding[col.Name] = true
	defer delete(mb.expanding, col.Name)

	var (
		expr core.Expr
		err  error
	)
	src := mb.a.cat.expr(col)
	switch {
	case col.IsRelationship():
		err = &mdl.UnsupportedConstructError{Construct: "relationship column " + mb.model.Name + "." + col.Name + " used as a value"}
	case col.IsCalculated:
		expr, err = mb.calculated(col, src)
	case src != nil:
		expr, err = core.Rewrite(src, func(n core.Expr) (core.Expr, error) {
			if r, ok := n.(*core.ColumnRef); ok {
				return mb.field(r.Column.Name)
			}
			return n, nil
		})
	default:
		expr, err = mb.field(col.Name)
	}
	if err != nil {
		return nil, err
	}
	mb.memo[col.Name] = expr
	return expr, nil
}

// calculated inlines the model columns a calculated expression names.
func (mb *modelBuilder) calculated(col *mdl.Column, src core.Expr) (core.Expr, error) {
	if src == nil {
		return nil, &mdl.ManifestValidationError{Field: "models." + mb.model.Name + "." + col.Name, Msg: "calculated column without expression"}
	}
	return core.Rewrite(src, func(n core.Expr) (core.Expr, error) {
		r, ok := n.(*core.ColumnRef)
		if !ok {
			return n, nil
		}
		switch {
		case len(r.Qualifier) == 0,
			len(r.Qualifier) == 1 && r.Qualifier[0].Name == mb.model.Name:
			target, ok := mb.model.Column(r.Column.Name)
			if !ok {
				return nil, mdl.UnresolvedError(mb.model.Name + "." + r.Column.Name)
			}
			return mb.column(target)
		case len(r.Qualifier) == 1:
			relcol, ok := mb.model.Column(r.Qualifier[0].Name)
			if !ok || !relcol.IsRelationship() {
				break
			}
			if err := mb.requireJoin(relcol, r.Column.Name); err != nil {
				return nil, err
			}
			return &core.ColumnRef{Qualifier: []core.Ident{{Name: relcol.Name}}, Column: core.Ident{Name: r.Column.Name}}, nil
		}
		return nil, mdl.UnresolvedError(core.JoinIdents(r.Parts()))
	})
}

// field references a physical field of the model source.
func (mb *modelBuilder) field(name string) (core.Expr, error) {
	if mb.qual == nil {
		return nil, mdl.NoFieldError(name)
	}
	if !mb.seen[name] {
		mb.seen[name] = true
		mb.fields = append(mb.fields, name)
	}
	return &core.ColumnRef{Qualifier: mb.qual, Column: core.Ident{Name: name}}, nil
}

func (mb *modelBuilder) requireJoin(relcol *mdl.Column, name string) error {
	jr, ok := mb.joins[relcol.Name]
	if !ok {
		rel, ok := mb.a.cat.idx.Relationship(relcol.Relationship)
		if !ok {
			return mdl.UnresolvedError(relcol.Relationship)
		}
		to, ok := rel.Other(mb.model.Name)
		if !ok {
			return &mdl.UnsupportedConstructError{Construct: "self relationship " + rel.Name}
		}
		if jt := rel.JoinTypeFrom(mb.model.Name); !jt.IsToOne() {
			return &mdl.UnsupportedConstructError{
				Construct: fmt.Sprintf("%s traversal of relationship %s from %s", strings.ToLower(string(jt)), rel.Name, mb.model.Name),
			}
		}
		target, ok := mb.a.cat.idx.Model(to)
		if !ok {
			return mdl.UnresolvedError(to)
		}
		if len(mb.qual) > 0 && mb.qual[len(mb.qual)-1].Name == relcol.Name {
			return &mdl.UnsupportedConstructError{
				Construct: fmt.Sprintf("relationship column %s.%s named like the model source", mb.model.Name, relcol.Name),
			}
		}
		jr = &joinRequirement{column: relcol, rel: rel, target: target, seen: make(map[string]bool)}
		mb.joins[relcol.Name] = jr
		mb.joinOrder = append(mb.joinOrder, relcol.Name)
	}
	jr.require(name)
	return nil
}

// condition translates the relationship condition of jr. Owner references
// become owner expressions, target references go through the join alias.
func (mb *modelBuilder) condition(jr *joinRequirement) error {
	cond, err := core.Rewrite(mb.a.cat.conditions[jr.rel.Name], func(n core.Expr) (core.Expr, error) {
		r, ok := n.(*core.ColumnRef)
		if !ok {
			return n, nil
		}
		switch r.Table().Name {
		case jr.target.Name:
			if _, ok := jr.target.Column(r.Column.Name); !ok {
				return nil, mdl.UnresolvedError(core.JoinIdents(r.Parts()))
			}
			jr.require(r.Column.Name)
			return &core.ColumnRef{Qualifier: []core.Ident{{Name: jr.column.Name}}, Column: core.Ident{Name: r.Column.Name}}, nil
		case mb.model.Name:
			col, ok := mb.model.Column(r.Column.Name)
			if !ok {
				return nil, mdl.UnresolvedError(core.JoinIdents(r.Parts()))
			}
			return mb.column(col)
		}
		return nil, mdl.UnresolvedError(core.JoinIdents(r.Parts()))
	})
	if err != nil {
		return err
	}
	jr.cond = cond
	return nil
}

// join builds the related relation of jr.
func (mb *modelBuilder) join(jr *joinRequirement) (*core.Join, error) {
	body, err := mb.a.modelRelation(jr.target, jr.need)
	if err != nil {
		return nil, err
	}
	return &core.Join{
		Type:      core.JoinLeft,
		Right:     &core.DerivedTable{Select: body, Alias: core.Ident{Name: jr.column.Name}},
		Condition: jr.cond,
	}, nil
}

// source returns the FROM source of the model, checking every physical
// field used against it. It returns nil for a model without a source.
func (mb *modelBuilder) source() (core.TableRef, error) {
	model := mb.model
	idx := mb.a.cat.idx

	switch {
	case model.TableReference != "":
		if tbl, ok := idx.Table(model.TableReference); ok {
			schema := tbl.Schema()
			for _, name := range mb.fields {
				if _, ok := schema.Field(name); !ok {
					return nil, mdl.NoFieldError(name)
				}
			}
		}
		return &core.TableName{Parts: mb.qual}, nil

	case model.RefSQL != "":
		return &core.DerivedTable{Select: mb.a.cat.refSQL[model.Name], Alias: core.Ident{Name: model.Name}}, nil

	case model.BaseObject != "":
		base, ok := idx.Dataset(model.BaseObject)
		if !ok {
			return nil, mdl.UnresolvedError(model.BaseObject)
		}
		for _, name := range mb.fields {
			col, ok := base.Column(name)
			if !ok {
				return nil, mdl.NoFieldError(base.Name() + "." + name)
			}
			if col.IsRelationship() {
				return nil, &mdl.UnsupportedConstructError{Construct: "relationship column " + base.Name() + "." + name + " used as a value"}
			}
		}
		body, err := mb.a.relation(base, mb.fields)
		if err != nil {
			return nil, err
		}
		return &core.DerivedTable{Select: body, Alias: core.Ident{Name: base.Name()}}, nil
	}

	if len(mb.fields) > 0 {
		return nil, mdl.NoFieldError(mb.fields[0])
	}
	return nil, nil
}

func selectItem(expr core.Expr, name string) core.SelectItem {
	return core.SelectItem{Expr: expr, Alias: core.Ident{Name: name}}
}

func wrap(sc *core.SelectCore) *core.SelectStmt {
	return &core.SelectStmt{Body: &core.SelectBody{Left: sc}}
}
