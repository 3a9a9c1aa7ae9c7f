package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/format"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

// clause tells resolveRef which output aliases are visible.
type clause int

const (
	clauseSelect clause = iota
	clauseWhere
	clauseGroup // GROUP BY and HAVING see select aliases as expressions
	clauseOrder // ORDER BY sees select aliases by name
)

// source is one relation in a FROM clause.
type source struct {
	name    core.Ident // qualifier written in front of its columns
	parts   []string   // qualified name matched by multi-part qualifiers
	columns []string   // output columns in order; relationship columns excluded
	dataset mdl.Dataset
	rel     *pending // set for models and metrics
}

func (s *source) has(name string) bool {
	for _, c := range s.columns {
		if c == name {
			return true
		}
	}
	return false
}

// relationshipColumn reports whether name is a relationship column of a
// model source.
func (s *source) relationshipColumn(name string) bool {
	if s.dataset.IsZero() {
		return false
	}
	col, ok := s.dataset.Column(name)
	return ok && col.IsRelationship()
}

func (s *source) matches(qual []core.Ident) bool {
	if len(qual) == 1 {
		return !s.name.IsZero() && s.name.Name == qual[0].Name
	}
	if len(qual) > len(s.parts) {
		return false
	}
	tail := s.parts[len(s.parts)-len(qual):]
	for i, q := range qual {
		if tail[i] != q.Name {
			return false
		}
	}
	return true
}

// pending is a model or metric relation whose body is built once the
// whole query is analyzed and every column it must project is known.
type pending struct {
	dt       *core.DerivedTable
	dataset  mdl.Dataset
	required []string
	seen     map[string]bool
}

func (p *pending) require(name string) {
	if p.seen[name] {
		return
	}
	p.seen[name] = true
	p.required = append(p.required, name)
}

// cteEnv holds the common table expressions visible to a statement.
type cteEnv struct {
	parent *cteEnv
	defs   map[string][]string
}

func (e *cteEnv) lookup(name string) ([]string, bool) {
	for env := e; env != nil; env = env.parent {
		if cols, ok := env.defs[name]; ok {
			return cols, true
		}
	}
	return nil, false
}

// scope is the name environment of one SELECT core.
type scope struct {
	outer   *scope
	ctes    *cteEnv
	sources []*source
	using   map[string]bool
	aliases map[string]core.Expr
}

func newScope(outer *scope, ctes *cteEnv) *scope {
	return &scope{
		outer:   outer,
		ctes:    ctes,
		using:   make(map[string]bool),
		aliases: make(map[string]core.Expr),
	}
}

// unqualified finds the single source holding name. It returns nil when no
// source has it.
func (s *scope) unqualified(name string) (*source, error) {
	var found []*source
	for _, src := range s.sources {
		if src.has(name) || src.relationshipColumn(name) {
			found = append(found, src)
		}
	}
	switch {
	case len(found) == 0:
		return nil, nil
	case len(found) == 1 || s.using[name]:
		return found[0], nil
	}
	return nil, &mdl.ResolutionError{Name: name, Msg: fmt.Sprintf("Schema error: Ambiguous reference to unqualified field %q.", name)}
}

func (s *scope) qualified(qual []core.Ident) *source {
	for _, src := range s.sources {
		if src.matches(qual) {
			return src
		}
	}
	return nil
}

// analyzer resolves a parsed query against the virtual catalog. It writes
// a new tree and never modifies its input.
type analyzer struct {
	ctx     context.Context
	am      *AnalyzedModel
	cat     *catalog
	dialect *dialect.Dialect
	funcs   map[string]dialect.FunctionType

	pending []*pending
	views   []string // views being expanded, outermost first
}

// analyze resolves stmt and fills in every model and metric relation it
// uses.
func (a *analyzer) analyze(stmt *core.SelectStmt) (*core.SelectStmt, error) {
	out, _, err := a.analyzeStmt(stmt, nil, nil)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(a.pending); i++ {
		if err := a.ctx.Err(); err != nil {
			return nil, err
		}
		p := a.pending[i]
		rel, err := a.relation(p.dataset, p.required)
		if err != nil {
			return nil, err
		}
		p.dt.Select = rel
	}
	return out, nil
}

func (a *analyzer) analyzeStmt(stmt *core.SelectStmt, outer *scope, ctes *cteEnv) (*core.SelectStmt, []string, error) {
	out := &core.SelectStmt{}
	env := ctes

	if stmt.With != nil {
		if stmt.With.Recursive {
			return nil, nil, &mdl.UnsupportedConstructError{Construct: "WITH RECURSIVE"}
		}
		env = &cteEnv{parent: ctes, defs: make(map[string][]string, len(stmt.With.CTEs))}
		with := &core.WithClause{}
		for _, cte := range stmt.With.CTEs {
			sel, cols, err := a.analyzeStmt(cte.Select, nil, env)
			if err != nil {
				return nil, nil, err
			}
			env.defs[cte.Name.Name] = cols
			with.CTEs = append(with.CTEs, &core.CTE{Name: cte.Name, Select: sel})
		}
		out.With = with
	}

	body, cols, err := a.analyzeBody(stmt.Body, outer, env)
	if err != nil {
		return nil, nil, err
	}
	out.Body = body
	return out, cols, nil
}

func (a *analyzer) analyzeBody(body *core.SelectBody, outer *scope, ctes *cteEnv) (*core.SelectBody, []string, error) {
	left, cols, err := a.analyzeCore(body.Left, outer, ctes)
	if err != nil {
		return nil, nil, err
	}
	out := &core.SelectBody{Left: left, Op: body.Op, All: body.All}
	if body.Right != nil {
		right, rcols, err := a.analyzeBody(body.Right, outer, ctes)
		if err != nil {
			return nil, nil, err
		}
		if len(rcols) != len(cols) {
			return nil, nil, planningErrorf("%s queries have different number of columns: %d and %d", body.Op, len(cols), len(rcols))
		}
		out.Right = right
	}
	return out, cols, nil
}

func (a *analyzer) analyzeCore(sc *core.SelectCore, outer *scope, ctes *cteEnv) (*core.SelectCore, []string, error) {
	s := newScope(outer, ctes)
	out := &core.SelectCore{Distinct: sc.Distinct}

	if sc.From != nil {
		from, err := a.analyzeFrom(sc.From, s)
		if err != nil {
			return nil, nil, err
		}
		out.From = from
	}

	var names []string
	for _, item := range sc.Columns {
		switch {
		case item.Star:
			if len(s.sources) == 0 {
				return nil, nil, planningErrorf("SELECT * with no tables specified is not valid")
			}
			for _, src := range s.sources {
				names = append(names, a.expand(src, &out.Columns)...)
			}
		case len(item.TableStar) > 0:
			src := s.qualified(item.TableStar)
			if src == nil {
				return nil, nil, &mdl.ResolutionError{
					Name: core.JoinIdents(item.TableStar),
					Msg:  fmt.Sprintf("Schema error: Invalid qualifier %s.", core.JoinIdents(item.TableStar)),
				}
			}
			names = append(names, a.expand(src, &out.Columns)...)
		default:
			expr, err := a.expr(item.Expr, s, clauseSelect)
			if err != nil {
				return nil, nil, err
			}
			out.Columns = append(out.Columns, core.SelectItem{Expr: expr, Alias: item.Alias})
			names = append(names, a.outputName(item.Alias, expr))
			if !item.Alias.IsZero() {
				s.aliases[item.Alias.Name] = expr
			}
		}
	}

	var err error
	if out.Where, err = a.expr(sc.Where, s, clauseWhere); err != nil {
		return nil, nil, err
	}
	for _, g := range sc.GroupBy {
		expr, err := a.expr(g, s, clauseGroup)
		if err != nil {
			return nil, nil, err
		}
		out.GroupBy = append(out.GroupBy, expr)
	}
	if out.Having, err = a.expr(sc.Having, s, clauseGroup); err != nil {
		return nil, nil, err
	}
	for _, item := range sc.OrderBy {
		expr, err := a.expr(item.Expr, s, clauseOrder)
		if err != nil {
			return nil, nil, err
		}
		item.Expr = expr
		out.OrderBy = append(out.OrderBy, item)
	}
	if out.Limit, err = a.expr(sc.Limit, s, clauseWhere); err != nil {
		return nil, nil, err
	}
	if out.Offset, err = a.expr(sc.Offset, s, clauseWhere); err != nil {
		return nil, nil, err
	}
	return out, names, nil
}

// expand appends one qualified reference per column of src, marking each
// required.
func (a *analyzer) expand(src *source, items *[]core.SelectItem) []string {
	for _, name := range src.columns {
		*items = append(*items, core.SelectItem{Expr: a.bind(src, name)})
	}
	return src.columns
}

func (a *analyzer) analyzeFrom(from *core.FromClause, s *scope) (*core.FromClause, error) {
	first, err := a.tableRef(from.Source, s)
	if err != nil {
		return nil, err
	}
	out := &core.FromClause{Source: first}

	for _, j := range from.Joins {
		left := append([]*source(nil), s.sources...)
		right, err := a.tableRef(j.Right, s)
		if err != nil {
			return nil, err
		}
		rsrc := s.sources[len(s.sources)-1]
		join := &core.Join{Type: j.Type, Natural: j.Natural, Right: right, Using: j.Using}
		out.Joins = append(out.Joins, join)

		using := identNames(j.Using)
		if j.Natural {
			using = commonColumns(left, rsrc)
		}
		for _, name := range using {
			if err := a.bindUsing(left, rsrc, name); err != nil {
				return nil, err
			}
			s.using[name] = true
		}
	}

	// conditions may name any relation of the clause
	for i, j := range from.Joins {
		if j.Condition == nil {
			continue
		}
		cond, err := a.expr(j.Condition, s, clauseWhere)
		if err != nil {
			return nil, err
		}
		out.Joins[i].Condition = cond
	}
	return out, nil
}

func (a *analyzer) bindUsing(left []*source, right *source, name string) error {
	var found *source
	for _, src := range left {
		if src.has(name) {
			found = src
			break
		}
	}
	if found == nil || !right.has(name) {
		return mdl.NoFieldError(name)
	}
	a.bind(found, name)
	a.bind(right, name)
	return nil
}

func (a *analyzer) tableRef(ref core.TableRef, s *scope) (core.TableRef, error) {
	switch t := ref.(type) {
	case *core.TableName:
		return a.tableName(t, s)
	case *core.DerivedTable:
		stmt, cols, err := a.analyzeStmt(t.Select, nil, s.ctes)
		if err != nil {
			return nil, err
		}
		s.sources = append(s.sources, &source{name: t.Alias, parts: []string{t.Alias.Name}, columns: cols})
		return &core.DerivedTable{Select: stmt, Alias: t.Alias}, nil
	}
	return nil, &mdl.UnsupportedConstructError{Construct: fmt.Sprintf("table reference %T", ref)}
}

func (a *analyzer) tableName(t *core.TableName, s *scope) (core.TableRef, error) {
	if len(t.Parts) == 1 {
		if cols, ok := s.ctes.lookup(t.Parts[0].Name); ok {
			s.sources = append(s.sources, &source{
				name:    t.EffectiveName(),
				parts:   []string{t.EffectiveName().Name},
				columns: cols,
			})
			return &core.TableName{Parts: t.Parts, Alias: t.Alias}, nil
		}
	}

	kind, name := a.cat.lookup(t.Parts)
	alias := t.Alias
	if alias.IsZero() {
		alias = core.Ident{Name: name}
	}
	parts := []string{alias.Name}
	if t.Alias.IsZero() {
		parts = []string{a.cat.idx.Catalog(), a.cat.idx.Schema(), name}
	}

	switch kind {
	case relationDataset:
		ds, _ := a.cat.idx.Dataset(name)
		dt := &core.DerivedTable{Alias: alias}
		p := &pending{dt: dt, dataset: ds, seen: make(map[string]bool)}
		a.pending = append(a.pending, p)
		s.sources = append(s.sources, &source{
			name:    alias,
			parts:   parts,
			columns: valueColumns(ds),
			dataset: ds,
			rel:     p,
		})
		return dt, nil

	case relationView:
		stmt, cols, err := a.view(name)
		if err != nil {
			return nil, err
		}
		s.sources = append(s.sources, &source{name: alias, parts: parts, columns: cols})
		return &core.DerivedTable{Select: stmt, Alias: alias}, nil
	}

	key := core.JoinIdents(t.Parts)
	tbl, ok := a.cat.idx.Table(key)
	if !ok {
		return nil, mdl.NoTableError(key)
	}
	names := make([]string, len(t.Parts))
	for i, p := range t.Parts {
		names[i] = p.Name
	}
	if !t.Alias.IsZero() {
		names = []string{t.Alias.Name}
	}
	s.sources = append(s.sources, &source{
		name:    t.EffectiveName(),
		parts:   names,
		columns: tbl.Schema().Names(),
	})
	return &core.TableName{Parts: append([]core.Ident(nil), t.Parts...), Alias: t.Alias}, nil
}

// view analyzes a view statement in its own scope. Views refer to each
// other by name, so expansion keeps a stack to reject cycles.
func (a *analyzer) view(name string) (*core.SelectStmt, []string, error) {
	for i, v := range a.views {
		if v == name {
			chain := append(append([]string(nil), a.views[i:]...), name)
			return nil, nil, &mdl.LineageCycleError{Chain: chain}
		}
	}
	a.views = append(a.views, name)
	defer func() { a.views = a.views[:len(a.views)-1] }()

	return a.analyzeStmt(a.cat.views[name], nil, nil)
}

// expr resolves every column and function of e in scope s.
func (a *analyzer) expr(e core.Expr, s *scope, cl clause) (core.Expr, error) {
	if e == nil {
		return nil, nil
	}
	return core.Rewrite(e, func(n core.Expr) (core.Expr, error) {
		switch n := n.(type) {
		case *core.ColumnRef:
			return a.resolveRef(n, s, cl)
		case *core.FuncCall:
			return n, a.checkFunction(n)
		case *core.SubqueryExpr:
			stmt, _, err := a.analyzeStmt(n.Select, s, s.ctes)
			if err != nil {
				return nil, err
			}
			c := *n
			c.Select = stmt
			return &c, nil
		case *core.ExistsExpr:
			stmt, _, err := a.analyzeStmt(n.Select, s, s.ctes)
			if err != nil {
				return nil, err
			}
			c := *n
			c.Select = stmt
			return &c, nil
		case *core.InExpr:
			if n.Query != nil {
				stmt, _, err := a.analyzeStmt(n.Query, s, s.ctes)
				if err != nil {
					return nil, err
				}
				n.Query = stmt
			}
			return n, nil
		}
		return n, nil
	})
}

func (a *analyzer) resolveRef(ref *core.ColumnRef, s *scope, cl clause) (core.Expr, error) {
	name := ref.Column.Name

	if len(ref.Qualifier) == 0 {
		if cl == clauseOrder {
			if _, ok := s.aliases[name]; ok {
				return &core.ColumnRef{Column: ref.Column}, nil
			}
		}
		for sc := s; sc != nil; sc = sc.outer {
			src, err := sc.unqualified(name)
			if err != nil {
				return nil, err
			}
			if src != nil {
				return a.bindChecked(src, name)
			}
			if sc == s && cl == clauseGroup {
				if expr, ok := s.aliases[name]; ok {
					return expr, nil
				}
			}
		}
		return nil, mdl.NoFieldError(name)
	}

	for sc := s; sc != nil; sc = sc.outer {
		if src := sc.qualified(ref.Qualifier); src != nil {
			return a.bindChecked(src, name)
		}
	}
	return nil, mdl.NoFieldError(core.JoinIdents(ref.Parts()))
}

func (a *analyzer) bindChecked(src *source, name string) (core.Expr, error) {
	if src.relationshipColumn(name) {
		return nil, &mdl.UnsupportedConstructError{
			Construct: fmt.Sprintf("relationship column %s.%s used in a query", src.dataset.Name(), name),
		}
	}
	if !src.has(name) {
		if src.name.IsZero() {
			return nil, mdl.NoFieldError(name)
		}
		return nil, mdl.NoFieldError(src.name.Name + "." + name)
	}
	return a.bind(src, name), nil
}

// bind returns a reference to name in src and records that src must
// project it.
func (a *analyzer) bind(src *source, name string) *core.ColumnRef {
	if src.rel != nil {
		src.rel.require(name)
	}
	ref := &core.ColumnRef{Column: core.Ident{Name: name}}
	if !src.name.IsZero() {
		ref.Qualifier = []core.Ident{{Name: src.name.Name}}
	}
	return ref
}

// checkFunction accepts calls to registered remote functions and to the
// dialect's builtins, and checks OVER against the function kind.
func (a *analyzer) checkFunction(fn *core.FuncCall) error {
	name := fn.Name.Name
	typ, ok := a.funcs[name]
	if !ok && !fn.Name.Quoted {
		for registered, t := range a.funcs {
			if strings.EqualFold(registered, name) {
				typ, ok = t, true
				break
			}
		}
	}
	if !ok {
		typ, ok = a.dialect.Function(name)
	}
	if !ok {
		return &mdl.ResolutionError{Name: name, Msg: fmt.Sprintf("Invalid function '%s'.", name)}
	}

	switch {
	case typ == dialect.ScalarFunction && fn.Window != nil:
		return planningErrorf("scalar function %s does not take an OVER clause", name)
	case typ == dialect.ScalarFunction && fn.Filter != nil:
		return planningErrorf("FILTER is only valid for aggregate functions, not %s", name)
	case typ == dialect.WindowFunction && fn.Window == nil:
		return planningErrorf("window function %s requires an OVER clause", name)
	}
	return nil
}

func (a *analyzer) outputName(alias core.Ident, expr core.Expr) string {
	if !alias.IsZero() {
		return alias.Name
	}
	if ref, ok := expr.(*core.ColumnRef); ok {
		return ref.Column.Name
	}
	return format.Expr(expr, a.dialect)
}

// valueColumns lists the columns a dataset exposes to queries.
func valueColumns(ds mdl.Dataset) []string {
	var out []string
	for _, col := range ds.Columns() {
		if !col.IsRelationship() {
			out = append(out, col.Name)
		}
	}
	return out
}

func identNames(ids []core.Ident) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Name
	}
	return out
}

func commonColumns(left []*source, right *source) []string {
	var out []string
	for _, name := range right.columns {
		for _, src := range left {
			if src.has(name) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
