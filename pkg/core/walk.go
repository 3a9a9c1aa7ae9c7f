package core

// Inspect traverses an expression depth-first and calls fn for each
// expression node. If fn returns false, the children of that node are
// skipped. Subqueries are not entered; callers resolve them in their own
// scope.
func Inspect(expr Expr, fn func(Expr) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	for _, child := range Children(expr) {
		Inspect(child, fn)
	}
}

// Children returns the direct sub-expressions of expr.
func Children(expr Expr) []Expr {
	switch e := expr.(type) {
	case *BinaryExpr:
		return []Expr{e.Left, e.Right}
	case *UnaryExpr:
		return []Expr{e.Expr}
	case *ParenExpr:
		return []Expr{e.Expr}
	case *CastExpr:
		return []Expr{e.Expr}
	case *ExtractExpr:
		return []Expr{e.Expr}
	case *IsNullExpr:
		return []Expr{e.Expr}
	case *IsBoolExpr:
		return []Expr{e.Expr}
	case *LikeExpr:
		return []Expr{e.Expr, e.Pattern}
	case *BetweenExpr:
		return []Expr{e.Expr, e.Low, e.High}
	case *InExpr:
		return append([]Expr{e.Expr}, e.Values...)
	case *FuncCall:
		out := append([]Expr{}, e.Args...)
		if e.Filter != nil {
			out = append(out, e.Filter)
		}
		if e.Window != nil {
			out = append(out, e.Window.PartitionBy...)
			for _, item := range e.Window.OrderBy {
				out = append(out, item.Expr)
			}
		}
		return out
	case *CaseExpr:
		var out []Expr
		if e.Operand != nil {
			out = append(out, e.Operand)
		}
		for _, w := range e.Whens {
			out = append(out, w.Condition, w.Result)
		}
		if e.Else != nil {
			out = append(out, e.Else)
		}
		return out
	default:
		return nil
	}
}

// ColumnRefs returns every column reference in expr, in source order.
func ColumnRefs(expr Expr) []*ColumnRef {
	var refs []*ColumnRef
	Inspect(expr, func(e Expr) bool {
		if ref, ok := e.(*ColumnRef); ok {
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}

// Rewrite rebuilds expr bottom-up, replacing every node with the result of
// fn. Children are rewritten before their parent is passed to fn. Nodes are
// copied, the input tree is never modified. Subqueries are shared, not
// entered.
func Rewrite(expr Expr, fn func(Expr) (Expr, error)) (Expr, error) {
	if expr == nil {
		return nil, nil
	}
	var err error
	rw := func(e Expr) Expr {
		if err != nil || e == nil {
			return e
		}
		var out Expr
		out, err = Rewrite(e, fn)
		return out
	}
	rwList := func(list []Expr) []Expr {
		if list == nil {
			return nil
		}
		out := make([]Expr, len(list))
		for i, e := range list {
			out[i] = rw(e)
		}
		return out
	}
	rwOrder := func(items []OrderByItem) []OrderByItem {
		if items == nil {
			return nil
		}
		out := make([]OrderByItem, len(items))
		for i, item := range items {
			out[i] = item
			out[i].Expr = rw(item.Expr)
		}
		return out
	}

	var node Expr
	switch e := expr.(type) {
	case *BinaryExpr:
		c := *e
		c.Left, c.Right = rw(e.Left), rw(e.Right)
		node = &c
	case *UnaryExpr:
		c := *e
		c.Expr = rw(e.Expr)
		node = &c
	case *ParenExpr:
		c := *e
		c.Expr = rw(e.Expr)
		node = &c
	case *CastExpr:
		c := *e
		c.Expr = rw(e.Expr)
		node = &c
	case *ExtractExpr:
		c := *e
		c.Expr = rw(e.Expr)
		node = &c
	case *IsNullExpr:
		c := *e
		c.Expr = rw(e.Expr)
		node = &c
	case *IsBoolExpr:
		c := *e
		c.Expr = rw(e.Expr)
		node = &c
	case *LikeExpr:
		c := *e
		c.Expr, c.Pattern = rw(e.Expr), rw(e.Pattern)
		node = &c
	case *BetweenExpr:
		c := *e
		c.Expr, c.Low, c.High = rw(e.Expr), rw(e.Low), rw(e.High)
		node = &c
	case *InExpr:
		c := *e
		c.Expr = rw(e.Expr)
		c.Values = rwList(e.Values)
		node = &c
	case *FuncCall:
		c := *e
		c.Args = rwList(e.Args)
		c.Filter = rw(e.Filter)
		if e.Window != nil {
			w := *e.Window
			w.PartitionBy = rwList(e.Window.PartitionBy)
			w.OrderBy = rwOrder(e.Window.OrderBy)
			c.Window = &w
		}
		node = &c
	case *CaseExpr:
		c := *e
		c.Operand = rw(e.Operand)
		c.Whens = make([]WhenClause, len(e.Whens))
		for i, w := range e.Whens {
			c.Whens[i] = WhenClause{Condition: rw(w.Condition), Result: rw(w.Result)}
		}
		c.Else = rw(e.Else)
		node = &c
	case *ColumnRef:
		c := *e
		c.Qualifier = append([]Ident(nil), e.Qualifier...)
		node = &c
	default:
		node = expr
	}
	if err != nil {
		return nil, err
	}
	return fn(node)
}
