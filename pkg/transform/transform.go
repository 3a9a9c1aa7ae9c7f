package transform

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/format"
	"github.com/leapstack-labs/semql/pkg/parser"
)

// Transform rewrites sql, written against the model of am, into SQL over
// the physical sources. funcs are registered in sess first and stay
// registered afterwards.
//
// Every failure is a *TransformError naming the stage that failed.
func Transform(ctx context.Context, sess *Session, am *AnalyzedModel, funcs []RemoteFunction, sql string) (string, error) {
	start := time.Now()
	log := sess.logger.With("manifest", am.Hash())
	log.Info("transforming sql", "sql", sql)

	if err := ctx.Err(); err != nil {
		return "", stageError(StageRegisterFunctions, err)
	}
	if len(funcs) > 0 {
		if err := sess.RegisterFunctions(funcs...); err != nil {
			return "", stageError(StageRegisterFunctions, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return "", stageError(StageBuildCatalog, err)
	}
	cat, err := buildCatalog(am.Index)
	if err != nil {
		return "", stageError(StageBuildCatalog, err)
	}

	if err := ctx.Err(); err != nil {
		return "", stageError(StageParse, err)
	}
	stmt, err := parser.Parse(sql)
	if err != nil {
		return "", stageError(StageParse, err)
	}

	a := &analyzer{
		ctx:     ctx,
		am:      am,
		cat:     cat,
		dialect: sess.dialect,
		funcs:   sess.snapshot(),
	}
	planned, err := a.analyze(stmt)
	if err != nil {
		return "", stageError(StageModelAnalyze, err)
	}

	if err := ctx.Err(); err != nil {
		return "", stageError(StageUnparse, err)
	}
	out, err := unparse(planned, am, sess)
	if err != nil {
		return "", stageError(StageUnparse, err)
	}

	log.Debug("planned sql", "sql", out, "duration", time.Since(start))
	return out, nil
}

// unparse prints the planned statement without the catalog.schema prefix
// of the model and checks that the text parses again.
func unparse(stmt *core.SelectStmt, am *AnalyzedModel, sess *Session) (string, error) {
	stripPrefix(stmt, am.Index.Catalog(), am.Index.Schema())
	out := format.SQL(stmt, sess.dialect)
	if _, err := parser.Parse(out); err != nil {
		return "", fmt.Errorf("generated sql does not parse: %w", err)
	}
	return out, nil
}

// Request is one query of a TransformAll batch.
type Request struct {
	Name string
	SQL  string
}

// Result is the outcome of one Request.
type Result struct {
	Name string
	SQL  string
	Err  error
}

// TransformAll transforms every request with at most limit transforms in
// flight; limit <= 0 means no limit. A failing request does not stop the
// others: its error is stored in its Result. Results keep request order.
func TransformAll(ctx context.Context, sess *Session, am *AnalyzedModel, reqs []Request, limit int) ([]Result, error) {
	results := make([]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sql, err := Transform(gctx, sess, am, nil, req.SQL)
			results[i] = Result{Name: req.Name, SQL: sql, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateColumn reports whether column of the named model can be
// transformed: it plans SELECT "<column>" FROM "<model>" and returns the
// planning error, if any.
func ValidateColumn(ctx context.Context, sess *Session, am *AnalyzedModel, model, column string) error {
	if _, ok := am.Index.Model(model); !ok {
		return fmt.Errorf("model %s not found", model)
	}
	d := sess.dialect
	sql := fmt.Sprintf("SELECT %s FROM %s", d.QuoteIdentifier(column), d.QuoteIdentifier(model))
	_, err := Transform(ctx, sess, am, nil, sql)
	return err
}

// stripPrefix removes the leading catalog and schema of every table name
// and column qualifier that carries them. The tree is modified in place.
func stripPrefix(stmt *core.SelectStmt, catalog, schema string) {
	strip := func(parts []core.Ident) []core.Ident {
		if len(parts) > 2 && parts[0].Name == catalog && parts[1].Name == schema {
			return parts[2:]
		}
		return parts
	}

	var walkStmt func(*core.SelectStmt)
	walkExpr := func(e core.Expr) {
		core.Inspect(e, func(n core.Expr) bool {
			switch n := n.(type) {
			case *core.ColumnRef:
				n.Qualifier = strip(n.Qualifier)
			case *core.SubqueryExpr:
				walkStmt(n.Select)
			case *core.ExistsExpr:
				walkStmt(n.Select)
			case *core.InExpr:
				walkStmt(n.Query)
			}
			return true
		})
	}
	walkRef := func(ref core.TableRef) {
		switch t := ref.(type) {
		case *core.TableName:
			t.Parts = strip(t.Parts)
		case *core.DerivedTable:
			walkStmt(t.Select)
		}
	}
	walkStmt = func(stmt *core.SelectStmt) {
		if stmt == nil {
			return
		}
		if stmt.With != nil {
			for _, cte := range stmt.With.CTEs {
				walkStmt(cte.Select)
			}
		}
		if stmt.Body == nil {
			return
		}
		for _, sc := range stmt.Body.Cores() {
			for _, item := range sc.Columns {
				walkExpr(item.Expr)
			}
			if sc.From != nil {
				walkRef(sc.From.Source)
				for _, j := range sc.From.Joins {
					walkRef(j.Right)
					walkExpr(j.Condition)
				}
			}
			walkExpr(sc.Where)
			for _, e := range sc.GroupBy {
				walkExpr(e)
			}
			walkExpr(sc.Having)
			for _, item := range sc.OrderBy {
				walkExpr(item.Expr)
			}
			walkExpr(sc.Limit)
			walkExpr(sc.Offset)
		}
	}
	walkStmt(stmt)
}
