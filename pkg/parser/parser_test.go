package parser

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, sql string) *core.SelectStmt {
	t.Helper()
	stmt, err := Parse(sql)
	require.NoError(t, err, sql)
	require.NotNil(t, stmt)
	return stmt
}

func TestParse_SelectList(t *testing.T) {
	stmt := mustParse(t, `SELECT *, c.*, c.custkey AS key, "Name" n, 1 + 2 FROM customer c`)
	sc := stmt.Body.Left
	require.Len(t, sc.Columns, 5)

	assert.True(t, sc.Columns[0].Star)
	assert.Equal(t, core.Idents("c"), sc.Columns[1].TableStar)

	ref, ok := sc.Columns[2].Expr.(*core.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "c", ref.Table().Name)
	assert.Equal(t, "custkey", ref.Column.Name)
	assert.Equal(t, "key", sc.Columns[2].Alias.Name)

	ref, ok = sc.Columns[3].Expr.(*core.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, core.Ident{Name: "Name", Quoted: true}, ref.Column)
	assert.Equal(t, "n", sc.Columns[3].Alias.Name)

	bin, ok := sc.Columns[4].Expr.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.PLUS, bin.Op)

	tbl, ok := sc.From.Source.(*core.TableName)
	require.True(t, ok)
	assert.Equal(t, "customer", tbl.Name().Name)
	assert.Equal(t, "c", tbl.Alias.Name)
}

func TestParse_QualifiedColumnContinuesExpression(t *testing.T) {
	stmt := mustParse(t, "SELECT c.a * 2 AS doubled FROM c")
	item := stmt.Body.Left.Columns[0]

	bin, ok := item.Expr.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.STAR, bin.Op)
	assert.IsType(t, &core.ColumnRef{}, bin.Left)
	assert.Equal(t, "doubled", item.Alias.Name)
}

func TestParse_Precedence(t *testing.T) {
	expr, err := ParseExpr("a + b * c = d OR NOT e AND f")
	require.NoError(t, err)

	or, ok := expr.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.OR, or.Op)

	eq, ok := or.Left.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.EQ, eq.Op)

	add, ok := eq.Left.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.PLUS, add.Op)
	mul, ok := add.Right.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.STAR, mul.Op)

	and, ok := or.Right.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.AND, and.Op)
	not, ok := and.Left.(*core.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.NOT, not.Op)
}

func TestParse_LeftAssociative(t *testing.T) {
	expr, err := ParseExpr("a - b - c")
	require.NoError(t, err)

	outer := expr.(*core.BinaryExpr)
	inner, ok := outer.Left.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "a", inner.Left.(*core.ColumnRef).Column.Name)
	assert.Equal(t, "c", outer.Right.(*core.ColumnRef).Column.Name)
}

func TestParse_Predicates(t *testing.T) {
	tests := []struct {
		sql  string
		want core.Expr
	}{
		{"a IS NULL", &core.IsNullExpr{}},
		{"a IS NOT TRUE", &core.IsBoolExpr{}},
		{"a NOT IN (1, 2)", &core.InExpr{}},
		{"a IN (SELECT b FROM t)", &core.InExpr{}},
		{"a BETWEEN 1 AND 2", &core.BetweenExpr{}},
		{"a NOT LIKE 'x%'", &core.LikeExpr{}},
		{"a ILIKE 'x%'", &core.LikeExpr{}},
		{"NOT EXISTS (SELECT 1)", &core.ExistsExpr{}},
		{"CASE WHEN a THEN 1 ELSE 2 END", &core.CaseExpr{}},
		{"CASE a WHEN 1 THEN 'one' END", &core.CaseExpr{}},
		{"CAST(a AS DECIMAL(10,2))", &core.CastExpr{}},
		{"a::varchar", &core.CastExpr{}},
		{"(SELECT max(a) FROM t)", &core.SubqueryExpr{}},
		{"(a)", &core.ParenExpr{}},
		{"DATE '2024-01-01'", &core.TypedLiteral{}},
		{"INTERVAL '1' DAY", &core.IntervalExpr{}},
		{"EXTRACT(year FROM d)", &core.ExtractExpr{}},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			expr, err := ParseExpr(tt.sql)
			require.NoError(t, err)
			assert.IsType(t, tt.want, expr)
		})
	}
}

func TestParse_PredicateDetails(t *testing.T) {
	expr, err := ParseExpr("a NOT IN (1, 2)")
	require.NoError(t, err)
	in := expr.(*core.InExpr)
	assert.True(t, in.Not)
	assert.Len(t, in.Values, 2)

	expr, err = ParseExpr("NOT EXISTS (SELECT 1)")
	require.NoError(t, err)
	assert.True(t, expr.(*core.ExistsExpr).Not)

	expr, err = ParseExpr("CAST(a AS double precision)")
	require.NoError(t, err)
	assert.Equal(t, "DOUBLE PRECISION", expr.(*core.CastExpr).TypeName)

	expr, err = ParseExpr("x::timestamp with time zone")
	require.NoError(t, err)
	assert.Equal(t, "TIMESTAMP WITH TIME ZONE", expr.(*core.CastExpr).TypeName)

	expr, err = ParseExpr("INTERVAL '3' days")
	require.NoError(t, err)
	iv := expr.(*core.IntervalExpr)
	assert.Equal(t, "3", iv.Value)
	assert.Equal(t, "DAY", iv.Unit)
}

func TestParse_FunctionCalls(t *testing.T) {
	expr, err := ParseExpr("count(*)")
	require.NoError(t, err)
	fn := expr.(*core.FuncCall)
	assert.Equal(t, "count", fn.Name.Name)
	assert.True(t, fn.Star)

	expr, err = ParseExpr("COUNT(DISTINCT a) FILTER (WHERE b > 1)")
	require.NoError(t, err)
	fn = expr.(*core.FuncCall)
	assert.True(t, fn.Distinct)
	assert.NotNil(t, fn.Filter)

	expr, err = ParseExpr("left(name, 3)")
	require.NoError(t, err)
	fn = expr.(*core.FuncCall)
	assert.Equal(t, "left", fn.Name.Name)
	assert.Len(t, fn.Args, 2)

	expr, err = ParseExpr("now()")
	require.NoError(t, err)
	assert.Empty(t, expr.(*core.FuncCall).Args)
}

func TestParse_Window(t *testing.T) {
	expr, err := ParseExpr("sum(a) OVER (PARTITION BY b ORDER BY c DESC ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)")
	require.NoError(t, err)

	fn := expr.(*core.FuncCall)
	require.NotNil(t, fn.Window)
	assert.Len(t, fn.Window.PartitionBy, 1)
	require.Len(t, fn.Window.OrderBy, 1)
	assert.True(t, fn.Window.OrderBy[0].Desc)

	frame := fn.Window.Frame
	require.NotNil(t, frame)
	assert.Equal(t, core.FrameRows, frame.Type)
	assert.Equal(t, core.FrameUnboundedPreceding, frame.Start.Type)
	assert.Equal(t, core.FrameCurrentRow, frame.End.Type)

	expr, err = ParseExpr("avg(a) OVER (ORDER BY d RANGE 3 PRECEDING)")
	require.NoError(t, err)
	frame = expr.(*core.FuncCall).Window.Frame
	assert.Equal(t, core.FrameExprPreceding, frame.Start.Type)
	assert.NotNil(t, frame.Start.Offset)
}

func TestParse_Joins(t *testing.T) {
	stmt := mustParse(t, `SELECT 1 FROM a
		JOIN b ON a.id = b.id
		LEFT OUTER JOIN c USING (id)
		CROSS JOIN d
		, e
		NATURAL FULL JOIN f`)

	from := stmt.Body.Left.From
	require.Len(t, from.Joins, 5)

	assert.Equal(t, core.JoinInner, from.Joins[0].Type)
	assert.NotNil(t, from.Joins[0].Condition)

	assert.Equal(t, core.JoinLeft, from.Joins[1].Type)
	assert.Equal(t, core.Idents("id"), from.Joins[1].Using)

	assert.Equal(t, core.JoinCross, from.Joins[2].Type)
	assert.Equal(t, core.JoinComma, from.Joins[3].Type)

	assert.Equal(t, core.JoinFull, from.Joins[4].Type)
	assert.True(t, from.Joins[4].Natural)
}

func TestParse_DerivedTableAndCTE(t *testing.T) {
	stmt := mustParse(t, `WITH x AS (SELECT a FROM t), y AS (SELECT a FROM x)
		SELECT s.a FROM (SELECT a FROM y) AS s`)

	require.NotNil(t, stmt.With)
	require.Len(t, stmt.With.CTEs, 2)
	assert.Equal(t, "x", stmt.With.CTEs[0].Name.Name)
	assert.Equal(t, "y", stmt.With.CTEs[1].Name.Name)

	derived, ok := stmt.Body.Left.From.Source.(*core.DerivedTable)
	require.True(t, ok)
	assert.Equal(t, "s", derived.Alias.Name)
	assert.NotNil(t, derived.Select)
}

func TestParse_Clauses(t *testing.T) {
	stmt := mustParse(t, `SELECT DISTINCT a, count(*) FROM t WHERE a > 1
		GROUP BY a HAVING count(*) > 2 ORDER BY 2 DESC NULLS LAST, a LIMIT 10 OFFSET 5;`)

	sc := stmt.Body.Left
	assert.True(t, sc.Distinct)
	assert.NotNil(t, sc.Where)
	assert.Len(t, sc.GroupBy, 1)
	assert.NotNil(t, sc.Having)
	require.Len(t, sc.OrderBy, 2)
	assert.True(t, sc.OrderBy[0].Desc)
	require.NotNil(t, sc.OrderBy[0].NullsFirst)
	assert.False(t, *sc.OrderBy[0].NullsFirst)
	assert.False(t, sc.OrderBy[1].Explicit)
	assert.NotNil(t, sc.Limit)
	assert.NotNil(t, sc.Offset)
}

func TestParse_SetOperations(t *testing.T) {
	stmt := mustParse(t, "SELECT a FROM t UNION ALL SELECT a FROM u EXCEPT SELECT a FROM v")

	body := stmt.Body
	assert.Equal(t, core.SetOpUnion, body.Op)
	assert.True(t, body.All)
	require.NotNil(t, body.Right)
	assert.Equal(t, core.SetOpExcept, body.Right.Op)
	assert.Len(t, body.Cores(), 3)
}

func TestParse_TablePartsAndSoftKeywords(t *testing.T) {
	stmt := mustParse(t, "SELECT first, rows FROM wren.public.orders")
	tbl := stmt.Body.Left.From.Source.(*core.TableName)
	assert.Equal(t, core.Idents("wren", "public", "orders"), tbl.Parts)

	cols := stmt.Body.Left.Columns
	assert.Equal(t, "first", cols[0].Expr.(*core.ColumnRef).Column.Name)
	assert.Equal(t, "rows", cols[1].Expr.(*core.ColumnRef).Column.Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"missing from target", "SELECT a FROM", "expected table reference"},
		{"trailing garbage", "SELECT a FROM t t2 t3", "unexpected identifier t3"},
		{"too many parts", "SELECT a.b.c.d.e FROM t", "has more than 4 parts"},
		{"too many table parts", "SELECT 1 FROM a.b.c.d", "has more than 3 parts"},
		{"unterminated string", "SELECT 'abc", ErrUnterminatedString},
		{"lateral", "SELECT 1 FROM LATERAL (SELECT 1) x", "not implemented: LATERAL"},
		{"named window", "SELECT sum(a) OVER w FROM t", "not implemented: named windows"},
		{"missing on", "SELECT 1 FROM a JOIN b", "expected ON or USING"},
		{"case without when", "SELECT CASE a END", "expected WHEN"},
		{"not a statement", "UPDATE t SET a = 1", "expected SELECT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.sql)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var perrs Errors
			require.True(t, errors.As(err, &perrs))
			assert.NotEmpty(t, perrs)
		})
	}
}

func TestParseError_Position(t *testing.T) {
	_, err := Parse("SELECT a\nFROM")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Pos.Line)
	assert.Contains(t, perr.Error(), "parse error at line 2")
}
