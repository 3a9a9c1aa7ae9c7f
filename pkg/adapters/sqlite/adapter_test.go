package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semql/pkg/adapter"
	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/transform"
)

func connect(t *testing.T) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), adapter.Config{}))
	t.Cleanup(func() { _ = adp.Close() })

	require.NoError(t, adp.Exec(context.Background(), `
		CREATE TABLE orders (
			o_orderkey INTEGER PRIMARY KEY,
			o_custkey integer NOT NULL,
			o_totalprice REAL,
			o_comment
		)
	`))
	require.NoError(t, adp.Exec(context.Background(), `CREATE VIEW big_orders AS SELECT * FROM orders WHERE o_totalprice > 100`))
	return adp
}

func TestAdapter_ConnectFile(t *testing.T) {
	adp := New(nil)
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, adp.Connect(context.Background(), adapter.Config{Path: path}))
	defer func() { _ = adp.Close() }()

	require.NoError(t, adp.Exec(context.Background(), "CREATE TABLE t (id INTEGER)"))
	tables, err := adp.Tables(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, tables)
}

func TestAdapter_NotConnected(t *testing.T) {
	adp := New(nil)
	_, err := adp.Tables(context.Background(), "")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	_, err = adp.TableSchema(context.Background(), "orders")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestAdapter_Tables(t *testing.T) {
	adp := connect(t)

	tables, err := adp.Tables(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"big_orders", "orders"}, tables)
}

func TestAdapter_TableSchema(t *testing.T) {
	adp := connect(t)

	tests := []struct {
		table string
		want  mdl.Schema
	}{
		{
			table: "orders",
			want: mdl.Schema{
				{Name: "o_orderkey", Type: "INTEGER"},
				{Name: "o_custkey", Type: "INTEGER"},
				{Name: "o_totalprice", Type: "REAL", Nullable: true},
				{Name: "o_comment", Type: "", Nullable: true},
			},
		},
		{
			table: "main.orders",
			want: mdl.Schema{
				{Name: "o_orderkey", Type: "INTEGER"},
				{Name: "o_custkey", Type: "INTEGER"},
				{Name: "o_totalprice", Type: "REAL", Nullable: true},
				{Name: "o_comment", Type: "", Nullable: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			got, err := adp.TableSchema(context.Background(), tt.table)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := adp.TableSchema(context.Background(), "missing")
	var notFound *adapter.TableNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Table)
}

func TestAdapter_ScanTable(t *testing.T) {
	adp := connect(t)
	ctx := context.Background()
	require.NoError(t, adp.Exec(ctx, `INSERT INTO orders VALUES (1, 10, 150.5, 'a'), (2, 20, 20.0, 'b')`))

	tbl, err := adapter.OpenTable(ctx, adp, "big_orders")
	require.NoError(t, err)

	it, err := tbl.Scan(ctx, []string{"o_orderkey", "o_totalprice"}, 10)
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	var rows [][]any
	for it.Next() {
		rows = append(rows, it.Values())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, [][]any{{int64(1), 150.5}}, rows)
}

func TestAdapter_ExecutesPlannedSQL(t *testing.T) {
	adp := connect(t)
	ctx := context.Background()
	require.NoError(t, adp.Exec(ctx, `INSERT INTO orders VALUES (1, 10, 150.5, 'a'), (2, 20, 20.0, 'b')`))

	m, err := adapter.Skeleton(ctx, adp, "", "")
	require.NoError(t, err)
	require.Len(t, m.Models, 2)

	sources, err := adapter.DataSources(ctx, adp, m)
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	am, err := transform.Analyze(m, transform.WithTables(sources))
	require.NoError(t, err)

	sess := transform.NewSession(transform.WithDialect(adp.Dialect()))
	planned, err := transform.Transform(ctx, sess, am, nil,
		"select o_custkey, sum(o_totalprice) from big_orders group by o_custkey")
	require.NoError(t, err)

	rows, err := adp.Query(ctx, planned)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	require.True(t, rows.Next())
	var cust int
	var total float64
	require.NoError(t, rows.Scan(&cust, &total))
	assert.Equal(t, 10, cust)
	assert.InEpsilon(t, 150.5, total, 0.001)
	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
}
