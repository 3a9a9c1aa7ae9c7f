package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semql/pkg/adapter"
	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/transform"
)

func connect(t *testing.T, cfg adapter.Config) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), cfg))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name:      "in-memory",
			setupPath: func(_ *testing.T) string { return "" },
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "test.duckdb")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := tt.setupPath(t)
			adp := connect(t, adapter.Config{Path: dbPath})
			assert.True(t, adp.IsConnected())

			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.ErrorIs(t, adp.Exec(ctx, "SELECT 1"), adapter.ErrNotConnected)
	_, err := adp.Tables(ctx, "")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	_, err = adp.TableSchema(ctx, "orders")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.NoError(t, adp.Close())
}

func TestAdapter_InvalidParams(t *testing.T) {
	adp := New(nil)
	err := adp.Connect(context.Background(), adapter.Config{
		Params: map[string]any{"extensions": []any{"json; DROP TABLE x"}},
	})
	require.Error(t, err)
	assert.False(t, adp.IsConnected())
}

func TestAdapter_Introspection(t *testing.T) {
	ctx := context.Background()
	adp := connect(t, adapter.Config{})

	require.NoError(t, adp.Exec(ctx, `
		CREATE TABLE products (
			product_id INTEGER NOT NULL,
			name VARCHAR,
			price DOUBLE
		)
	`))
	require.NoError(t, adp.Exec(ctx, `CREATE SCHEMA sales`))
	require.NoError(t, adp.Exec(ctx, `CREATE TABLE sales.orders (id INTEGER)`))

	tables, err := adp.Tables(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"products"}, tables)

	tables, err = adp.Tables(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables)

	schema, err := adp.TableSchema(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, mdl.Schema{
		{Name: "product_id", Type: "INTEGER", Nullable: false},
		{Name: "name", Type: "VARCHAR", Nullable: true},
		{Name: "price", Type: "DOUBLE", Nullable: true},
	}, schema)

	_, err = adp.TableSchema(ctx, "nonexistent_table")
	var notFound *adapter.TableNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestAdapter_Skeleton(t *testing.T) {
	ctx := context.Background()
	adp := connect(t, adapter.Config{})
	require.NoError(t, adp.Exec(ctx, `CREATE TABLE nation (n_nationkey INTEGER NOT NULL, n_name VARCHAR)`))

	m, err := adapter.Skeleton(ctx, adp, "wren", "main")
	require.NoError(t, err)
	require.Len(t, m.Models, 1)
	assert.Equal(t, "main.nation", m.Models[0].TableReference)

	// the skeleton is a valid manifest
	_, err = transform.Analyze(m)
	require.NoError(t, err)
}

func TestAdapter_ExecutesPlannedSQL(t *testing.T) {
	ctx := context.Background()
	adp := connect(t, adapter.Config{})

	require.NoError(t, adp.Exec(ctx, `CREATE TABLE orders (o_orderkey INTEGER, o_totalprice DOUBLE)`))
	require.NoError(t, adp.Exec(ctx, `INSERT INTO orders VALUES (1, 100.0), (2, 50.0)`))

	m := mdl.NewManifestBuilder().
		Model(mdl.NewModelBuilder("orders").
			TableReference("orders").
			Column(mdl.NewColumnBuilder("o_orderkey", "integer").Build()).
			Column(mdl.NewColumnBuilder("double_price", "double").Expression("o_totalprice * 2").Build()).
			Build()).
		Build()

	sources, err := adapter.DataSources(ctx, adp, m)
	require.NoError(t, err)
	am, err := transform.Analyze(m, transform.WithTables(sources))
	require.NoError(t, err)

	sess := transform.NewSession(transform.WithDialect(adp.Dialect()))
	planned, err := transform.Transform(ctx, sess, am, nil,
		"select o_orderkey, double_price from orders order by o_orderkey")
	require.NoError(t, err)

	rows, err := adp.Query(ctx, planned)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var got []float64
	for rows.Next() {
		var key int
		var price float64
		require.NoError(t, rows.Scan(&key, &price))
		got = append(got, price)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []float64{200, 100}, got)
}

func TestConnect_WithSettings(t *testing.T) {
	ctx := context.Background()
	adp := connect(t, adapter.Config{
		Params: map[string]any{
			"settings": map[string]any{"threads": 2},
		},
	})

	rows, err := adp.Query(ctx, "SELECT current_setting('threads')")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	var threads string
	require.NoError(t, rows.Scan(&threads))
	assert.Equal(t, "2", threads)
}
