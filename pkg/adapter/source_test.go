package adapter

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

var mockDialect = dialect.NewDialect("mock").DefaultSchema("main").Build()

type mockAdapter struct {
	BaseSQLAdapter
}

func (m *mockAdapter) Connect(context.Context, Config) error { return nil }

func (m *mockAdapter) Tables(ctx context.Context, schema string) ([]string, error) {
	return m.TablesCommon(ctx, schema, mockDialect)
}

func (m *mockAdapter) TableSchema(ctx context.Context, table string) (mdl.Schema, error) {
	return m.TableSchemaCommon(ctx, table, mockDialect)
}

func (m *mockAdapter) Dialect() *dialect.Dialect { return mockDialect }

func newMockAdapter(t *testing.T) (*mockAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &mockAdapter{BaseSQLAdapter{DB: db}}, mock
}

func columnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"})
}

func TestTable_Scan(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("main", "orders").
		WillReturnRows(columnRows().
			AddRow("o_orderkey", "INTEGER", "NO").
			AddRow("Comment", "VARCHAR", "YES"))

	tbl, err := OpenTable(context.Background(), a, "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", tbl.Name())
	assert.Equal(t, []string{"o_orderkey", "Comment"}, tbl.Schema().Names())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT o_orderkey, "Comment" FROM orders LIMIT 2`)).
		WillReturnRows(sqlmock.NewRows([]string{"o_orderkey", "Comment"}).
			AddRow(int64(1), "first").
			AddRow(int64(2), "second"))

	it, err := tbl.Scan(context.Background(), nil, 2)
	require.NoError(t, err)

	var got [][]any
	for it.Next() {
		got = append(got, it.Values())
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	assert.Equal(t, [][]any{{int64(1), "first"}, {int64(2), "second"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_ScanUnknownColumn(t *testing.T) {
	tbl := &Table{
		adapter: &mockAdapter{},
		name:    "orders",
		schema:  mdl.Schema{{Name: "o_orderkey", Type: "INTEGER"}},
	}

	_, err := tbl.Scan(context.Background(), []string{"o_custkey"}, 0)
	var resErr *mdl.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "o_custkey", resErr.Name)
}

func TestDataSources(t *testing.T) {
	a, mock := newMockAdapter(t)

	m := mdl.NewManifestBuilder().
		Model(mdl.NewModelBuilder("orders").
			TableReference("wren.tpch.orders").
			Column(mdl.NewColumnBuilder("o_orderkey", "integer").Build()).
			Build()).
		Model(mdl.NewModelBuilder("ghost").
			TableReference("tpch.ghost").
			Column(mdl.NewColumnBuilder("id", "integer").Build()).
			Build()).
		Model(mdl.NewModelBuilder("derived").
			RefSQL("SELECT 1 AS id").
			Column(mdl.NewColumnBuilder("id", "integer").Build()).
			Build()).
		Build()

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("tpch", "orders").
		WillReturnRows(columnRows().AddRow("o_orderkey", "INTEGER", "NO"))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("tpch", "ghost").
		WillReturnRows(columnRows())

	sources, err := DataSources(context.Background(), a, m)
	require.NoError(t, err)
	require.Len(t, sources, 1, "missing tables and ref_sql models are skipped")
	require.Contains(t, sources, "wren.tpch.orders")
	assert.Equal(t, mdl.Schema{{Name: "o_orderkey", Type: "INTEGER"}}, sources["wren.tpch.orders"].Schema())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSkeleton(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("tpch").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("nation"))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("tpch", "nation").
		WillReturnRows(columnRows().
			AddRow("n_nationkey", "INTEGER", "NO").
			AddRow("n_name", "VARCHAR", "YES"))

	m, err := Skeleton(context.Background(), a, "wren", "tpch")
	require.NoError(t, err)
	assert.Equal(t, "wren", m.Catalog)
	assert.Equal(t, "tpch", m.Schema)
	require.Len(t, m.Models, 1)

	model := m.Models[0]
	assert.Equal(t, "nation", model.Name)
	assert.Equal(t, "tpch.nation", model.TableReference)
	require.Len(t, model.Columns, 2)
	assert.Equal(t, "integer", model.Columns[0].Type)
	assert.True(t, model.Columns[0].NotNull)
	assert.False(t, model.Columns[1].NotNull)
	assert.NoError(t, mock.ExpectationsWereMet())
}
