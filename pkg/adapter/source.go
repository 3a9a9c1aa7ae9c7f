package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/semql/pkg/mdl"
)

// Table is a physical table of an adapter. It implements mdl.DataSource.
type Table struct {
	adapter Adapter
	name    string
	schema  mdl.Schema
}

// OpenTable introspects table and returns it as a data source.
func OpenTable(ctx context.Context, a Adapter, table string) (*Table, error) {
	schema, err := a.TableSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	return &Table{adapter: a, name: table, schema: schema}, nil
}

// Name returns the table name as passed to OpenTable.
func (t *Table) Name() string { return t.name }

// Schema returns the introspected columns.
func (t *Table) Schema() mdl.Schema { return t.schema }

// Scan selects columns from the table, all of them when columns is empty.
// A positive limit caps the number of rows.
func (t *Table) Scan(ctx context.Context, columns []string, limit int) (mdl.RowIterator, error) {
	d := t.adapter.Dialect()

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(columns) == 0 {
		columns = t.schema.Names()
	}
	for i, name := range columns {
		if _, ok := t.schema.Field(name); !ok {
			return nil, mdl.NoFieldError(name)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.Ident(name))
	}
	sb.WriteString(" FROM ")
	for i, part := range strings.Split(t.name, ".") {
		if i > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(d.Ident(part))
	}
	if limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(limit))
	}

	rows, err := t.adapter.Query(ctx, sb.String())
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows, n: len(columns)}, nil
}

type sqlRows struct {
	rows   *sql.Rows
	n      int
	values []any
	err    error
}

func (r *sqlRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	values := make([]any, r.n)
	ptrs := make([]any, r.n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = fmt.Errorf("failed to scan row: %w", err)
		return false
	}
	r.values = values
	return true
}

func (r *sqlRows) Values() []any { return r.values }

func (r *sqlRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *sqlRows) Close() error { return r.rows.Close() }

// DataSources opens the table of every model of m that has a table
// reference, keyed by the reference. Models whose table does not exist
// are skipped so their schema is inferred from the manifest instead.
func DataSources(ctx context.Context, a Adapter, m *mdl.Manifest) (map[string]mdl.DataSource, error) {
	out := make(map[string]mdl.DataSource)
	for _, model := range m.Models {
		ref := model.TableReference
		if ref == "" {
			continue
		}
		if _, ok := out[ref]; ok {
			continue
		}
		parts := model.TableParts()
		table := parts[len(parts)-1]
		if len(parts) > 1 {
			table = parts[len(parts)-2] + "." + table
		}
		t, err := OpenTable(ctx, a, table)
		if err != nil {
			var notFound *TableNotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return nil, fmt.Errorf("model %s: %w", model.Name, err)
		}
		out[ref] = t
	}
	return out, nil
}

// Skeleton builds a manifest with one model per table of schema. Every
// column is a passthrough column of its physical type.
func Skeleton(ctx context.Context, a Adapter, catalog, schema string) (*mdl.Manifest, error) {
	tables, err := a.Tables(ctx, schema)
	if err != nil {
		return nil, err
	}

	b := mdl.NewManifestBuilder()
	if catalog != "" {
		b.Catalog(catalog)
	}
	if schema != "" {
		b.Schema(schema)
	}
	for _, name := range tables {
		ref := name
		if schema != "" {
			ref = schema + "." + name
		}
		fields, err := a.TableSchema(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", ref, err)
		}
		mb := mdl.NewModelBuilder(name).TableReference(ref)
		for _, f := range fields {
			mb.Column(mdl.NewColumnBuilder(f.Name, strings.ToLower(f.Type)).NotNull(!f.Nullable).Build())
		}
		b.Model(mb.Build())
	}
	return b.Build(), nil
}
