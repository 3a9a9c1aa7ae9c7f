package mdl

import (
	"context"
	"sync"
)

// Field is one column of a physical table.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Schema is the ordered field list of a physical table.
type Schema []Field

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// DataSource is a physical table: something with a schema that can be
// scanned. Transforms only read the schema; Scan is for callers that
// execute against the source.
type DataSource interface {
	Schema() Schema
	Scan(ctx context.Context, columns []string, limit int) (RowIterator, error)
}

// RowIterator iterates over scanned rows.
//
//	for it.Next() {
//	    row := it.Values()
//	}
//	if err := it.Err(); err != nil { ... }
type RowIterator interface {
	Next() bool
	Values() []any
	Err() error
	Close() error
}

// MemTable is an in-memory DataSource. Tables inferred from a manifest are
// MemTables without rows.
type MemTable struct {
	schema Schema

	mu   sync.RWMutex
	rows [][]any
}

// NewMemTable returns a table with the given schema and rows. Each row
// holds one value per schema field.
func NewMemTable(schema Schema, rows ...[]any) *MemTable {
	return &MemTable{schema: schema, rows: rows}
}

// Schema implements DataSource.
func (t *MemTable) Schema() Schema { return t.schema }

// Append adds rows to the table.
func (t *MemTable) Append(rows ...[]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, rows...)
}

// Scan implements DataSource. An empty column list selects every field; a
// limit of zero or less means no limit.
func (t *MemTable) Scan(ctx context.Context, columns []string, limit int) (RowIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := make([]int, 0, len(columns))
	if len(columns) == 0 {
		for i := range t.schema {
			idx = append(idx, i)
		}
	}
	for _, name := range columns {
		found := -1
		for i, f := range t.schema {
			if f.Name == name {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, NoFieldError(name)
		}
		idx = append(idx, found)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.rows)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([][]any, n)
	for r := 0; r < n; r++ {
		row := make([]any, len(idx))
		for c, i := range idx {
			if i < len(t.rows[r]) {
				row[c] = t.rows[r][i]
			}
		}
		out[r] = row
	}
	return &sliceRows{ctx: ctx, rows: out, pos: -1}, nil
}

type sliceRows struct {
	ctx  context.Context
	rows [][]any
	pos  int
	err  error
}

func (it *sliceRows) Next() bool {
	if it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}
	it.pos++
	return it.pos < len(it.rows)
}

func (it *sliceRows) Values() []any {
	if it.pos < 0 || it.pos >= len(it.rows) {
		return nil
	}
	return it.rows[it.pos]
}

func (it *sliceRows) Err() error { return it.err }

func (it *sliceRows) Close() error {
	it.rows = nil
	return nil
}
