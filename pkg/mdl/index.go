package mdl

import (
	"errors"
	"sort"
	"sync"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/parser"
)

// Index is the resolved form of a Manifest: every model column and metric
// dimension or measure keyed by its qualified name, plus the registry of
// physical tables the models read from.
//
// The index is built once and read-only afterwards, except that physical
// tables may be registered before the first query.
type Index struct {
	manifest   *Manifest
	prefix     string
	references map[QualifiedName]ColumnReference
	datasets   map[string]Dataset
	views      map[string]*View
	rels       map[string]*Relationship

	mu     sync.RWMutex
	tables map[string]DataSource
}

// NewIndex indexes m. Dataset names must be unique across models, metrics
// and views, and column names unique within a dataset.
func NewIndex(m *Manifest) (*Index, error) {
	if m == nil {
		return nil, errors.New("manifest is required")
	}

	idx := &Index{
		manifest:   m,
		prefix:     m.Catalog + "." + m.Schema + ".",
		references: make(map[QualifiedName]ColumnReference),
		datasets:   make(map[string]Dataset, len(m.Models)+len(m.Metrics)),
		views:      make(map[string]*View, len(m.Views)),
		rels:       make(map[string]*Relationship, len(m.Relationships)),
		tables:     make(map[string]DataSource),
	}

	for _, model := range m.Models {
		if err := idx.addDataset(ModelDataset(model)); err != nil {
			return nil, err
		}
	}
	for _, metric := range m.Metrics {
		if err := idx.addDataset(MetricDataset(metric)); err != nil {
			return nil, err
		}
	}
	for _, view := range m.Views {
		if _, ok := idx.datasets[view.Name]; ok || idx.views[view.Name] != nil {
			return nil, &ManifestValidationError{Field: "views." + view.Name, Msg: "duplicate dataset name"}
		}
		idx.views[view.Name] = view
	}
	for _, rel := range m.Relationships {
		idx.rels[rel.Name] = rel
	}

	return idx, nil
}

func (idx *Index) addDataset(ds Dataset) error {
	name := ds.Name()
	if _, ok := idx.datasets[name]; ok {
		return &ManifestValidationError{Field: ds.Kind().String() + "s." + name, Msg: "duplicate dataset name"}
	}
	idx.datasets[name] = ds

	for _, col := range ds.Columns() {
		q := idx.QualifiedColumnName(name, col.Name)
		if _, ok := idx.references[q]; ok {
			return &ManifestValidationError{Field: ds.Kind().String() + "s." + name + "." + col.Name, Msg: "duplicate column"}
		}
		idx.references[q] = ColumnReference{Dataset: ds, Column: col}
	}
	return nil
}

// Manifest returns the indexed manifest.
func (idx *Index) Manifest() *Manifest { return idx.manifest }

// Catalog returns the manifest catalog.
func (idx *Index) Catalog() string { return idx.manifest.Catalog }

// Schema returns the manifest schema.
func (idx *Index) Schema() string { return idx.manifest.Schema }

// CatalogSchemaPrefix returns "catalog.schema.", the prefix that qualifies
// virtual relations.
func (idx *Index) CatalogSchemaPrefix() string { return idx.prefix }

// QualifiedColumnName builds the key of a dataset column.
func (idx *Index) QualifiedColumnName(dataset, column string) QualifiedName {
	return QualifiedName{
		Catalog: idx.manifest.Catalog,
		Schema:  idx.manifest.Schema,
		Dataset: dataset,
		Column:  column,
	}
}

// ColumnReference looks up a column by its exact qualified name.
func (idx *Index) ColumnReference(q QualifiedName) (ColumnReference, bool) {
	ref, ok := idx.references[q]
	return ref, ok
}

// References returns every qualified name, sorted.
func (idx *Index) References() []QualifiedName {
	out := make([]QualifiedName, 0, len(idx.references))
	for q := range idx.references {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Dataset returns the model or metric with the given name.
func (idx *Index) Dataset(name string) (Dataset, bool) {
	ds, ok := idx.datasets[name]
	return ds, ok
}

// Model returns the model with the given name.
func (idx *Index) Model(name string) (*Model, bool) {
	ds, ok := idx.datasets[name]
	if !ok || ds.Model() == nil {
		return nil, false
	}
	return ds.Model(), true
}

// Metric returns the metric with the given name.
func (idx *Index) Metric(name string) (*Metric, bool) {
	ds, ok := idx.datasets[name]
	if !ok || ds.Metric() == nil {
		return nil, false
	}
	return ds.Metric(), true
}

// View returns the view with the given name.
func (idx *Index) View(name string) (*View, bool) {
	v, ok := idx.views[name]
	return v, ok
}

// Relationship returns the relationship with the given name.
func (idx *Index) Relationship(name string) (*Relationship, bool) {
	r, ok := idx.rels[name]
	return r, ok
}

// Models returns the models in manifest order.
func (idx *Index) Models() []*Model { return idx.manifest.Models }

// RegisterTable registers a physical table under its dotted name,
// replacing any previous registration.
func (idx *Index) RegisterTable(name string, src DataSource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tables[name] = src
}

// Table returns the physical table registered under name.
func (idx *Index) Table(name string) (DataSource, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	src, ok := idx.tables[name]
	return src, ok
}

// Tables returns the names of all registered tables, sorted.
func (idx *Index) Tables() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	names := make([]string, 0, len(idx.tables))
	for name := range idx.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InferAndRegisterRemoteTables derives a physical schema for every model
// with a table reference and registers it, keeping tables registered
// earlier under the same name.
func (idx *Index) InferAndRegisterRemoteTables() {
	for _, model := range idx.manifest.Models {
		if model.TableReference == "" {
			continue
		}
		if _, ok := idx.Table(model.TableReference); ok {
			continue
		}
		idx.RegisterTable(model.TableReference, NewMemTable(InferSchema(model)))
	}
}

// InferSchema returns the physical fields a model's source columns imply.
// Calculated and relationship columns contribute nothing. A column without
// an expression is a field of the same name; a column whose expression is
// a bare or dotted identifier is a field named after its last identifier.
// Other expressions cannot be traced to a single field.
func InferSchema(model *Model) Schema {
	var schema Schema
	for _, col := range model.Columns {
		name, ok := inferSourceColumn(col)
		if !ok {
			continue
		}
		if _, dup := schema.Field(name); dup {
			continue
		}
		schema = append(schema, Field{Name: name, Type: col.Type, Nullable: !col.NotNull})
	}
	return schema
}

func inferSourceColumn(col *Column) (string, bool) {
	if col.IsCalculated || col.IsRelationship() {
		return "", false
	}
	if col.Expression == "" {
		return col.Name, true
	}
	expr, err := parser.ParseExpr(col.Expression)
	if err != nil {
		return "", false
	}
	if ref, ok := expr.(*core.ColumnRef); ok {
		return ref.Column.Name, true
	}
	return "", false
}
