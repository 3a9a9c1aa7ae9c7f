package mdl

// ManifestBuilder provides a fluent API for constructing manifests in code
// and tests.
type ManifestBuilder struct {
	manifest *Manifest
}

// NewManifestBuilder starts a manifest in catalog "wrenai", schema "public".
func NewManifestBuilder() *ManifestBuilder {
	return &ManifestBuilder{manifest: &Manifest{Catalog: "wrenai", Schema: "public"}}
}

// Catalog sets the catalog name.
func (b *ManifestBuilder) Catalog(catalog string) *ManifestBuilder {
	b.manifest.Catalog = catalog
	return b
}

// Schema sets the schema name.
func (b *ManifestBuilder) Schema(schema string) *ManifestBuilder {
	b.manifest.Schema = schema
	return b
}

// Model adds a model.
func (b *ManifestBuilder) Model(m *Model) *ManifestBuilder {
	b.manifest.Models = append(b.manifest.Models, m)
	return b
}

// Relationship adds a relationship.
func (b *ManifestBuilder) Relationship(r *Relationship) *ManifestBuilder {
	b.manifest.Relationships = append(b.manifest.Relationships, r)
	return b
}

// Metric adds a metric.
func (b *ManifestBuilder) Metric(m *Metric) *ManifestBuilder {
	b.manifest.Metrics = append(b.manifest.Metrics, m)
	return b
}

// View adds a view.
func (b *ManifestBuilder) View(v *View) *ManifestBuilder {
	b.manifest.Views = append(b.manifest.Views, v)
	return b
}

// Build returns the manifest.
func (b *ManifestBuilder) Build() *Manifest {
	return b.manifest
}

// ModelBuilder builds a Model.
type ModelBuilder struct {
	model *Model
}

// NewModelBuilder starts a model.
func NewModelBuilder(name string) *ModelBuilder {
	return &ModelBuilder{model: &Model{Name: name}}
}

// TableReference sets the physical table, 1 to 3 dotted parts.
func (b *ModelBuilder) TableReference(ref string) *ModelBuilder {
	b.model.TableReference = ref
	return b
}

// RefSQL sources the model from a SQL statement.
func (b *ModelBuilder) RefSQL(sql string) *ModelBuilder {
	b.model.RefSQL = sql
	return b
}

// BaseObject sources the model from another dataset.
func (b *ModelBuilder) BaseObject(name string) *ModelBuilder {
	b.model.BaseObject = name
	return b
}

// Column adds a column.
func (b *ModelBuilder) Column(c *Column) *ModelBuilder {
	b.model.Columns = append(b.model.Columns, c)
	return b
}

// PrimaryKey sets the primary key column.
func (b *ModelBuilder) PrimaryKey(name string) *ModelBuilder {
	b.model.PrimaryKey = name
	return b
}

// Cached marks the model as cached.
func (b *ModelBuilder) Cached(cached bool) *ModelBuilder {
	b.model.Cached = cached
	return b
}

// RefreshTime sets the cache refresh interval.
func (b *ModelBuilder) RefreshTime(t string) *ModelBuilder {
	b.model.RefreshTime = t
	return b
}

// Property sets a property.
func (b *ModelBuilder) Property(key, value string) *ModelBuilder {
	b.model.Properties = setProperty(b.model.Properties, key, value)
	return b
}

// Build returns the model.
func (b *ModelBuilder) Build() *Model {
	return b.model
}

// ColumnBuilder builds a Column.
type ColumnBuilder struct {
	column *Column
}

// NewColumnBuilder starts a column of the given type.
func NewColumnBuilder(name, typ string) *ColumnBuilder {
	return &ColumnBuilder{column: &Column{Name: name, Type: typ}}
}

// Relationship makes the column traverse the named relationship.
func (b *ColumnBuilder) Relationship(name string) *ColumnBuilder {
	b.column.Relationship = name
	return b
}

// Calculated marks the column as calculated.
func (b *ColumnBuilder) Calculated(calculated bool) *ColumnBuilder {
	b.column.IsCalculated = calculated
	return b
}

// NotNull marks the column as not nullable.
func (b *ColumnBuilder) NotNull(notNull bool) *ColumnBuilder {
	b.column.NotNull = notNull
	return b
}

// Expression sets the column expression.
func (b *ColumnBuilder) Expression(expr string) *ColumnBuilder {
	b.column.Expression = expr
	return b
}

// Property sets a property.
func (b *ColumnBuilder) Property(key, value string) *ColumnBuilder {
	b.column.Properties = setProperty(b.column.Properties, key, value)
	return b
}

// Build returns the column.
func (b *ColumnBuilder) Build() *Column {
	return b.column
}

// RelationshipBuilder builds a Relationship.
type RelationshipBuilder struct {
	rel *Relationship
}

// NewRelationshipBuilder starts a relationship.
func NewRelationshipBuilder(name string) *RelationshipBuilder {
	return &RelationshipBuilder{rel: &Relationship{Name: name}}
}

// Model adds a model to the relationship.
func (b *RelationshipBuilder) Model(name string) *RelationshipBuilder {
	b.rel.Models = append(b.rel.Models, name)
	return b
}

// JoinType sets the cardinality.
func (b *RelationshipBuilder) JoinType(jt JoinType) *RelationshipBuilder {
	b.rel.JoinType = jt
	return b
}

// Condition sets the join condition.
func (b *RelationshipBuilder) Condition(cond string) *RelationshipBuilder {
	b.rel.Condition = cond
	return b
}

// Property sets a property.
func (b *RelationshipBuilder) Property(key, value string) *RelationshipBuilder {
	b.rel.Properties = setProperty(b.rel.Properties, key, value)
	return b
}

// Build returns the relationship.
func (b *RelationshipBuilder) Build() *Relationship {
	return b.rel
}

// MetricBuilder builds a Metric.
type MetricBuilder struct {
	metric *Metric
}

// NewMetricBuilder starts a metric over baseObject.
func NewMetricBuilder(name, baseObject string) *MetricBuilder {
	return &MetricBuilder{metric: &Metric{Name: name, BaseObject: baseObject}}
}

// Dimension adds a dimension.
func (b *MetricBuilder) Dimension(c *Column) *MetricBuilder {
	b.metric.Dimension = append(b.metric.Dimension, c)
	return b
}

// Measure adds a measure.
func (b *MetricBuilder) Measure(c *Column) *MetricBuilder {
	b.metric.Measure = append(b.metric.Measure, c)
	return b
}

// TimeGrain adds a time grain.
func (b *MetricBuilder) TimeGrain(name, refColumn string, parts ...TimeUnit) *MetricBuilder {
	b.metric.TimeGrain = append(b.metric.TimeGrain, &TimeGrain{Name: name, RefColumn: refColumn, DateParts: parts})
	return b
}

// Cached marks the metric as cached.
func (b *MetricBuilder) Cached(cached bool) *MetricBuilder {
	b.metric.Cached = cached
	return b
}

// RefreshTime sets the cache refresh interval.
func (b *MetricBuilder) RefreshTime(t string) *MetricBuilder {
	b.metric.RefreshTime = t
	return b
}

// Property sets a property.
func (b *MetricBuilder) Property(key, value string) *MetricBuilder {
	b.metric.Properties = setProperty(b.metric.Properties, key, value)
	return b
}

// Build returns the metric.
func (b *MetricBuilder) Build() *Metric {
	return b.metric
}

// ViewBuilder builds a View.
type ViewBuilder struct {
	view *View
}

// NewViewBuilder starts a view.
func NewViewBuilder(name string) *ViewBuilder {
	return &ViewBuilder{view: &View{Name: name}}
}

// Statement sets the view SQL.
func (b *ViewBuilder) Statement(sql string) *ViewBuilder {
	b.view.Statement = sql
	return b
}

// Property sets a property.
func (b *ViewBuilder) Property(key, value string) *ViewBuilder {
	b.view.Properties = setProperty(b.view.Properties, key, value)
	return b
}

// Build returns the view.
func (b *ViewBuilder) Build() *View {
	return b.view
}

func setProperty(props map[string]string, key, value string) map[string]string {
	if props == nil {
		props = make(map[string]string)
	}
	props[key] = value
	return props
}
