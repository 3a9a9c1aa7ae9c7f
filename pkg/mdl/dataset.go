package mdl

// DatasetKind tells the variants of Dataset apart.
type DatasetKind int

const (
	// DatasetModel is a Model.
	DatasetModel DatasetKind = iota + 1
	// DatasetMetric is a Metric.
	DatasetMetric
)

func (k DatasetKind) String() string {
	switch k {
	case DatasetModel:
		return "model"
	case DatasetMetric:
		return "metric"
	default:
		return "unknown"
	}
}

// Dataset owns a set of resolvable columns: either a Model or a Metric.
// The zero value is no dataset.
type Dataset struct {
	model  *Model
	metric *Metric
}

// ModelDataset wraps a model.
func ModelDataset(m *Model) Dataset { return Dataset{model: m} }

// MetricDataset wraps a metric.
func MetricDataset(m *Metric) Dataset { return Dataset{metric: m} }

// Kind returns the variant, or 0 for the zero Dataset.
func (d Dataset) Kind() DatasetKind {
	switch {
	case d.model != nil:
		return DatasetModel
	case d.metric != nil:
		return DatasetMetric
	default:
		return 0
	}
}

// IsZero reports whether d holds nothing.
func (d Dataset) IsZero() bool { return d.model == nil && d.metric == nil }

// Model returns the model, or nil for a metric.
func (d Dataset) Model() *Model { return d.model }

// Metric returns the metric, or nil for a model.
func (d Dataset) Metric() *Metric { return d.metric }

// Name returns the dataset name.
func (d Dataset) Name() string {
	switch {
	case d.model != nil:
		return d.model.Name
	case d.metric != nil:
		return d.metric.Name
	default:
		return ""
	}
}

// Columns returns the model columns, or a metric's dimensions followed by
// its measures.
func (d Dataset) Columns() []*Column {
	switch {
	case d.model != nil:
		return d.model.Columns
	case d.metric != nil:
		cols := make([]*Column, 0, len(d.metric.Dimension)+len(d.metric.Measure))
		cols = append(cols, d.metric.Dimension...)
		return append(cols, d.metric.Measure...)
	default:
		return nil
	}
}

// Column returns the named column of the dataset.
func (d Dataset) Column(name string) (*Column, bool) {
	switch {
	case d.model != nil:
		return d.model.Column(name)
	case d.metric != nil:
		return d.metric.Column(name)
	default:
		return nil, false
	}
}

// ColumnReference identifies one resolvable column. It is a pair of
// pointers and cheap to copy.
type ColumnReference struct {
	Dataset Dataset
	Column  *Column
}

// QualifiedName returns "dataset.column".
func (r ColumnReference) QualifiedName() string {
	return r.Dataset.Name() + "." + r.Column.Name
}

// QualifiedName is the four part key of a column. Being a struct, distinct
// (dataset, column) pairs never collide even when names contain dots.
type QualifiedName struct {
	Catalog string
	Schema  string
	Dataset string
	Column  string
}

func (q QualifiedName) String() string {
	return q.Catalog + "." + q.Schema + "." + q.Dataset + "." + q.Column
}

// Short returns "dataset.column".
func (q QualifiedName) Short() string {
	return q.Dataset + "." + q.Column
}
