// Package mdl holds the semantic model: the Manifest describing models,
// relationships, metrics and views, and the Index resolved from it.
//
// A Manifest is plain data. It is decoded once (JSON or YAML), never
// mutated afterwards and shared by pointer between the Index, the lineage
// resolver and every concurrent transform.
package mdl

import "strings"

// Manifest is the declarative semantic model.
type Manifest struct {
	Catalog       string          `json:"catalog"`
	Schema        string          `json:"schema"`
	Models        []*Model        `json:"models"`
	Relationships []*Relationship `json:"relationships"`
	Metrics       []*Metric       `json:"metrics"`
	Views         []*View         `json:"views"`
}

// Model is a virtual table. Its rows come from TableReference, RefSQL or
// BaseObject; a model with none of them computes every column from its
// expression alone.
type Model struct {
	Name           string
	RefSQL         string
	BaseObject     string
	TableReference string // dotted, 1 to 3 parts
	Columns        []*Column
	PrimaryKey     string
	Cached         bool
	RefreshTime    string
	Properties     map[string]string
}

// Column returns the model column with the given name.
func (m *Model) Column(name string) (*Column, bool) {
	return findColumn(m.Columns, name)
}

// TableParts splits the table reference into its non-empty segments.
func (m *Model) TableParts() []string {
	return splitTableReference(m.TableReference)
}

// Column is a model column, or a metric dimension or measure.
type Column struct {
	Name         string
	Type         string
	Relationship string
	IsCalculated bool
	NotNull      bool
	Expression   string
	Properties   map[string]string
}

// IsRelationship reports whether the column stands for the related row of
// a relationship rather than a value.
func (c *Column) IsRelationship() bool {
	return c.Relationship != ""
}

// IsPassthrough reports whether the column maps to the physical column of
// the same name.
func (c *Column) IsPassthrough() bool {
	return c.Expression == "" && c.Relationship == "" && !c.IsCalculated
}

// Relationship is a named join rule between models.
type Relationship struct {
	Name       string            `json:"name"`
	Models     []string          `json:"models"`
	JoinType   JoinType          `json:"joinType"`
	Condition  string            `json:"condition"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Involves reports whether model takes part in the relationship.
func (r *Relationship) Involves(model string) bool {
	for _, m := range r.Models {
		if m == model {
			return true
		}
	}
	return false
}

// Other returns the first model of the relationship that is not from.
func (r *Relationship) Other(from string) (string, bool) {
	for _, m := range r.Models {
		if m != from {
			return m, true
		}
	}
	return "", false
}

// JoinTypeFrom returns the join type as seen when traversing the
// relationship starting at model from.
func (r *Relationship) JoinTypeFrom(from string) JoinType {
	if len(r.Models) > 0 && r.Models[0] != from {
		return r.JoinType.Reverse()
	}
	return r.JoinType
}

// JoinType describes the cardinality of a relationship.
type JoinType string

// JoinType values, spelled as they are serialized.
const (
	OneToOne   JoinType = "ONE_TO_ONE"
	OneToMany  JoinType = "ONE_TO_MANY"
	ManyToOne  JoinType = "MANY_TO_ONE"
	ManyToMany JoinType = "MANY_TO_MANY"
)

// ParseJoinType accepts the SCREAMING_SNAKE and the legacy snake_case
// spelling of a join type.
func ParseJoinType(s string) (JoinType, error) {
	switch jt := JoinType(strings.ToUpper(s)); jt {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		if s == string(jt) || s == strings.ToLower(string(jt)) {
			return jt, nil
		}
	}
	return "", &ManifestValidationError{Field: "joinType", Msg: "unknown join type " + s}
}

// IsToOne reports whether traversing the relationship keeps one row per
// source row.
func (t JoinType) IsToOne() bool {
	return t == OneToOne || t == ManyToOne
}

// Reverse returns the join type seen from the other side.
func (t JoinType) Reverse() JoinType {
	switch t {
	case OneToMany:
		return ManyToOne
	case ManyToOne:
		return OneToMany
	default:
		return t
	}
}

// Metric is a virtual relation grouped by its dimensions and aggregated
// by its measures over BaseObject.
type Metric struct {
	Name        string
	BaseObject  string
	Dimension   []*Column
	Measure     []*Column
	TimeGrain   []*TimeGrain
	Cached      bool
	RefreshTime string
	Properties  map[string]string
}

// Column returns the dimension or measure with the given name.
func (m *Metric) Column(name string) (*Column, bool) {
	if c, ok := findColumn(m.Dimension, name); ok {
		return c, true
	}
	return findColumn(m.Measure, name)
}

// TimeGrain declares the truncation granularities of a time dimension.
type TimeGrain struct {
	Name      string     `json:"name"`
	RefColumn string     `json:"refColumn"`
	DateParts []TimeUnit `json:"dateParts"`
}

// TimeUnit is a date part a time grain may truncate to.
type TimeUnit string

// TimeUnit values.
const (
	Year   TimeUnit = "Year"
	Month  TimeUnit = "Month"
	Day    TimeUnit = "Day"
	Hour   TimeUnit = "Hour"
	Minute TimeUnit = "Minute"
	Second TimeUnit = "Second"
)

var timeUnits = []TimeUnit{Year, Month, Day, Hour, Minute, Second}

// ParseTimeUnit parses a time unit, ignoring case.
func ParseTimeUnit(s string) (TimeUnit, error) {
	for _, u := range timeUnits {
		if strings.EqualFold(s, string(u)) {
			return u, nil
		}
	}
	return "", &ManifestValidationError{Field: "dateParts", Msg: "unknown time unit " + s}
}

// View is a named SQL statement over the model.
type View struct {
	Name       string            `json:"name"`
	Statement  string            `json:"statement"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Model returns the model with the given name.
func (m *Manifest) Model(name string) (*Model, bool) {
	for _, model := range m.Models {
		if model.Name == name {
			return model, true
		}
	}
	return nil, false
}

// Metric returns the metric with the given name.
func (m *Manifest) Metric(name string) (*Metric, bool) {
	for _, metric := range m.Metrics {
		if metric.Name == name {
			return metric, true
		}
	}
	return nil, false
}

// View returns the view with the given name.
func (m *Manifest) View(name string) (*View, bool) {
	for _, view := range m.Views {
		if view.Name == name {
			return view, true
		}
	}
	return nil, false
}

// Relationship returns the relationship with the given name.
func (m *Manifest) Relationship(name string) (*Relationship, bool) {
	for _, rel := range m.Relationships {
		if rel.Name == name {
			return rel, true
		}
	}
	return nil, false
}

func findColumn(cols []*Column, name string) (*Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
