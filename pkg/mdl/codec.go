package mdl

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexBool decodes a JSON boolean, or an integer from legacy producers
// where 0 is false and anything else true.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch s := string(data); s {
	case "null":
	case "true":
		*b = true
	case "false":
		*b = false
	default:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return &ManifestValidationError{Msg: "invalid type for boolean: " + s}
		}
		*b = n != 0
	}
	return nil
}

// tableReference is the wire form of Model.TableReference.
type tableReference struct {
	Catalog string `json:"catalog,omitempty"`
	Schema  string `json:"schema,omitempty"`
	Table   string `json:"table,omitempty"`
}

// UnmarshalJSON accepts the {catalog, schema, table} object and, for
// hand-written manifests, a plain dotted string.
func (t *tableReference) UnmarshalJSON(data []byte) error {
	var dotted string
	if err := json.Unmarshal(data, &dotted); err == nil {
		parts := splitTableReference(dotted)
		if len(parts) > 3 {
			return invalidTableReference(dotted)
		}
		*t = tableReferenceFromParts(parts)
		return nil
	}
	type plain tableReference
	return json.Unmarshal(data, (*plain)(t))
}

func (t *tableReference) String() string {
	var parts []string
	for _, p := range []string{t.Catalog, t.Schema, t.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

func tableReferenceFromParts(parts []string) tableReference {
	switch len(parts) {
	case 3:
		return tableReference{Catalog: parts[0], Schema: parts[1], Table: parts[2]}
	case 2:
		return tableReference{Schema: parts[0], Table: parts[1]}
	case 1:
		return tableReference{Table: parts[0]}
	default:
		return tableReference{}
	}
}

// encodeTableReference splits a dotted reference for output.
func encodeTableReference(ref string) (*tableReference, error) {
	parts := splitTableReference(ref)
	if len(parts) == 0 {
		return nil, nil
	}
	if len(parts) > 3 {
		return nil, invalidTableReference(ref)
	}
	t := tableReferenceFromParts(parts)
	return &t, nil
}

func splitTableReference(ref string) []string {
	var parts []string
	for _, p := range strings.Split(ref, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func invalidTableReference(ref string) error {
	return &ManifestValidationError{Field: "tableReference", Msg: "invalid table reference: " + ref}
}

type modelJSON struct {
	Name           string            `json:"name"`
	RefSQL         string            `json:"refSql,omitempty"`
	BaseObject     string            `json:"baseObject,omitempty"`
	TableReference *tableReference   `json:"tableReference,omitempty"`
	Columns        []*Column         `json:"columns"`
	PrimaryKey     string            `json:"primaryKey,omitempty"`
	Cached         flexBool          `json:"cached"`
	RefreshTime    string            `json:"refreshTime,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Model) MarshalJSON() ([]byte, error) {
	ref, err := encodeTableReference(m.TableReference)
	if err != nil {
		return nil, err
	}
	return json.Marshal(modelJSON{
		Name:           m.Name,
		RefSQL:         m.RefSQL,
		BaseObject:     m.BaseObject,
		TableReference: ref,
		Columns:        nonNil(m.Columns),
		PrimaryKey:     m.PrimaryKey,
		Cached:         flexBool(m.Cached),
		RefreshTime:    m.RefreshTime,
		Properties:     m.Properties,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Model) UnmarshalJSON(data []byte) error {
	var raw modelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Model{
		Name:        raw.Name,
		RefSQL:      raw.RefSQL,
		BaseObject:  raw.BaseObject,
		Columns:     raw.Columns,
		PrimaryKey:  raw.PrimaryKey,
		Cached:      bool(raw.Cached),
		RefreshTime: raw.RefreshTime,
		Properties:  raw.Properties,
	}
	if raw.TableReference != nil {
		m.TableReference = raw.TableReference.String()
	}
	return nil
}

type columnJSON struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Relationship string            `json:"relationship,omitempty"`
	IsCalculated flexBool          `json:"isCalculated"`
	NotNull      flexBool          `json:"notNull"`
	Expression   string            `json:"expression,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c *Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(columnJSON{
		Name:         c.Name,
		Type:         c.Type,
		Relationship: c.Relationship,
		IsCalculated: flexBool(c.IsCalculated),
		NotNull:      flexBool(c.NotNull),
		Expression:   c.Expression,
		Properties:   c.Properties,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Column) UnmarshalJSON(data []byte) error {
	var raw columnJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Column{
		Name:         raw.Name,
		Type:         raw.Type,
		Relationship: raw.Relationship,
		IsCalculated: bool(raw.IsCalculated),
		NotNull:      bool(raw.NotNull),
		Expression:   raw.Expression,
		Properties:   raw.Properties,
	}
	return nil
}

type metricJSON struct {
	Name        string            `json:"name"`
	BaseObject  string            `json:"baseObject"`
	Dimension   []*Column         `json:"dimension"`
	Measure     []*Column         `json:"measure"`
	TimeGrain   []*TimeGrain      `json:"timeGrain"`
	Cached      flexBool          `json:"cached"`
	RefreshTime string            `json:"refreshTime,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Metric) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricJSON{
		Name:        m.Name,
		BaseObject:  m.BaseObject,
		Dimension:   nonNil(m.Dimension),
		Measure:     nonNil(m.Measure),
		TimeGrain:   nonNil(m.TimeGrain),
		Cached:      flexBool(m.Cached),
		RefreshTime: m.RefreshTime,
		Properties:  m.Properties,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var raw metricJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metric{
		Name:        raw.Name,
		BaseObject:  raw.BaseObject,
		Dimension:   raw.Dimension,
		Measure:     raw.Measure,
		TimeGrain:   raw.TimeGrain,
		Cached:      bool(raw.Cached),
		RefreshTime: raw.RefreshTime,
		Properties:  raw.Properties,
	}
	return nil
}

// MarshalJSON writes empty lists rather than null so that equal manifests
// serialize identically.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type plain Manifest
	out := plain{
		Catalog:       m.Catalog,
		Schema:        m.Schema,
		Models:        nonNil(m.Models),
		Relationships: nonNil(m.Relationships),
		Metrics:       nonNil(m.Metrics),
		Views:         nonNil(m.Views),
	}
	return json.Marshal(out)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *JoinType) UnmarshalText(text []byte) error {
	jt, err := ParseJoinType(string(text))
	if err != nil {
		return err
	}
	*t = jt
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *TimeUnit) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
