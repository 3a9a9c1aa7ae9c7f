package mdl

import (
	"errors"
	"fmt"
)

// Validate checks the manifest for structural problems and returns every
// one found, joined.
func (m *Manifest) Validate() error {
	v := &validator{manifest: m, datasets: make(map[string]string)}

	if m.Catalog == "" {
		v.fail("catalog", "catalog is required")
	}
	if m.Schema == "" {
		v.fail("schema", "schema is required")
	}

	for _, model := range m.Models {
		v.dataset("model", model.Name)
	}
	for _, metric := range m.Metrics {
		v.dataset("metric", metric.Name)
	}
	for _, view := range m.Views {
		v.dataset("view", view.Name)
	}

	for _, model := range m.Models {
		v.model(model)
	}
	v.relationships()
	for _, metric := range m.Metrics {
		v.metric(metric)
	}
	for _, view := range m.Views {
		if view.Statement == "" {
			v.fail("views."+view.Name, "statement is required")
		}
	}

	return errors.Join(v.errs...)
}

type validator struct {
	manifest *Manifest
	datasets map[string]string // name -> kind
	errs     []error
}

func (v *validator) fail(field, format string, args ...any) {
	v.errs = append(v.errs, &ManifestValidationError{Field: field, Msg: fmt.Sprintf(format, args...)})
}

func (v *validator) dataset(kind, name string) {
	if name == "" {
		v.fail(kind+"s", "%s name is required", kind)
		return
	}
	if prev, ok := v.datasets[name]; ok {
		v.fail(kind+"s."+name, "name already used by a %s", prev)
		return
	}
	v.datasets[name] = kind
}

func (v *validator) columns(field string, cols []*Column) {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c.Name == "" {
			v.fail(field, "column name is required")
			continue
		}
		if seen[c.Name] {
			v.fail(field+"."+c.Name, "duplicate column")
		}
		seen[c.Name] = true
	}
}

func (v *validator) model(model *Model) {
	field := "models." + model.Name
	v.columns(field, model.Columns)

	sources := 0
	for _, s := range []string{model.TableReference, model.RefSQL, model.BaseObject} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		v.fail(field, "tableReference, refSql and baseObject are mutually exclusive")
	}
	if len(model.TableParts()) > 3 {
		v.fail(field+".tableReference", "invalid table reference: %s", model.TableReference)
	}
	if model.BaseObject != "" {
		if kind := v.datasets[model.BaseObject]; kind != "model" && kind != "metric" {
			v.fail(field+".baseObject", "unknown dataset %s", model.BaseObject)
		}
	}
	if model.PrimaryKey != "" {
		if _, ok := model.Column(model.PrimaryKey); !ok {
			v.fail(field+".primaryKey", "unknown column %s", model.PrimaryKey)
		}
	}

	for _, c := range model.Columns {
		if !c.IsRelationship() {
			continue
		}
		rel, ok := v.manifest.Relationship(c.Relationship)
		if !ok {
			v.fail(field+"."+c.Name, "unknown relationship %s", c.Relationship)
			continue
		}
		if !rel.Involves(model.Name) {
			v.fail(field+"."+c.Name, "relationship %s does not involve %s", rel.Name, model.Name)
		}
	}
}

func (v *validator) relationships() {
	seen := make(map[string]bool)
	for _, rel := range v.manifest.Relationships {
		field := "relationships." + rel.Name
		if rel.Name == "" {
			v.fail("relationships", "relationship name is required")
		} else if seen[rel.Name] {
			v.fail(field, "duplicate relationship")
		}
		seen[rel.Name] = true

		if len(rel.Models) < 2 {
			v.fail(field+".models", "at least two models are required")
		}
		for _, name := range rel.Models {
			if v.datasets[name] != "model" {
				v.fail(field+".models", "unknown model %s", name)
			}
		}
		if _, err := ParseJoinType(string(rel.JoinType)); err != nil {
			v.fail(field+".joinType", "unknown join type %q", rel.JoinType)
		}
		if rel.Condition == "" {
			v.fail(field+".condition", "condition is required")
		}
	}
}

func (v *validator) metric(metric *Metric) {
	field := "metrics." + metric.Name
	v.columns(field, append(append([]*Column{}, metric.Dimension...), metric.Measure...))
	if kind := v.datasets[metric.BaseObject]; kind != "model" && kind != "metric" {
		v.fail(field+".baseObject", "unknown dataset %s", metric.BaseObject)
	}
	for _, grain := range metric.TimeGrain {
		if _, ok := metric.Column(grain.RefColumn); !ok {
			v.fail(field+".timeGrain."+grain.Name, "unknown column %s", grain.RefColumn)
		}
	}
}
