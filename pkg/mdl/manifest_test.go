package mdl

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersManifest = `{
  "catalog": "test",
  "schema": "test",
  "models": [
    {
      "name": "orders",
      "tableReference": {"schema": "main", "table": "orders"},
      "columns": [
        {"name": "o_orderkey", "type": "integer", "notNull": 1},
        {"name": "o_custkey", "type": "integer", "notNull": true},
        {"name": "o_totalprice", "type": "double", "isCalculated": 0},
        {"name": "customer", "type": "customer", "relationship": "orders_customer"},
        {"name": "customer_name", "type": "varchar", "isCalculated": true, "expression": "customer.c_name"}
      ],
      "primaryKey": "o_orderkey",
      "cached": 0,
      "properties": {"description": "all orders"}
    },
    {
      "name": "customer",
      "tableReference": {"catalog": "", "schema": "", "table": "customer"},
      "columns": [
        {"name": "c_custkey", "type": "integer"},
        {"name": "c_name", "type": "varchar", "expression": ""}
      ]
    }
  ],
  "relationships": [
    {
      "name": "orders_customer",
      "models": ["orders", "customer"],
      "joinType": "many_to_one",
      "condition": "orders.o_custkey = customer.c_custkey"
    }
  ],
  "metrics": [
    {
      "name": "revenue",
      "baseObject": "orders",
      "dimension": [{"name": "o_custkey", "type": "integer"}],
      "measure": [{"name": "total", "type": "double", "expression": "sum(o_totalprice)"}],
      "timeGrain": [],
      "cached": false
    }
  ],
  "views": [
    {"name": "big_orders", "statement": "SELECT * FROM orders WHERE o_totalprice > 100"}
  ]
}`

func TestDecode(t *testing.T) {
	m, err := Decode(strings.NewReader(ordersManifest))
	require.NoError(t, err)

	assert.Equal(t, "test", m.Catalog)
	require.Len(t, m.Models, 2)

	orders := m.Models[0]
	assert.Equal(t, "main.orders", orders.TableReference)
	assert.Equal(t, []string{"main", "orders"}, orders.TableParts())
	assert.False(t, orders.Cached)
	assert.Equal(t, "all orders", orders.Properties["description"])

	key, _ := orders.Column("o_orderkey")
	assert.True(t, key.NotNull)
	assert.True(t, key.IsPassthrough())

	rel, _ := orders.Column("customer")
	assert.True(t, rel.IsRelationship())

	calc, _ := orders.Column("customer_name")
	assert.True(t, calc.IsCalculated)
	assert.Equal(t, "customer.c_name", calc.Expression)

	customer := m.Models[1]
	assert.Equal(t, "customer", customer.TableReference)
	name, _ := customer.Column("c_name")
	assert.True(t, name.IsPassthrough(), "an empty expression is no expression")

	require.Len(t, m.Relationships, 1)
	assert.Equal(t, ManyToOne, m.Relationships[0].JoinType)

	require.Len(t, m.Metrics, 1)
	assert.Equal(t, "orders", m.Metrics[0].BaseObject)
	require.Len(t, m.Views, 1)
}

func TestLegacyBoolean(t *testing.T) {
	tests := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{raw: `true`, want: true},
		{raw: `false`, want: false},
		{raw: `0`, want: false},
		{raw: `1`, want: true},
		{raw: `42`, want: true},
		{raw: `-1`, wantErr: true},
		{raw: `1.5`, wantErr: true},
		{raw: `"yes"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var c Column
			err := json.Unmarshal([]byte(`{"name": "a", "type": "int", "notNull": `+tt.raw+`}`), &c)
			if tt.wantErr {
				var verr *ManifestValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.Contains(t, verr.Error(), "invalid type for boolean")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.NotNull)
		})
	}
}

func TestJoinType(t *testing.T) {
	tests := []struct {
		input   string
		want    JoinType
		toOne   bool
		reverse JoinType
	}{
		{"ONE_TO_ONE", OneToOne, true, OneToOne},
		{"one_to_one", OneToOne, true, OneToOne},
		{"ONE_TO_MANY", OneToMany, false, ManyToOne},
		{"one_to_many", OneToMany, false, ManyToOne},
		{"MANY_TO_ONE", ManyToOne, true, OneToMany},
		{"many_to_one", ManyToOne, true, OneToMany},
		{"MANY_TO_MANY", ManyToMany, false, ManyToMany},
		{"many_to_many", ManyToMany, false, ManyToMany},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			jt, err := ParseJoinType(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, jt)
			assert.Equal(t, tt.toOne, jt.IsToOne())
			assert.Equal(t, tt.reverse, jt.Reverse())
		})
	}

	for _, bad := range []string{"One_To_One", "ONE-TO-ONE", ""} {
		_, err := ParseJoinType(bad)
		var verr *ManifestValidationError
		assert.True(t, errors.As(err, &verr), bad)
	}

	var rel Relationship
	err := json.Unmarshal([]byte(`{"name": "r", "models": ["a", "b"], "joinType": "sideways", "condition": "true"}`), &rel)
	assert.Error(t, err)
}

func TestRelationshipJoinTypeFrom(t *testing.T) {
	rel := NewRelationshipBuilder("orders_customer").
		Model("orders").
		Model("customer").
		JoinType(ManyToOne).
		Build()

	assert.Equal(t, ManyToOne, rel.JoinTypeFrom("orders"))
	assert.Equal(t, OneToMany, rel.JoinTypeFrom("customer"))

	other, ok := rel.Other("customer")
	require.True(t, ok)
	assert.Equal(t, "orders", other)
	assert.True(t, rel.Involves("orders"))
	assert.False(t, rel.Involves("lineitem"))
}

func TestTableReferenceRoundTrip(t *testing.T) {
	for _, ref := range []string{"orders", "main.orders", "memory.main.orders", "名字.表"} {
		t.Run(ref, func(t *testing.T) {
			model := NewModelBuilder("m").TableReference(ref).Build()
			data, err := json.Marshal(model)
			require.NoError(t, err)

			var back Model
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, ref, back.TableReference)
		})
	}
}

func TestTableReferenceEncoding(t *testing.T) {
	model := NewModelBuilder("m").TableReference("memory.main.orders").Build()
	data, err := json.Marshal(model)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tableReference":{"catalog":"memory","schema":"main","table":"orders"}`)

	model = NewModelBuilder("m").TableReference("a.b.c.d").Build()
	_, err = json.Marshal(model)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table reference: a.b.c.d")

	var back Model
	err = json.Unmarshal([]byte(`{"name": "m", "tableReference": "main.orders", "columns": []}`), &back)
	require.NoError(t, err)
	assert.Equal(t, "main.orders", back.TableReference)

	err = json.Unmarshal([]byte(`{"name": "m", "tableReference": "a.b.c.d", "columns": []}`), &back)
	assert.Error(t, err)
}

func TestManifestRoundTrip(t *testing.T) {
	m, err := Decode(strings.NewReader(ordersManifest))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m))

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, back)

	h1, err := m.Hash()
	require.NoError(t, err)
	h2, err := back.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestEncodeYAML(t *testing.T) {
	m, err := Decode(strings.NewReader(ordersManifest))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeYAML(&buf, m))
	assert.True(t, strings.HasPrefix(buf.String(), "catalog: "), buf.String())
	assert.NotContains(t, buf.String(), "{\"")

	back, err := DecodeYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestHash(t *testing.T) {
	build := func(expr string) *Manifest {
		return NewManifestBuilder().
			Model(NewModelBuilder("m").
				TableReference("t").
				Column(NewColumnBuilder("a", "int").Expression(expr).Build()).
				Property("x", "1").
				Property("y", "2").
				Build()).
			Build()
	}

	h1, err := build("a").Hash()
	require.NoError(t, err)
	h2, err := build("a").Hash()
	require.NoError(t, err)
	h3, err := build("b").Hash()
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)

	// nil and empty lists are the same manifest
	empty := &Manifest{Catalog: "c", Schema: "s", Models: []*Model{}}
	bare := &Manifest{Catalog: "c", Schema: "s"}
	he, err := empty.Hash()
	require.NoError(t, err)
	hb, err := bare.Hash()
	require.NoError(t, err)
	assert.Equal(t, he, hb)
}

func TestDecodeYAML(t *testing.T) {
	doc := `
catalog: wren
schema: test
models:
  - name: artist
    tableReference:
      table: artist
    cached: 1
    columns:
      - name: 名字
        type: string
      - name: group
        type: string
        expression: '"組別"'
relationships:
  - name: r
    models: [artist, artist]
    joinType: ONE_TO_ONE
    condition: "artist.名字 = artist.名字"
`
	m, err := DecodeYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, m.Models, 1)
	assert.True(t, m.Models[0].Cached)
	assert.Equal(t, "artist", m.Models[0].TableReference)
	assert.Equal(t, `"組別"`, m.Models[0].Columns[1].Expression)
	assert.Equal(t, OneToOne, m.Relationships[0].JoinType)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "mdl.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(ordersManifest), 0o600))
	m, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, m.Models, 2)

	yamlPath := filepath.Join(dir, "mdl.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("catalog: c\nschema: s\n"), 0o600))
	m, err = LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "c", m.Catalog)

	_, err = LoadFile(filepath.Join(dir, "mdl.toml"))
	assert.Error(t, err)
}

func TestDecodeBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(ordersManifest))
	m, err := DecodeBase64(encoded)
	require.NoError(t, err)
	assert.Equal(t, "test", m.Schema)

	_, err = DecodeBase64("not base64!")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	m, err := Decode(strings.NewReader(ordersManifest))
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	bad := NewManifestBuilder().
		Model(NewModelBuilder("a").
			TableReference("t").
			RefSQL("SELECT 1").
			Column(NewColumnBuilder("x", "int").Build()).
			Column(NewColumnBuilder("x", "int").Build()).
			Column(NewColumnBuilder("r", "b").Relationship("missing").Build()).
			Build()).
		Model(NewModelBuilder("a").Build()).
		Relationship(NewRelationshipBuilder("ab").Model("a").JoinType(JoinType("sideways")).Build()).
		Metric(NewMetricBuilder("m", "nowhere").Build()).
		Build()

	err = bad.Validate()
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		"models.a: tableReference, refSql and baseObject are mutually exclusive",
		"models.a.x: duplicate column",
		"models.a.r: unknown relationship missing",
		"models.a: name already used by a model",
		"relationships.ab.models: at least two models are required",
		`relationships.ab.joinType: unknown join type "sideways"`,
		"relationships.ab.condition: condition is required",
		"metrics.m.baseObject: unknown dataset nowhere",
	} {
		assert.Contains(t, msg, want)
	}

	var verr *ManifestValidationError
	assert.True(t, errors.As(err, &verr))
}
