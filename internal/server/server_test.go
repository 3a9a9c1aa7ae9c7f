package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semql/internal/state"
	"github.com/leapstack-labs/semql/internal/testutil"
	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/transform"
)

const ordersSQL = "SELECT orders.o_orderkey FROM (SELECT orders.o_orderkey AS o_orderkey FROM orders) AS orders"

func writeManifest(t *testing.T, path string, m *mdl.Manifest) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, mdl.Encode(&buf, m))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mdl.json")
	writeManifest(t, path, testutil.TPCH())

	cfg := Config{ManifestPath: path, Logger: testutil.NewTestLogger(t)}
	for _, fn := range mutate {
		fn(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_Health(t *testing.T) {
	rec := do(t, newTestServer(t).Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestServer_RequestID(t *testing.T) {
	h := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))

	rec = do(t, h, http.MethodGet, "/healthz", nil)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	// error bodies carry the id
	rec = do(t, h, http.MethodPost, "/v1/dry-plan", `{"sql": ""}`)
	resp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), resp.RequestID)
}

func TestServer_Manifest(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/v1/manifest", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[manifestResponse](t, rec)
	assert.Equal(t, s.Current().Hash(), resp.Hash)
	assert.Equal(t, "wren", resp.Catalog)
	assert.Equal(t, "tpch", resp.Schema)
	assert.Equal(t, []string{"orders", "customer", "nation"}, resp.Models)
	assert.Equal(t, []string{"revenue"}, resp.Metrics)
	assert.Equal(t, []string{"big_orders"}, resp.Views)
	assert.Equal(t, 1, resp.Cached)
}

func TestServer_DryPlan(t *testing.T) {
	h := newTestServer(t).Handler()
	encoded := base64.StdEncoding.EncodeToString([]byte(testutil.TPCHJSON))

	tests := []struct {
		name      string
		body      any
		status    int
		wantSQL   string
		wantCode  string
		wantStage string
	}{
		{
			name:    "loaded manifest",
			body:    dryPlanRequest{SQL: "select o_orderkey from orders"},
			status:  http.StatusOK,
			wantSQL: ordersSQL,
		},
		{
			name:    "request manifest",
			body:    dryPlanRequest{ManifestStr: encoded, SQL: "select o_orderkey from orders"},
			status:  http.StatusOK,
			wantSQL: ordersSQL,
		},
		{
			name:     "missing sql",
			body:     dryPlanRequest{},
			status:   http.StatusBadRequest,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "malformed body",
			body:     `{"sql": `,
			status:   http.StatusBadRequest,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "bad base64",
			body:     dryPlanRequest{ManifestStr: "%%%", SQL: "select 1"},
			status:   http.StatusBadRequest,
			wantCode: CodeInvalidManifest,
		},
		{
			name:      "unknown column",
			body:      dryPlanRequest{SQL: "select nope from orders"},
			status:    http.StatusUnprocessableEntity,
			wantCode:  CodeTransformError,
			wantStage: string(transform.StageModelAnalyze),
		},
		{
			name:      "syntax error",
			body:      dryPlanRequest{SQL: "select (1 from orders"},
			status:    http.StatusUnprocessableEntity,
			wantCode:  CodeTransformError,
			wantStage: string(transform.StageParse),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/dry-plan", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.wantSQL != "" {
				resp := decodeBody[dryPlanResponse](t, rec)
				assert.Equal(t, tt.wantSQL, resp.SQL)
				assert.NotEmpty(t, resp.Manifest)
				return
			}
			resp := decodeBody[errorResponse](t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantStage, resp.Stage)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServer_DryPlanFunctions(t *testing.T) {
	h := newTestServer(t).Handler()
	sql := "select add_two(o_orderkey) from orders"

	rec := do(t, h, http.MethodPost, "/v1/dry-plan", `{"sql": "`+sql+`",
		"functions": [{"name": "add_two", "functionType": "scalar", "returnType": "int"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decodeBody[dryPlanResponse](t, rec).SQL, "add_two(orders.o_orderkey)")

	// functions of one request are not seen by the next
	rec = do(t, h, http.MethodPost, "/v1/dry-plan", dryPlanRequest{SQL: sql})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_ConfiguredFunctions(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.Functions = []transform.RemoteFunction{{Name: "add_two", ReturnType: "int"}}
	})
	rec := do(t, s.Handler(), http.MethodPost, "/v1/dry-plan", dryPlanRequest{SQL: "select add_two(o_orderkey) from orders"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := New(Config{Functions: []transform.RemoteFunction{{Name: ""}}})
	assert.Error(t, err)
}

func TestServer_NoManifest(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.Nil(t, s.Current())
	h := s.Handler()

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/v1/manifest"},
		{http.MethodGet, "/v1/lineage/orders/o_orderkey"},
	} {
		rec := do(t, h, tc.method, tc.target, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.target)
	}

	rec := do(t, h, http.MethodPost, "/v1/dry-plan", dryPlanRequest{SQL: "select 1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeNoManifest, decodeBody[errorResponse](t, rec).Code)

	// a request manifest still works
	encoded := base64.StdEncoding.EncodeToString([]byte(testutil.TPCHJSON))
	rec = do(t, h, http.MethodPost, "/v1/dry-plan", dryPlanRequest{ManifestStr: encoded, SQL: "select o_orderkey from orders"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Validate(t *testing.T) {
	h := newTestServer(t).Handler()

	invalid := base64.StdEncoding.EncodeToString([]byte(`{"catalog": "c", "schema": "s",
		"models": [{"name": "a", "columns": [{"name": "x", "type": "int"}, {"name": "x", "type": "int"}]}]}`))

	tests := []struct {
		name   string
		rule   string
		body   any
		status int
		code   string
	}{
		{"valid column", RuleColumnIsValid, validateRequest{Parameters: map[string]string{"modelName": "orders", "columnName": "customer_name"}}, http.StatusNoContent, ""},
		{"invalid column", RuleColumnIsValid, validateRequest{Parameters: map[string]string{"modelName": "orders", "columnName": "nope"}}, http.StatusUnprocessableEntity, CodeTransformError},
		{"unknown model", RuleColumnIsValid, validateRequest{Parameters: map[string]string{"modelName": "ghost", "columnName": "x"}}, http.StatusUnprocessableEntity, CodeTransformError},
		{"missing parameters", RuleColumnIsValid, validateRequest{}, http.StatusBadRequest, CodeInvalidRequest},
		{"loaded manifest", RuleManifest, validateRequest{}, http.StatusNoContent, ""},
		{"invalid manifest", RuleManifest, validateRequest{ManifestStr: invalid}, http.StatusUnprocessableEntity, CodeValidation},
		{"unknown rule", "sideways", validateRequest{}, http.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/validate/"+tt.rule, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeBody[errorResponse](t, rec).Code)
			} else {
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}

func TestServer_Lineage(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/v1/lineage/orders/double_price", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[lineageResponse](t, rec)
	assert.Equal(t, "orders.double_price", resp.Column)
	assert.Equal(t, "calculated", resp.Kind)
	assert.Equal(t, []string{"orders.o_totalprice"}, resp.Refs)
	assert.Equal(t, []string{"orders.o_totalprice"}, resp.Sources)
	assert.Empty(t, resp.Hops)

	rec = do(t, h, http.MethodGet, "/v1/lineage/orders/customer_name", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[lineageResponse](t, rec)
	require.Len(t, resp.Hops, 1)
	assert.Equal(t, hopResponse{
		Relationship: "orders_customer",
		From:         "orders",
		To:           "customer",
		Column:       "customer",
		JoinType:     "MANY_TO_ONE",
	}, resp.Hops[0])

	rec = do(t, h, http.MethodGet, "/v1/lineage/orders/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_History(t *testing.T) {
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })

	s := newTestServer(t, func(cfg *Config) { cfg.History = store })
	h := s.Handler()
	do(t, h, http.MethodPost, "/v1/dry-plan", dryPlanRequest{SQL: "select o_orderkey from orders"})
	do(t, h, http.MethodPost, "/v1/dry-plan", dryPlanRequest{SQL: "select nope from orders"})

	recs, err := store.List(context.Background(), state.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byQuery := map[string]*state.Record{}
	for _, r := range recs {
		byQuery[r.SQL] = r
		assert.Equal(t, s.Current().Hash(), r.ManifestHash)
	}
	assert.Equal(t, ordersSQL, byQuery["select o_orderkey from orders"].Rewritten)
	assert.Contains(t, byQuery["select nope from orders"].Error, "ModelAnalyzeRule")
}

func TestCache(t *testing.T) {
	c := NewCache(1, nil)
	m := testutil.TPCH()

	var wg sync.WaitGroup
	results := make([]*transform.AnalyzedModel, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			am, err := c.Get(m)
			assert.NoError(t, err)
			results[i] = am
		}()
	}
	wg.Wait()
	for _, am := range results {
		assert.Same(t, results[0], am)
	}
	assert.Equal(t, 1, c.Len())

	other := mdl.NewManifestBuilder().
		Model(mdl.NewModelBuilder("t").TableReference("t").Column(mdl.NewColumnBuilder("a", "int").Build()).Build()).
		Build()
	_, err := c.Get(other)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	// the first manifest was evicted and is analyzed again
	am, err := c.Get(m)
	require.NoError(t, err)
	assert.NotSame(t, results[0], am)
	assert.Equal(t, results[0].Hash(), am.Hash())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2, nil)
	single := func(name string) *mdl.Manifest {
		return mdl.NewManifestBuilder().
			Model(mdl.NewModelBuilder(name).TableReference(name).Column(mdl.NewColumnBuilder("a", "int").Build()).Build()).
			Build()
	}
	a, b, d := single("a"), single("b"), single("d")

	first, err := c.Get(a)
	require.NoError(t, err)
	_, err = c.Get(b)
	require.NoError(t, err)

	// touching a makes b the oldest entry
	again, err := c.Get(a)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = c.Get(d)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	again, err = c.Get(a)
	require.NoError(t, err)
	assert.Same(t, first, again, "a recently used manifest survives eviction")
}

func TestCache_AnalyzeError(t *testing.T) {
	c := NewCache(0, nil)
	cyclic := mdl.NewManifestBuilder().
		Model(mdl.NewModelBuilder("t").
			TableReference("t").
			Column(mdl.NewColumnBuilder("a", "int").Calculated(true).Expression("b").Build()).
			Column(mdl.NewColumnBuilder("b", "int").Calculated(true).Expression("a").Build()).
			Build()).
		Build()
	_, err := c.Get(cyclic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze manifest")
	assert.Equal(t, 0, c.Len())
}

func TestServer_ServeAndReload(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.Watch = true
		cfg.ShutdownTimeout = time.Second
	})
	first := s.Current().Hash()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	updated := testutil.TPCH()
	updated.Models = append(updated.Models, mdl.NewModelBuilder("region").
		TableReference("region").
		Column(mdl.NewColumnBuilder("r_regionkey", "integer").Build()).
		Build())
	writeManifest(t, s.cfg.ManifestPath, updated)

	require.Eventually(t, func() bool {
		return s.Current().Hash() != first
	}, 5*time.Second, 20*time.Millisecond)
	_, ok := s.Current().Index.Model("region")
	assert.True(t, ok)

	// a broken manifest keeps the previous one in service
	current := s.Current()
	require.NoError(t, os.WriteFile(s.cfg.ManifestPath, []byte("{"), 0o600))
	time.Sleep(300 * time.Millisecond)
	assert.Same(t, current, s.Current())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
