package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/semql/internal/state"
	"github.com/leapstack-labs/semql/pkg/lineage"
	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/transform"
)

const maxBodyBytes = 10 << 20

// Error codes of error responses.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidManifest = "INVALID_MANIFEST"
	CodeNoManifest      = "NO_MANIFEST"
	CodeTransformError  = "TRANSFORM_ERROR"
	CodeValidation      = "VALIDATION_FAILED"
	CodeNotFound        = "NOT_FOUND"
)

// Validation rules.
const (
	RuleColumnIsValid = "column_is_valid"
	RuleManifest      = "manifest"
)

type dryPlanRequest struct {
	ManifestStr string                     `json:"manifestStr"`
	SQL         string                     `json:"sql"`
	Functions   []transform.RemoteFunction `json:"functions"`
}

type dryPlanResponse struct {
	SQL      string `json:"sql"`
	Manifest string `json:"manifest"`
}

type validateRequest struct {
	ManifestStr string            `json:"manifestStr"`
	Parameters  map[string]string `json:"parameters"`
}

type manifestResponse struct {
	Hash     string   `json:"hash"`
	Catalog  string   `json:"catalog"`
	Schema   string   `json:"schema"`
	Models   []string `json:"models"`
	Metrics  []string `json:"metrics"`
	Views    []string `json:"views"`
	Tables   []string `json:"tables"`
	Cached   int      `json:"cached"`
	Watching bool     `json:"watching"`
}

type hopResponse struct {
	Relationship string `json:"relationship"`
	From         string `json:"from"`
	To           string `json:"to"`
	Column       string `json:"column"`
	JoinType     string `json:"joinType"`
}

type lineageResponse struct {
	Column       string        `json:"column"`
	Kind         string        `json:"kind"`
	Refs         []string      `json:"refs"`
	Dependencies []string      `json:"dependencies"`
	Sources      []string      `json:"sources"`
	Hops         []hopResponse `json:"hops"`
	Dependents   []string      `json:"dependents"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Stage     string `json:"stage,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	am := s.Current()
	if am == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeNoManifest, errors.New("no manifest loaded"))
		return
	}
	m := am.Manifest()
	resp := manifestResponse{
		Hash:     am.Hash(),
		Catalog:  m.Catalog,
		Schema:   m.Schema,
		Models:   []string{},
		Metrics:  []string{},
		Views:    []string{},
		Tables:   am.Index.Tables(),
		Cached:   s.cache.Len(),
		Watching: s.cfg.Watch,
	}
	for _, model := range m.Models {
		resp.Models = append(resp.Models, model.Name)
	}
	for _, metric := range m.Metrics {
		resp.Metrics = append(resp.Metrics, metric.Name)
	}
	for _, view := range m.Views {
		resp.Views = append(resp.Views, view.Name)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDryPlan(w http.ResponseWriter, r *http.Request) {
	var req dryPlanRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SQL == "" {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, errors.New("sql is required"))
		return
	}

	am, status, code, err := s.analyzed(req.ManifestStr)
	if err != nil {
		writeError(w, r, status, code, err)
		return
	}
	sess, err := s.session(req.Functions)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}

	start := time.Now()
	out, err := transform.Transform(r.Context(), sess, am, nil, req.SQL)
	s.record(r, am, req.SQL, out, err, time.Since(start))
	if err != nil {
		writeTransformError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dryPlanResponse{SQL: out, Manifest: am.Hash()})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	rule := chi.URLParam(r, "rule")
	var req validateRequest
	if !decode(w, r, &req) {
		return
	}

	switch rule {
	case RuleColumnIsValid:
		model, column := req.Parameters["modelName"], req.Parameters["columnName"]
		if model == "" || column == "" {
			writeError(w, r, http.StatusBadRequest, CodeInvalidRequest,
				errors.New("parameters modelName and columnName are required"))
			return
		}
		am, status, code, err := s.analyzed(req.ManifestStr)
		if err != nil {
			writeError(w, r, status, code, err)
			return
		}
		sess, err := s.session(nil)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, CodeInvalidRequest, err)
			return
		}
		if err := transform.ValidateColumn(r.Context(), sess, am, model, column); err != nil {
			writeTransformError(w, r, err)
			return
		}

	case RuleManifest:
		m, err := s.manifest(req.ManifestStr)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, CodeInvalidManifest, err)
			return
		}
		if m == nil {
			writeError(w, r, http.StatusServiceUnavailable, CodeNoManifest, errors.New("no manifest loaded"))
			return
		}
		if err := m.Validate(); err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidation, err)
			return
		}
		if _, err := s.cache.Get(m); err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidation, err)
			return
		}

	default:
		writeError(w, r, http.StatusNotFound, CodeNotFound, fmt.Errorf("unknown validation rule %q", rule))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	am := s.Current()
	if am == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeNoManifest, errors.New("no manifest loaded"))
		return
	}

	dataset, column := chi.URLParam(r, "dataset"), chi.URLParam(r, "column")
	q := am.Index.QualifiedColumnName(dataset, column)
	col, ok := am.Lineage.Column(q)
	if !ok {
		writeError(w, r, http.StatusNotFound, CodeNotFound, fmt.Errorf("column %s.%s not found", dataset, column))
		return
	}
	writeJSON(w, http.StatusOK, newLineageResponse(am.Lineage, col))
}

func newLineageResponse(l *lineage.Lineage, col *lineage.ColumnLineage) lineageResponse {
	resp := lineageResponse{
		Column:       col.Name.Short(),
		Kind:         string(col.Kind),
		Refs:         shortNames(col.Refs),
		Dependencies: shortNames(col.Dependencies),
		Sources:      []string{},
		Hops:         []hopResponse{},
		Dependents:   shortNames(l.Dependents(col.Name)),
	}
	for _, src := range col.Sources {
		resp.Sources = append(resp.Sources, src.String())
	}
	for _, h := range col.Path {
		resp.Hops = append(resp.Hops, hopResponse{
			Relationship: h.Relationship,
			From:         h.From,
			To:           h.To,
			Column:       h.Column,
			JoinType:     string(h.JoinType),
		})
	}
	return resp
}

func shortNames(qs []mdl.QualifiedName) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Short())
	}
	return out
}

// manifest decodes manifestStr, or returns the loaded manifest when it is
// empty. The result is nil when neither exists.
func (s *Server) manifest(manifestStr string) (*mdl.Manifest, error) {
	if manifestStr != "" {
		return mdl.DecodeBase64(manifestStr)
	}
	if am := s.Current(); am != nil {
		return am.Manifest(), nil
	}
	return nil, nil
}

// analyzed returns the analysis of the request manifest along with the
// status and code to answer with on failure.
func (s *Server) analyzed(manifestStr string) (*transform.AnalyzedModel, int, string, error) {
	if manifestStr == "" {
		if am := s.Current(); am != nil {
			return am, 0, "", nil
		}
		return nil, http.StatusServiceUnavailable, CodeNoManifest, errors.New("no manifest loaded")
	}
	m, err := mdl.DecodeBase64(manifestStr)
	if err != nil {
		return nil, http.StatusBadRequest, CodeInvalidManifest, err
	}
	am, err := s.cache.Get(m)
	if err != nil {
		return nil, http.StatusUnprocessableEntity, CodeInvalidManifest, err
	}
	return am, 0, "", nil
}

func (s *Server) record(r *http.Request, am *transform.AnalyzedModel, sql, out string, err error, d time.Duration) {
	if s.cfg.History == nil {
		return
	}
	rec := &state.Record{
		ManifestHash: am.Hash(),
		SQL:          sql,
		Rewritten:    out,
		Duration:     d,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if err := s.cfg.History.Record(r.Context(), rec); err != nil {
		s.logger.Warn("failed to record transform", "request_id", RequestID(r.Context()), "error", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: RequestID(r.Context()),
	})
}

func writeTransformError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{
		Error:     err.Error(),
		Code:      CodeTransformError,
		RequestID: RequestID(r.Context()),
	}
	var te *transform.TransformError
	if errors.As(err, &te) {
		resp.Stage = string(te.Stage)
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}
