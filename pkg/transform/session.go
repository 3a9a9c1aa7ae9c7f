// Package transform rewrites SQL written against a semantic model into SQL
// that runs against the model's physical sources.
//
// A transform is a one-shot pipeline: register the caller's remote
// functions in a Session, build the virtual catalog of the AnalyzedModel,
// parse the query, resolve every relation and column against the catalog
// while inlining models, metrics and views as subqueries, and print the
// result through the session dialect.
//
//	am, err := transform.Analyze(manifest)
//	sess := transform.NewSession()
//	sql, err := transform.Transform(ctx, sess, am, nil, `SELECT * FROM orders`)
//
// An AnalyzedModel is immutable and may be shared by any number of
// concurrent transforms. A Session may be shared as well: function
// registration takes a write lock, planning takes a snapshot under the read
// lock.
package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/semql/pkg/dialect"
)

// RemoteFunction is a function evaluated by the physical engine. The
// transformer only checks that calls name a known function and passes the
// call through unchanged.
type RemoteFunction struct {
	Name         string               `json:"name" yaml:"name" koanf:"name" mapstructure:"name"`
	FunctionType dialect.FunctionType `json:"functionType" yaml:"function_type" koanf:"function_type" mapstructure:"function_type"`
	ReturnType   string               `json:"returnType" yaml:"return_type" koanf:"return_type" mapstructure:"return_type"`
}

// Session holds the state shared by transforms: the output dialect and the
// registry of remote functions.
type Session struct {
	dialect *dialect.Dialect
	logger  *slog.Logger

	mu        sync.RWMutex
	functions map[string]RemoteFunction
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDialect sets the dialect identifiers are quoted with. The default is
// dialect.Default().
func WithDialect(d *dialect.Dialect) SessionOption {
	return func(s *Session) {
		if d != nil {
			s.dialect = d
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates a session with no remote functions.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		dialect:   dialect.Default(),
		logger:    slog.New(slog.DiscardHandler),
		functions: make(map[string]RemoteFunction),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dialect returns the session dialect.
func (s *Session) Dialect() *dialect.Dialect { return s.dialect }

// RegisterFunctions adds remote functions to the session. A function
// registered again under the same name replaces the earlier one.
func (s *Session) RegisterFunctions(funcs ...RemoteFunction) error {
	var errs []error
	for _, f := range funcs {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, errors.New("remote function name is required"))
			continue
		}
		switch f.FunctionType {
		case dialect.ScalarFunction, dialect.AggregateFunction, dialect.WindowFunction:
		default:
			errs = append(errs, fmt.Errorf("remote function %s: unknown function type %d", f.Name, f.FunctionType))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range funcs {
		s.logger.Debug("registering remote function", "name", f.Name, "type", f.FunctionType, "returns", f.ReturnType)
		s.functions[f.Name] = f
	}
	return nil
}

// Function returns a registered remote function.
func (s *Session) Function(name string) (RemoteFunction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.functions[name]
	return f, ok
}

// Functions returns every registered remote function, sorted by name.
func (s *Session) Functions() []RemoteFunction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RemoteFunction, 0, len(s.functions))
	for _, f := range s.functions {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// snapshot copies the function registry for one planning run.
func (s *Session) snapshot() map[string]dialect.FunctionType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]dialect.FunctionType, len(s.functions))
	for name, f := range s.functions {
		out[name] = f.FunctionType
	}
	return out
}
