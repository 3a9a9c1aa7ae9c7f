// Package server exposes the transformer over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /v1/manifest
//	POST /v1/dry-plan
//	POST /v1/validate/{rule}
//	GET  /v1/lineage/{dataset}/{column}
//
// Requests may carry their own base64 encoded manifest in manifestStr;
// otherwise the manifest loaded from Config.ManifestPath is used. Analyzed
// manifests are cached by content hash.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/semql/internal/state"
	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/transform"
)

// Config holds configuration for the server.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MaxConns caps concurrently open connections. Zero means no limit.
	MaxConns int

	// ManifestPath is the manifest served when a request has none.
	ManifestPath string
	// Watch reloads ManifestPath when it changes.
	Watch bool

	Dialect   *dialect.Dialect
	Functions []transform.RemoteFunction
	// Tables are physical sources registered in every analysis.
	Tables map[string]mdl.DataSource

	// History records every dry plan when set.
	History state.Store
	Logger  *slog.Logger
}

// Server serves transforms over HTTP.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	cache   *Cache
	current atomic.Pointer[transform.AnalyzedModel]
}

// New creates a server and loads Config.ManifestPath, if set.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Dialect == nil {
		cfg.Dialect = dialect.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		cache:  NewCache(0, cfg.Tables),
	}
	if _, err := s.session(nil); err != nil {
		return nil, err
	}
	if cfg.ManifestPath != "" {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Current returns the analysis of the loaded manifest, or nil.
func (s *Server) Current() *transform.AnalyzedModel {
	return s.current.Load()
}

// Reload reads and analyzes Config.ManifestPath. On failure the previous
// manifest stays in service.
func (s *Server) Reload() error {
	m, err := mdl.LoadFile(s.cfg.ManifestPath)
	if err != nil {
		return err
	}
	am, err := s.cache.Get(m)
	if err != nil {
		return err
	}
	s.current.Store(am)
	s.logger.Info("manifest loaded", "path", s.cfg.ManifestPath, "hash", am.Hash(), "models", len(m.Models))
	return nil
}

// session builds a session with the configured functions followed by
// extra. Sessions are per request so request functions never leak into
// other requests.
func (s *Server) session(extra []transform.RemoteFunction) (*transform.Session, error) {
	sess := transform.NewSession(transform.WithDialect(s.cfg.Dialect), transform.WithLogger(s.logger))
	funcs := make([]transform.RemoteFunction, 0, len(s.cfg.Functions)+len(extra))
	funcs = append(funcs, s.cfg.Functions...)
	funcs = append(funcs, extra...)
	if len(funcs) > 0 {
		if err := sess.RegisterFunctions(funcs...); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		requestID,
		requestLogger(s.logger),
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/manifest", s.handleManifest)
		r.Post("/dry-plan", s.handleDryPlan)
		r.Post("/validate/{rule}", s.handleValidate)
		r.Get("/lineage/{dataset}/{column}", s.handleLineage)
	})
	return r
}

// Serve listens on Config.Addr and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	if s.cfg.Watch && s.cfg.ManifestPath != "" {
		eg.Go(func() error {
			return s.watchManifest(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchManifest reloads the manifest when its file is written, created or
// renamed over. The parent directory is watched so editors that replace
// the file are seen.
func (s *Server) watchManifest(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	path, err := filepath.Abs(s.cfg.ManifestPath)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		s.logger.Error("failed to watch manifest", "path", path, "error", err)
		return nil
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("manifest changed, reloading", "file", event.Name)
				if err := s.Reload(); err != nil {
					s.logger.Error("reload failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
