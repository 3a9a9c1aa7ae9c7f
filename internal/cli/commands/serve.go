package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semql/internal/server"
	"github.com/leapstack-labs/semql/pkg/dialect"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr    string
	NoWatch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transform API over HTTP",
		Long: `Start an HTTP server that rewrites queries against the configured manifest,
or against a manifest sent with each request.

Endpoints:
  GET  /healthz
  GET  /v1/manifest
  POST /v1/dry-plan
  POST /v1/validate/{rule}
  GET  /v1/lineage/{dataset}/{column}

The manifest file is reloaded when it changes unless --no-watch is given.`,
		Example: `  # Serve on the configured address
  semql serve

  # Serve on another port without watching the manifest
  semql serve --addr :9090 --no-watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default: server.addr)")
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "Do not reload the manifest when it changes")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cc.Cfg

	d, err := dialect.Lookup(cfg.Dialect)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scfg := server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxConns:        cfg.Server.MaxConns,
		Watch:           cfg.Server.Watch && !opts.NoWatch,
		Dialect:         d,
		Functions:       cfg.Functions,
		Logger:          cc.Logger,
	}
	if opts.Addr != "" {
		scfg.Addr = opts.Addr
	}

	if _, err := os.Stat(cfg.Manifest); err == nil {
		scfg.ManifestPath = cfg.Manifest
	} else {
		cc.Logger.Warn("manifest not found, requests must carry one", "path", cfg.Manifest)
		scfg.Watch = false
	}

	if scfg.ManifestPath != "" && cfg.Source != nil {
		m, err := cc.LoadManifest()
		if err != nil {
			return err
		}
		tables, cleanup, err := cc.Tables(ctx, m)
		if err != nil {
			return err
		}
		defer cleanup()
		scfg.Tables = tables
	}

	store, err := cc.OpenHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
		scfg.History = store
	}

	srv, err := server.New(scfg)
	if err != nil {
		return err
	}

	cc.Logger.Debug("server configured", "manifest", scfg.ManifestPath, "watch", scfg.Watch, "history", store != nil)
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cc.Logger.Info("server stopped")
	return nil
}
