package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semql/internal/cli/config"
	"github.com/leapstack-labs/semql/internal/cli/output"
	intconfig "github.com/leapstack-labs/semql/internal/config"
	"github.com/leapstack-labs/semql/internal/state"
	"github.com/leapstack-labs/semql/pkg/adapter"
	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/transform"
)

// errNoConfig is returned when a command runs without the root command
// having loaded the configuration.
var errNoConfig = errors.New("configuration not loaded")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *intconfig.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the command context.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.GetConfig(cmd.Context())
	if cfg == nil {
		return nil, errNoConfig
	}
	mode, err := output.ParseMode(cfg.Output)
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// LoadManifest reads the configured manifest.
func (c *CommandContext) LoadManifest() (*mdl.Manifest, error) {
	m, err := mdl.LoadFile(c.Cfg.Manifest)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("manifest loaded", "path", c.Cfg.Manifest, "models", len(m.Models))
	return m, nil
}

// Analyze loads and analyzes the configured manifest. With a configured
// source the models are checked against its tables; the returned cleanup
// closes the connection and must be called.
func (c *CommandContext) Analyze(ctx context.Context) (*transform.AnalyzedModel, func(), error) {
	m, err := c.LoadManifest()
	if err != nil {
		return nil, nil, err
	}

	tables, cleanup, err := c.Tables(ctx, m)
	if err != nil {
		return nil, nil, err
	}
	am, err := transform.Analyze(m, transform.WithTables(tables))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return am, cleanup, nil
}

// Tables opens the physical tables of m in the configured source. Without
// a source it returns no tables.
func (c *CommandContext) Tables(ctx context.Context, m *mdl.Manifest) (map[string]mdl.DataSource, func(), error) {
	if c.Cfg.Source == nil {
		return nil, func() {}, nil
	}
	a, err := c.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = a.Close() }

	tables, err := adapter.DataSources(ctx, a, m)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	c.Logger.Debug("physical tables opened", "source", c.Cfg.Source.Type, "tables", len(tables))
	return tables, cleanup, nil
}

// Connect opens the configured source.
func (c *CommandContext) Connect(ctx context.Context) (adapter.Adapter, error) {
	if c.Cfg.Source == nil {
		return nil, errors.New("no source configured (set source.type in semql.yaml)")
	}
	a, err := adapter.NewAdapter(*c.Cfg.Source, c.Logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, *c.Cfg.Source); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.Cfg.Source.Type, err)
	}
	return a, nil
}

// Session creates a transform session with the configured dialect and
// remote functions.
func (c *CommandContext) Session() (*transform.Session, error) {
	d, err := dialect.Lookup(c.Cfg.Dialect)
	if err != nil {
		return nil, err
	}
	sess := transform.NewSession(transform.WithDialect(d), transform.WithLogger(c.Logger))
	if len(c.Cfg.Functions) > 0 {
		if err := sess.RegisterFunctions(c.Cfg.Functions...); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// OpenHistory opens the history store when history is enabled; otherwise
// it returns nil.
func (c *CommandContext) OpenHistory() (*state.SQLiteStore, error) {
	if !c.Cfg.History.Enabled {
		return nil, nil
	}
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.History.Path); err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}
