// Package config carries the loaded configuration and the logger of one
// CLI invocation through the command context.
package config

import (
	"context"
	"io"
	"log/slog"

	intconfig "github.com/leapstack-labs/semql/internal/config"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store logger in context.
type loggerKey struct{}

// WithConfig returns ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *intconfig.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig returns the config stored in ctx, or nil.
func GetConfig(ctx context.Context) *intconfig.Config {
	if ctx == nil {
		return nil
	}
	cfg, _ := ctx.Value(configKey{}).(*intconfig.Config)
	return cfg
}

// WithLogger returns ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from context, or a logger that discards
// everything.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

// NewLogger builds the text logger of the CLI at the configured level.
func NewLogger(w io.Writer, cfg *intconfig.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
