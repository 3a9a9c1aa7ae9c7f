package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/semql/pkg/adapter"
	"github.com/leapstack-labs/semql/pkg/dialect"
)

// OutputFormats are the accepted values of output.
var OutputFormats = []string{"auto", "text", "markdown", "json"}

// Validate checks the configuration. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Manifest == "" {
		errs = append(errs, errors.New("manifest is required"))
	}
	if _, err := dialect.Lookup(c.Dialect); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(OutputFormats, c.Output) {
		errs = append(errs, fmt.Errorf("unknown output format %q (available: %s)", c.Output, strings.Join(OutputFormats, ", ")))
	}
	for i, f := range c.Functions {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, fmt.Errorf("functions[%d]: name is required", i))
		}
	}
	if c.Server.ReadTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if c.Server.MaxConns < 0 {
		errs = append(errs, errors.New("server.max_conns must not be negative"))
	}
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history.path is required when history is enabled"))
	}
	if c.Source != nil {
		if err := validateSource(c.Source); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func validateSource(s *adapter.Config) error {
	if s.Type == "" {
		return errors.New("source.type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(s.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      s.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// Level returns the slog level named by LogLevel. Verbose forces debug.
func (c *Config) Level() (slog.Level, error) {
	if c.Verbose {
		return slog.LevelDebug, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return level, nil
}
