package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semql/pkg/adapter"
	"github.com/leapstack-labs/semql/pkg/dialect"

	_ "github.com/leapstack-labs/semql/pkg/adapters/sqlite"
	_ "github.com/leapstack-labs/semql/pkg/dialects/duckdb"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.StringP("manifest", "m", "", "")
	fs.String("dialect", "", "")
	fs.String("log-level", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.StringP("output", "o", "", "")
	return fs
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := tempDir(t)
	t.Chdir(dir)

	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, filepath.Join(dir, DefaultManifest), cfg.Manifest)
	assert.Equal(t, DefaultDialect, cfg.Dialect)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultReadTimeout, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Server.Watch)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, filepath.Join(dir, DefaultHistoryPath), cfg.History.Path)
	assert.Nil(t, cfg.Source)
}

func TestLoad_File(t *testing.T) {
	dir := tempDir(t)
	writeConfig(t, dir, `
manifest: models/tpch.yaml
dialect: duckdb
server:
  addr: 127.0.0.1:9000
  read_timeout: 1m
  watch: false
history:
  enabled: true
functions:
  - name: add_two
    function_type: scalar
    return_type: int
  - name: geo_mean
    function_type: aggregate
source:
  type: sqlite
  path: data/tpch.db
  password: ${SEMQL_TEST_PASSWORD}
  params:
    pragma: wal
`)
	t.Setenv("SEMQL_TEST_PASSWORD", "hunter2")

	// found from a nested directory
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), used)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "models", "tpch.yaml"), cfg.Manifest)
	assert.Equal(t, "duckdb", cfg.Dialect)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.Server.ReadTimeout)
	assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Server.Watch)
	assert.True(t, cfg.History.Enabled)

	require.Len(t, cfg.Functions, 2)
	assert.Equal(t, "add_two", cfg.Functions[0].Name)
	assert.Equal(t, dialect.ScalarFunction, cfg.Functions[0].FunctionType)
	assert.Equal(t, "int", cfg.Functions[0].ReturnType)
	assert.Equal(t, dialect.AggregateFunction, cfg.Functions[1].FunctionType)

	require.NotNil(t, cfg.Source)
	assert.Equal(t, "sqlite", cfg.Source.Type)
	assert.Equal(t, filepath.Join(dir, "data", "tpch.db"), cfg.Source.Path)
	assert.Equal(t, "hunter2", cfg.Source.Password)
	assert.Equal(t, map[string]any{"pragma": "wal"}, cfg.Source.Params)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "dialect: duckdb\nlog_level: warn\noutput: text\n")

	t.Setenv("SEMQL_LOG_LEVEL", "error")
	t.Setenv("SEMQL_OUTPUT", "markdown")
	t.Setenv("SEMQL_SERVER__ADDR", ":7000")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"-o", "json", "--manifest", "other.json"}))

	cfg, used, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "duckdb", cfg.Dialect, "file over defaults")
	assert.Equal(t, "error", cfg.LogLevel, "env over file")
	assert.Equal(t, ":7000", cfg.Server.Addr, "nested env keys")
	assert.Equal(t, "json", cfg.Output, "flags over env")
	want, err := filepath.Abs("other.json")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.Manifest, "flag paths are relative to the working directory")
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "dialect: oracle\noutput: xml\n")

	_, _, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dialect "oracle"`)
	assert.Contains(t, err.Error(), `unknown output format "xml"`)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Manifest: "mdl.json",
			Dialect:  "wren",
			LogLevel: "info",
			Output:   "auto",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"dialect names ignore case", func(c *Config) { c.Dialect = "WREN" }, ""},
		{"no manifest", func(c *Config) { c.Manifest = "" }, "manifest is required"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, `unknown log level "loud"`},
		{"verbose ignores level", func(c *Config) { c.LogLevel = "loud"; c.Verbose = true }, ""},
		{"history path", func(c *Config) { c.History.Enabled = true }, "history.path is required"},
		{"max conns", func(c *Config) { c.Server.MaxConns = -1 }, "server.max_conns must not be negative"},
		{"source type", func(c *Config) { c.Source = &adapter.Config{} }, "source.type is required"},
		{"unknown adapter", func(c *Config) { c.Source = &adapter.Config{Type: "oracle"} }, `unknown adapter type "oracle"`},
		{"known adapter", func(c *Config) { c.Source = &adapter.Config{Type: "sqlite"} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLevel(t *testing.T) {
	c := &Config{LogLevel: "warn"}
	level, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, "WARN", level.String())

	c.Verbose = true
	level, err = c.Level()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SEMQL_TEST_HOST", "db.internal")
	assert.Equal(t, "db.internal:5432", expandEnvVars("${SEMQL_TEST_HOST}:5432"))
	assert.Equal(t, "${SEMQL_TEST_UNSET}", expandEnvVars("${SEMQL_TEST_UNSET}"))
}
