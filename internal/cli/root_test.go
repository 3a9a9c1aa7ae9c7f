package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitestutil "github.com/leapstack-labs/semql/internal/cli/testutil"
	"github.com/leapstack-labs/semql/internal/testutil"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "semql", cmd.Use)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"version", "transform", "validate", "lineage", "describe", "introspect", "serve", "repl", "history", "completion"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"config", "manifest", "dialect", "log-level", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCmd_Transform(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\noutput: json\n")
	cfg := filepath.Join(dir, "semql.yaml")

	stdout, _, err := run(t, "--config", cfg, "transform", "select o_orderkey from orders")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"sql": "SELECT orders.o_orderkey FROM`)

	// flags override the config file
	stdout, _, err = run(t, "--config", cfg, "-o", "markdown", "transform", "select o_orderkey from orders")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "```sql\n"), stdout)
}

func TestRootCmd_ManifestFlag(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: missing.json\noutput: text\n")

	var buf bytes.Buffer
	require.NoError(t, mdl.EncodeYAML(&buf, testutil.TPCH()))
	yamlPath := clitestutil.WriteFile(t, dir, "models/mdl.yaml", buf.String())

	_, _, err := run(t, "--config", filepath.Join(dir, "semql.yaml"), "describe")
	require.Error(t, err)

	stdout, _, err := run(t, "--config", filepath.Join(dir, "semql.yaml"), "--manifest", yamlPath, "describe", "nation")
	require.NoError(t, err)
	assert.Contains(t, stdout, "n_name")
}

func TestRootCmd_Dialect(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\noutput: text\n")
	cfg := filepath.Join(dir, "semql.yaml")

	for _, d := range []string{"wren", "duckdb", "postgres", "sqlite"} {
		t.Run(d, func(t *testing.T) {
			stdout, stderr, err := run(t, "--config", cfg, "--dialect", d, "transform", "select o_orderkey from orders")
			require.NoError(t, err, stderr)
			assert.Contains(t, stdout, "orders.o_orderkey")
		})
	}

	_, _, err := run(t, "--config", cfg, "--dialect", "oracle", "transform", "select 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dialect "oracle"`)
}

func TestRootCmd_VerboseLogsToStderr(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\noutput: text\n")

	stdout, stderr, err := run(t, "--config", filepath.Join(dir, "semql.yaml"), "-v", "transform", "select o_orderkey from orders")
	require.NoError(t, err)
	assert.Contains(t, stderr, "level=DEBUG")
	assert.Contains(t, stderr, "manifest loaded")
	clitestutil.AssertNoANSI(t, stdout)
	assert.NotContains(t, stdout, "level=")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\noutput: html\n")

	_, _, err := run(t, "--config", filepath.Join(dir, "semql.yaml"), "describe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "html"`)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "semql v"+Version)
}

func TestCompletionCommand(t *testing.T) {
	stdout, _, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "semql")

	_, _, err = run(t, "completion", "tcsh")
	assert.Error(t, err)
}
