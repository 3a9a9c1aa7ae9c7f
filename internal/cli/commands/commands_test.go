package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semql/internal/cli/config"
	"github.com/leapstack-labs/semql/internal/cli/output"
	clitestutil "github.com/leapstack-labs/semql/internal/cli/testutil"
	intconfig "github.com/leapstack-labs/semql/internal/config"
	"github.com/leapstack-labs/semql/internal/testutil"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

const ordersPlan = "SELECT orders.o_orderkey FROM (SELECT orders.o_orderkey AS o_orderkey FROM orders) AS orders"

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs cmd in the project at dir with the given output mode.
func execute(t *testing.T, dir string, mode output.Mode, stdin string, cmd *cobra.Command, args ...string) result {
	t.Helper()

	cfg, _, err := intconfig.Load(filepath.Join(dir, intconfig.ConfigFileName), nil)
	require.NoError(t, err)
	cfg.Output = string(mode)

	ctx := config.WithConfig(context.Background(), cfg)
	ctx = config.WithLogger(ctx, testutil.NewTestLogger(t))

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{}, args...))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err = cmd.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewTransformCommand(), "transform [sql...]", []string{"file", "concurrency"}},
		{NewLineageCommand(), "lineage <dataset.column>", nil},
		{NewDescribeCommand(), "describe [dataset]", nil},
		{NewValidateCommand(), "validate [rule]", []string{"model", "column"}},
		{NewIntrospectCommand(), "introspect", []string{"catalog", "schema", "format", "out"}},
		{NewServeCommand(), "serve", []string{"addr", "no-watch"}},
		{NewHistoryCommand(), "history", nil},
		{NewREPLCommand(), "repl", nil},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}

	// transform keeps the name of the HTTP endpoint as an alias
	assert.Equal(t, []string{"dry-plan"}, NewTransformCommand().Aliases)

	names := make([]string, 0)
	for _, sub := range NewHistoryCommand().Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "clear"}, names)
}

func TestNewCommandContext_NoConfig(t *testing.T) {
	cmd := NewDescribeCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, errNoConfig)
}

func TestTransformCommand(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\n")
	queryFile := clitestutil.WriteFile(t, dir, "queries/q.sql", "select o_orderkey from orders;\n")

	tests := []struct {
		name  string
		mode  output.Mode
		stdin string
		args  []string
		want  string
	}{
		{
			name: "text",
			mode: output.ModeText,
			args: []string{"select o_orderkey from orders"},
			want: ordersPlan + "\n",
		},
		{
			name: "markdown",
			mode: output.ModeMarkdown,
			args: []string{"select o_orderkey from orders"},
			want: "```sql\n" + ordersPlan + "\n```\n\n",
		},
		{
			name:  "stdin",
			mode:  output.ModeText,
			stdin: "select o_orderkey\nfrom orders;\n",
			want:  ordersPlan + "\n",
		},
		{
			name: "file",
			mode: output.ModeText,
			args: []string{"-f", queryFile},
			want: ordersPlan + "\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, dir, tt.mode, tt.stdin, NewTransformCommand(), tt.args...)
			require.NoError(t, res.err, res.stderr)
			assert.Equal(t, tt.want, res.stdout)
			clitestutil.AssertNoANSI(t, res.stdout)
		})
	}
}

func TestTransformCommand_JSON(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\n")

	res := execute(t, dir, output.ModeJSON, "", NewTransformCommand(), "select o_orderkey from orders")
	require.NoError(t, res.err)
	got := decodeJSON[output.TransformOutput](t, res.stdout)
	assert.Equal(t, ordersPlan, got.SQL)
	assert.Empty(t, got.Error)

	res = execute(t, dir, output.ModeJSON, "", NewTransformCommand(),
		"select o_orderkey from orders", "select nope from orders", "--concurrency", "1")
	require.Error(t, res.err)
	assert.Equal(t, "1 of 2 transforms failed", res.err.Error())

	all := decodeJSON[[]output.TransformOutput](t, res.stdout)
	require.Len(t, all, 2)
	assert.Equal(t, "#1", all[0].Name)
	assert.Equal(t, ordersPlan, all[0].SQL)
	assert.Empty(t, all[1].SQL)
	assert.Contains(t, all[1].Error, "nope")
}

func TestTransformCommand_Errors(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\n")

	res := execute(t, dir, output.ModeText, "  \n", NewTransformCommand())
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "no query given")

	res = execute(t, dir, output.ModeText, "", NewTransformCommand(), "select nope from orders")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "ModelAnalyzeRule")
	assert.Contains(t, res.stderr, "error: ")

	res = execute(t, dir, output.ModeText, "", NewTransformCommand(), "-f", filepath.Join(dir, "missing.sql"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "failed to read query")

	missing := clitestutil.SetupTestProject(t, "manifest: other.json\n")
	res = execute(t, missing, output.ModeText, "", NewTransformCommand(), "select 1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "failed to open manifest")
}

func TestLineageCommand(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\n")

	res := execute(t, dir, output.ModeJSON, "", NewLineageCommand(), "orders.customer_name")
	require.NoError(t, res.err, res.stderr)
	got := decodeJSON[output.LineageOutput](t, res.stdout)
	assert.Equal(t, "orders.customer_name", got.Column)
	// the join condition columns are sources of a relationship column too
	assert.Equal(t, []string{"customer.c_custkey", "customer.c_name", "orders.o_custkey"}, got.Sources)
	require.Len(t, got.Hops, 1)
	assert.Equal(t, output.HopInfo{
		Relationship: "orders_customer",
		From:         "orders",
		To:           "customer",
		Column:       "customer",
		JoinType:     "MANY_TO_ONE",
	}, got.Hops[0])

	res = execute(t, dir, output.ModeJSON, "", NewLineageCommand(), "orders.o_totalprice")
	require.NoError(t, res.err)
	got = decodeJSON[output.LineageOutput](t, res.stdout)
	assert.Equal(t, "source", got.Kind)
	assert.Contains(t, got.Dependents, "orders.double_price")

	res = execute(t, dir, output.ModeMarkdown, "", NewLineageCommand(), "orders.double_price")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "# Lineage: orders.double_price")
	assert.Contains(t, res.stdout, "- **Kind**: calculated")
	assert.Contains(t, res.stdout, "- **Physical sources**: orders.o_totalprice")
	clitestutil.AssertValidMarkdown(t, res.stdout)

	res = execute(t, dir, output.ModeText, "", NewLineageCommand(), "orders.customer_name")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "orders_customer: orders -> customer (MANY_TO_ONE)")

	for _, arg := range []string{"orders", "orders.", "orders.nope"} {
		res = execute(t, dir, output.ModeText, "", NewLineageCommand(), arg)
		assert.Error(t, res.err, arg)
	}
}

func TestDescribeCommand(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\n")

	res := execute(t, dir, output.ModeJSON, "", NewDescribeCommand())
	require.NoError(t, res.err, res.stderr)
	got := decodeJSON[output.DescribeOutput](t, res.stdout)
	assert.Equal(t, "wren", got.Catalog)
	assert.Equal(t, "tpch", got.Schema)
	assert.NotEmpty(t, got.Hash)
	assert.Equal(t, []string{"big_orders"}, got.Views)

	names := make([]string, 0, len(got.Datasets))
	for _, ds := range got.Datasets {
		names = append(names, ds.Name+":"+ds.Kind)
	}
	assert.Equal(t, []string{"orders:model", "customer:model", "nation:model", "revenue:metric"}, names)
	require.Len(t, got.Relationships, 2)
	assert.Equal(t, "MANY_TO_ONE", got.Relationships[0].JoinType)

	res = execute(t, dir, output.ModeJSON, "", NewDescribeCommand(), "revenue")
	require.NoError(t, res.err)
	revenue := decodeJSON[output.DatasetInfo](t, res.stdout)
	assert.Equal(t, "orders", revenue.Source)
	require.Len(t, revenue.Columns, 2)
	assert.Equal(t, "dimension", revenue.Columns[0].Kind)
	assert.Equal(t, "measure", revenue.Columns[1].Kind)
	assert.Equal(t, "sum(o_totalprice)", revenue.Columns[1].Expression)

	res = execute(t, dir, output.ModeMarkdown, "", NewDescribeCommand(), "orders")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "## orders (model) from orders")
	assert.Contains(t, res.stdout, "| customer_name")
	assert.NotContains(t, res.stdout, "Relationships")

	res = execute(t, dir, output.ModeText, "", NewDescribeCommand(), "nope")
	require.Error(t, res.err)
	assert.Equal(t, "dataset not found: nope", res.err.Error())
}

func TestValidateCommand(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\n")

	tests := []struct {
		name  string
		args  []string
		valid bool
	}{
		{name: "manifest by default", valid: true},
		{name: "manifest", args: []string{"manifest"}, valid: true},
		{name: "valid column", args: []string{"column_is_valid", "--model", "orders", "--column", "customer_name"}, valid: true},
		{name: "unknown column", args: []string{"column_is_valid", "--model", "orders", "--column", "nope"}},
		{name: "unknown model", args: []string{"column_is_valid", "--model", "nope", "--column", "o_orderkey"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, dir, output.ModeJSON, "", NewValidateCommand(), tt.args...)
			got := decodeJSON[output.ValidateOutput](t, res.stdout)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.NoError(t, res.err)
				assert.Empty(t, got.Error)
				return
			}
			assert.ErrorIs(t, res.err, errValidationFailed)
			assert.NotEmpty(t, got.Error)
		})
	}

	res := execute(t, dir, output.ModeText, "", NewValidateCommand(), "column_is_valid", "--model", "orders")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "requires --model and --column")

	res = execute(t, dir, output.ModeText, "", NewValidateCommand(), "nope")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `unknown validation rule "nope"`)
}

func TestValidateCommand_InvalidManifest(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: bad.json\n")
	m := testutil.TPCH()
	m.Catalog = ""
	var buf bytes.Buffer
	require.NoError(t, mdl.Encode(&buf, m))
	clitestutil.WriteFile(t, dir, "bad.json", buf.String())

	res := execute(t, dir, output.ModeMarkdown, "", NewValidateCommand())
	assert.ErrorIs(t, res.err, errValidationFailed)
	assert.Contains(t, res.stdout, "- manifest: failed")
	assert.Contains(t, res.stderr, "catalog")
}

func TestHistoryCommand(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\nhistory:\n  enabled: true\n  path: .semql/history.db\n")

	res := execute(t, dir, output.ModeText, "", NewTransformCommand(), "select o_orderkey from orders", "select nope from orders")
	require.Error(t, res.err)

	res = execute(t, dir, output.ModeJSON, "", NewHistoryCommand(), "list")
	require.NoError(t, res.err, res.stderr)
	entries := decodeJSON[[]output.HistoryEntry](t, res.stdout)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.NotEmpty(t, e.Manifest)
	}

	res = execute(t, dir, output.ModeJSON, "", NewHistoryCommand(), "list", "--failed")
	require.NoError(t, res.err)
	failed := decodeJSON[[]output.HistoryEntry](t, res.stdout)
	require.Len(t, failed, 1)
	assert.Equal(t, "select nope from orders", failed[0].SQL)

	res = execute(t, dir, output.ModeJSON, "", NewHistoryCommand(), "show", failed[0].ID)
	require.NoError(t, res.err)
	shown := decodeJSON[output.HistoryEntry](t, res.stdout)
	assert.Equal(t, failed[0].ID, shown.ID)
	assert.Contains(t, shown.Error, "nope")

	res = execute(t, dir, output.ModeText, "", NewHistoryCommand(), "show", "missing")
	require.Error(t, res.err)
	assert.Equal(t, "transform not found: missing", res.err.Error())

	res = execute(t, dir, output.ModeText, "", NewHistoryCommand(), "clear")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "deleted 2 transforms")

	res = execute(t, dir, output.ModeMarkdown, "", NewHistoryCommand(), "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No transforms recorded")
}

func TestHistoryCommand_Disabled(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\n")

	res := execute(t, dir, output.ModeText, "", NewHistoryCommand(), "list")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "history is disabled")
}

func TestIntrospectCommand_NoSource(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\n")

	res := execute(t, dir, output.ModeText, "", NewIntrospectCommand())
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "no source configured")

	res = execute(t, dir, output.ModeText, "", NewIntrospectCommand(), "--format", "toml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `unsupported format "toml"`)
}

func TestREPLCommand(t *testing.T) {
	dir := clitestutil.SetupTestProject(t, "manifest: mdl.json\n")

	input := strings.Join([]string{
		".models",
		".describe revenue",
		"select o_orderkey",
		"from orders;",
		"select nope from orders;",
		".register add_two scalar int",
		".functions",
		"select add_two(o_orderkey) from orders;",
		".lineage orders.double_price",
		".bogus",
		".quit",
		"select o_custkey from orders;",
	}, "\n")

	res := execute(t, dir, output.ModeText, input, NewREPLCommand())
	require.NoError(t, res.err, res.stderr)

	assert.Contains(t, res.stdout, "semql REPL")
	assert.Contains(t, res.stdout, "orders (model)")
	assert.Contains(t, res.stdout, "revenue (metric)")
	assert.Contains(t, res.stdout, "measure")
	assert.Contains(t, res.stdout, ordersPlan+"\n")
	assert.Contains(t, res.stdout, "registered add_two")
	assert.Contains(t, res.stdout, "add_two scalar int")
	assert.Contains(t, res.stdout, "add_two(orders.o_orderkey)")
	assert.Contains(t, res.stdout, "orders.double_price (calculated)")
	assert.NotContains(t, res.stdout, "o_custkey FROM")

	assert.Contains(t, res.stderr, "Error: ModelAnalyzeRule")
	assert.Contains(t, res.stderr, "Unknown command: .bogus")
}
