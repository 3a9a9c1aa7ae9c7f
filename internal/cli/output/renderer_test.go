package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"TEXT", ModeText, false},
		{"md", ModeMarkdown, false},
		{"json", ModeJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"empty piped", "", false, ModeMarkdown},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_NonTerminalIsPlain(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRenderer(&out, &errOut, ModeText)
	assert.False(t, r.IsTTY())

	r.Header(1, "Models")
	r.Success("done")
	r.Muted("quiet")
	r.Warning("careful")
	r.StatusLine("orders", "success", "3 columns")

	assert.NotContains(t, out.String(), "\x1b[")
	assert.NotContains(t, errOut.String(), "\x1b[")
	assert.Contains(t, out.String(), "Models\n")
	assert.Contains(t, out.String(), "✓ done")
	assert.Contains(t, out.String(), "✓ orders 3 columns")
	assert.Equal(t, "warning: careful\n", errOut.String())
}

func TestRenderer_Markdown(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeMarkdown)

	r.Header(2, "Columns")
	r.StatusLine("orders.o_orderkey", "failed", "no field")
	r.Table([]string{"name", "type"}, [][]string{{"o_orderkey", "integer"}})

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "## Columns\n\n"))
	assert.Contains(t, got, "- orders.o_orderkey: failed (no field)\n")
	assert.Contains(t, got, "| o_orderkey | integer |")
}

func TestRenderer_TextTable(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeText)
	r.Table([]string{"name", "type"}, [][]string{{"o_orderkey", "integer"}, {"o_custkey", "integer"}})

	got := out.String()
	assert.Contains(t, got, "name")
	assert.Contains(t, got, "o_custkey")
	assert.Contains(t, got, "┌")
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeJSON)
	require.NoError(t, r.JSON(TransformOutput{SQL: "SELECT 1"}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, map[string]any{"sql": "SELECT 1"}, got)
	assert.Contains(t, out.String(), "\n  \"sql\"")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
	assert.Equal(t, "- **Hash**: abc", FormatKeyValue("Hash", "abc"))
	assert.Equal(t, "```sql\nSELECT 1\n```", FormatCodeBlock("sql", "SELECT 1\n"))
}
