// Package testutil builds throwaway semql projects for command tests.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fixtures "github.com/leapstack-labs/semql/internal/testutil"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

// SetupTestProject creates a project directory holding the TPCH manifest
// as mdl.json next to a semql.yaml with the given contents.
func SetupTestProject(t *testing.T, config string) string {
	t.Helper()

	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "mdl.json"))
	require.NoError(t, err)
	require.NoError(t, mdl.Encode(f, fixtures.TPCH()))
	require.NoError(t, f.Close())

	WriteFile(t, dir, "semql.yaml", config)
	return dir
}

// WriteFile writes content to name under dir, creating parent
// directories, and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails when s carries terminal escape sequences.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	assert.False(t, ansiEscape.MatchString(s), "unexpected ANSI escape codes in %q", s)
}

// AssertValidMarkdown checks that code fences are balanced and no heading
// is empty.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fences := strings.Count(md, "```")
	assert.Zero(t, fences%2, "unbalanced code fences: %d", fences)

	for i, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			assert.NotEmpty(t, strings.TrimLeft(line, "# "), "empty heading at line %d", i+1)
		}
	}
}
