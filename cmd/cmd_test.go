package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/visualtree/internal/aggregator"
	"github.com/conneroisu/visualtree/internal/scanner"
	"github.com/conneroisu/visualtree/internal/testutils"
)

func workspace(t *testing.T) string {
	t.Helper()
	return testutils.CreateTempWorkspace(t, map[string]string{
		"a.py":      "print(1)",
		"sub/b.rs":  "fn main() {}",
		".git/HEAD": "ref: refs/heads/main\n",
	})
}

// execute runs the root command with fresh global state.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	concatOutput = ""
	concatFormat.value = ""
	treeFormat.value = "text"
	versionFormat.value = "text"
	t.Cleanup(viper.Reset)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestChoiceValue(t *testing.T) {
	v := newChoiceValue("text", "text", "json")
	assert.Equal(t, "text", v.String())
	assert.Equal(t, "text|json", v.Type())
	require.NoError(t, v.Set("JSON"))
	assert.Equal(t, "json", v.String())
	assert.Error(t, v.Set("xml"))
	assert.Equal(t, "json", v.String())
}

func TestConcatDocumentFormat(t *testing.T) {
	tests := []struct {
		name                         string
		configured, explicit, output string
		want                         aggregator.Format
	}{
		{"configured", "markdown", "", "", aggregator.FormatMarkdown},
		{"md output", "text", "", "out.md", aggregator.FormatMarkdown},
		{"txt output", "markdown", "", "out.txt", aggregator.FormatText},
		{"explicit wins", "markdown", "text", "out.md", aggregator.FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := concatDocumentFormat(tt.configured, tt.explicit, tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTreeCommand(t *testing.T) {
	root := workspace(t)

	stdout, _, err := execute(t, "tree", root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "a.py")
	assert.Contains(t, stdout, "b.rs")
	assert.NotContains(t, stdout, ".git")

	stdout, _, err = execute(t, "tree", root, "--format", "json")
	require.NoError(t, err)
	var tree scanner.TreeNode
	require.NoError(t, json.Unmarshal([]byte(stdout), &tree))
	assert.Equal(t, 2, tree.CountFiles())

	stdout, _, err = execute(t, "tree", root, "--format", "yaml")
	require.NoError(t, err)
	var generic map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &generic))
	assert.Equal(t, "folder", generic["type"])

	stdout, _, err = execute(t, "tree", root, "--format", "json", "--include", "*.rs")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "a.py")
	assert.Contains(t, stdout, "b.rs")
}

func TestConcatCommand(t *testing.T) {
	root := workspace(t)

	stdout, _, err := execute(t, "concat", "--root", root, "a.py", "missing.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "## a.py\n```python\nprint(1)\n```\n"))
	assert.Contains(t, stdout, "unable to read missing.txt")

	out := filepath.Join(t.TempDir(), "combined.txt")
	_, stderr, err := execute(t, "concat", "--root", root, "-o", out, "a.py", "sub/b.rs")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Combined 2 file(s)")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a.py\nprint(1)\n\nsub/b.rs\nfn main() {}\n", string(data))

	_, _, err = execute(t, "concat")
	assert.ErrorIs(t, err, aggregator.ErrNoSelection)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "visualtree "))

	stdout, _, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Contains(t, info, "go_version")
}
