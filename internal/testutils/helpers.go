// Package testutils provides fixtures shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/visualtree/internal/config"
)

// SampleFiles is a small workspace: a root file and a nested file.
var SampleFiles = map[string]string{
	"a.py":     "print(1)",
	"sub/b.rs": "fn main() {}",
}

// CreateTempWorkspace writes files below a fresh temp directory and returns
// its path. Keys are slash separated paths; a trailing slash creates an
// empty directory.
func CreateTempWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if name[len(name)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return root
}

// CreateTestConfig returns the default configuration rooted at root,
// bound to a free loopback port with browser opening disabled.
func CreateTestConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	v := viper.New()
	v.Set("workspace.root", root)
	v.Set("server.host", "127.0.0.1")
	v.Set("server.port", 0)
	v.Set("server.open", false)
	v.Set("server.dispose_grace", "50ms")

	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

// AssertFilePermissions checks the permission bits of path.
func AssertFilePermissions(t *testing.T, path string, expectedMode os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, expectedMode, info.Mode().Perm(), "unexpected permissions on %s", path)
}
