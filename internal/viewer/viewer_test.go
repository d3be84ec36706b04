package viewer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileViewer(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	v := NewFileViewer(dir, nil)

	path, err := v.OpenDocument(context.Background(), "## a.py\n```python\nprint(1)\n```\n", "markdown")
	require.NoError(t, err)
	assert.Equal(t, ".md", filepath.Ext(path))
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "print(1)")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o222, "document should be read-only")

	txt, err := v.OpenDocument(context.Background(), "a.py\nprint(1)\n", "plaintext")
	require.NoError(t, err)
	assert.Equal(t, ".txt", filepath.Ext(txt))
	assert.NotEqual(t, path, txt)
}

func TestStore(t *testing.T) {
	store, err := NewStore(2, nil)
	require.NoError(t, err)
	store.SetBaseURL("http://127.0.0.1:7070/")

	var opened []string
	store.OnOpen(func(_ context.Context, url string) { opened = append(opened, url) })

	var ids []string
	for i := 0; i < 3; i++ {
		url, err := store.OpenDocument(context.Background(), fmt.Sprintf("doc %d", i), "markdown")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "http://127.0.0.1:7070/documents/"))
		ids = append(ids, strings.TrimPrefix(url, "http://127.0.0.1:7070/documents/"))
	}

	assert.Len(t, opened, 3)
	assert.Equal(t, 2, store.Len())

	_, ok := store.Get(ids[0])
	assert.False(t, ok, "oldest document should be evicted")

	doc, ok := store.Get(ids[2])
	require.True(t, ok)
	assert.Equal(t, "doc 2", doc.Content)
	assert.Equal(t, "text/markdown; charset=utf-8", doc.ContentType())
}

func TestNewStoreRejectsBadSize(t *testing.T) {
	_, err := NewStore(0, nil)
	assert.Error(t, err)
}

type failingViewer struct{}

func (failingViewer) OpenDocument(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("disk full")
}

func TestMulti(t *testing.T) {
	store, err := NewStore(4, nil)
	require.NoError(t, err)

	loc, err := Multi{failingViewer{}, store}.OpenDocument(context.Background(), "x", "plaintext")
	require.NoError(t, err)
	assert.Contains(t, loc, "/documents/")

	_, err = Multi{failingViewer{}}.OpenDocument(context.Background(), "x", "plaintext")
	assert.ErrorContains(t, err, "disk full")
}
