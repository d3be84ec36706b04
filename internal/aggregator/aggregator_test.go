package aggregator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/language"
)

func setupWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestAggregateSingleFile(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.py": "print(1)"})
	agg := New(Options{Root: root}, nil)

	doc, err := agg.Aggregate(context.Background(), []string{filepath.Join(root, "a.py")})
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)

	s := doc.Sections[0]
	assert.Equal(t, "a.py", s.Title)
	assert.Equal(t, "python", s.Language)
	assert.Contains(t, s.Body, "print(1)")
	assert.False(t, s.Failed())
	assert.Equal(t, "## a.py\n```python\nprint(1)\n```\n", doc.Markdown())
}

func TestAggregateRelativeSelection(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.py": "print(1)"})

	doc, err := New(Options{Root: root}, nil).Aggregate(context.Background(), []string{"a.py"})
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "a.py", doc.Sections[0].Title)
	assert.Equal(t, filepath.Join(root, "a.py"), doc.Sections[0].Path)
	assert.False(t, doc.Sections[0].Failed())
}

func TestAggregateMissingFile(t *testing.T) {
	root := setupWorkspace(t, nil)

	doc, err := New(Options{Root: root}, nil).Aggregate(context.Background(), []string{"missing.txt"})
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)

	s := doc.Sections[0]
	assert.True(t, s.Failed())
	assert.True(t, errors.Is(s.Err, &errors.Error{Kind: errors.KindFileRead, Code: errors.CodeFileNotFound}))
	assert.Equal(t, "[error] unable to read missing.txt: no such file", s.Content())
	assert.Contains(t, doc.Markdown(), "missing.txt")
	assert.Equal(t, 1, doc.Failed())
}

func TestAggregatePartialFailure(t *testing.T) {
	root := setupWorkspace(t, map[string]string{
		"one.go":     "package one",
		"two/two.rs": "fn two() {}",
		"three.json": `{"three": 3}`,
	})

	paths := []string{
		filepath.Join(root, "one.go"),
		filepath.Join(root, "gone.txt"),
		filepath.Join(root, "two", "two.rs"),
		filepath.Join(root, "three.json"),
	}
	doc, err := New(Options{Root: root, Concurrency: 2}, nil).Aggregate(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 4)

	titles := make([]string, 0, 4)
	for _, s := range doc.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"one.go", "gone.txt", "two/two.rs", "three.json"}, titles)
	assert.Equal(t, 1, doc.Failed())
	assert.True(t, doc.Sections[1].Failed())
	assert.Equal(t, "rust", doc.Sections[2].Language)
	assert.Equal(t, "json", doc.Sections[3].Language)
}

func TestAggregateDuplicates(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"dup.txt": "same"})
	p := filepath.Join(root, "dup.txt")

	doc, err := New(Options{Root: root}, nil).Aggregate(context.Background(), []string{p, p, p})
	require.NoError(t, err)
	require.Len(t, doc.Sections, 3)
	for _, s := range doc.Sections {
		assert.Equal(t, "same", s.Body)
	}
}

func TestAggregateUnreadableContent(t *testing.T) {
	root := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(root, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}

	binary := write("image.bin", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01})
	latin1 := write("latin1.txt", []byte{'c', 'a', 'f', 0xE9})
	big := write("big.txt", []byte(strings.Repeat("x", 64)))
	dir := filepath.Join(root, "folder")
	require.NoError(t, os.Mkdir(dir, 0o755))

	agg := New(Options{Root: root, MaxFileSize: 32}, nil)
	doc, err := agg.Aggregate(context.Background(), []string{binary, latin1, big, dir})
	require.NoError(t, err)
	require.Len(t, doc.Sections, 4)

	codes := []string{errors.CodeBinaryContent, errors.CodeDecoding, errors.CodeFileTooLarge, errors.CodeNotRegular}
	for i, code := range codes {
		var e *errors.Error
		require.True(t, errors.As(doc.Sections[i].Err, &e), "section %d", i)
		assert.Equal(t, code, e.Code)
		assert.Equal(t, language.Default, doc.Sections[i].Language)
	}
}

func TestAggregateDecodesBOM(t *testing.T) {
	root := t.TempDir()
	utf8BOM := filepath.Join(root, "bom.txt")
	require.NoError(t, os.WriteFile(utf8BOM, []byte("\xEF\xBB\xBFhello"), 0o644))

	utf16 := filepath.Join(root, "wide.txt")
	require.NoError(t, os.WriteFile(utf16, []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}, 0o644))

	doc, err := New(Options{Root: root}, nil).Aggregate(context.Background(), []string{utf8BOM, utf16})
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Sections[0].Body)
	assert.Equal(t, "hi", doc.Sections[1].Body)
}

func TestAggregateOrderIgnoresReadLatency(t *testing.T) {
	const n = 6
	agg := New(Options{Root: "/ws", Concurrency: n}, nil)

	var (
		mu       sync.Mutex
		finished []string
	)
	agg.readFile = func(path string, _ int64) ([]byte, error) {
		var index int
		_, err := fmt.Sscanf(filepath.Base(path), "f%d.txt", &index)
		assert.NoError(t, err)
		time.Sleep(time.Duration(n-index) * 15 * time.Millisecond)

		mu.Lock()
		finished = append(finished, path)
		mu.Unlock()
		return []byte("body of " + filepath.Base(path)), nil
	}

	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("f%d.txt", i)
	}

	doc, err := agg.Aggregate(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, doc.Sections, n)
	for i, s := range doc.Sections {
		assert.Equal(t, paths[i], s.Title)
		assert.Equal(t, "body of "+paths[i], s.Body)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finished, n)
	assert.Equal(t, filepath.Join("/ws", paths[n-1]), finished[0], "later paths finish first")
}

func TestAggregateSkipList(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"keep.py": "x", "explorer.py": "y"})

	agg := New(Options{Root: root, Skip: []string{"explorer.py"}}, nil)
	doc, err := agg.Aggregate(context.Background(), []string{
		filepath.Join(root, "explorer.py"),
		filepath.Join(root, "keep.py"),
	})
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "keep.py", doc.Sections[0].Title)
}

func TestDisplayPath(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(filepath.Dir(root), "elsewhere.txt")

	agg := New(Options{Root: root}, nil)
	assert.Equal(t, "sub/b.rs", agg.DisplayPath(filepath.Join(root, "sub", "b.rs")))
	assert.Equal(t, outside, agg.DisplayPath(outside))

	noRoot := New(Options{}, nil)
	assert.Equal(t, "/abs/path.go", noRoot.DisplayPath("/abs/path.go"))
}

func TestAggregateCancelled(t *testing.T) {
	root := setupWorkspace(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Root: root}, nil).Aggregate(ctx, []string{filepath.Join(root, "a.txt")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregateEmptySelection(t *testing.T) {
	doc, err := New(Options{}, nil).Aggregate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Sections)
	assert.Equal(t, "", doc.Markdown())
}
