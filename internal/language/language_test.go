package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/ws/a.py", "python"},
		{"/ws/sub/b.rs", "rust"},
		{"main.go", "go"},
		{"App.TSX", "typescriptreact"},
		{"notes.MD", "markdown"},
		{"config.yml", "yaml"},
		{"archive.tar.gz", Default},
		{"README", Default},
		{".gitignore", Default},
		{"trailing.", Default},
		{"/ws/Makefile", "makefile"},
		{"Dockerfile", "dockerfile"},
		{"", Default},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "py", Extension("/a/b/c.PY"))
	assert.Equal(t, "gz", Extension("x.tar.gz"))
	assert.Equal(t, "", Extension("/a.d/noext"))
	assert.Equal(t, "gitignore", Extension(".gitignore"))
}

func TestFromExtension(t *testing.T) {
	assert.Equal(t, "rust", FromExtension(".rs"))
	assert.Equal(t, "go", FromExtension("GO"))
	assert.Equal(t, Default, FromExtension("nope"))
	assert.Equal(t, Default, FromExtension(""))
}

func TestTableHasNoEmptyTags(t *testing.T) {
	for ext, tag := range extensions {
		assert.NotEmpty(t, tag, "extension %q", ext)
	}
	for name, tag := range names {
		assert.NotEmpty(t, tag, "name %q", name)
	}
}
