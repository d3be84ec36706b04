package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/visualtree/internal/errors"
)

func TestFence(t *testing.T) {
	assert.Equal(t, "```", Fence("plain"))
	assert.Equal(t, "```", Fence("one ` tick"))
	assert.Equal(t, "````", Fence("```go\nfmt.Println()\n```"))
	assert.Equal(t, "``````", Fence("`````"))
}

func TestSectionMarkdownNestedFence(t *testing.T) {
	s := Section{Title: "README.md", Language: "markdown", Body: "```sh\nls\n```\n"}
	assert.Equal(t, "## README.md\n````markdown\n```sh\nls\n```\n\n````\n", s.Markdown())
}

func TestDocumentRendering(t *testing.T) {
	doc := &Document{Sections: []Section{
		{Title: "a.py", Language: "python", Body: "print(1)\n"},
		{Title: "b.go", Language: "go", Body: "package b"},
	}}

	assert.Equal(t,
		"## a.py\n```python\nprint(1)\n\n```\n\n## b.go\n```go\npackage b\n```\n",
		doc.Render(FormatMarkdown))
	assert.Equal(t,
		"a.py\nprint(1)\n\n\nb.go\npackage b\n",
		doc.Render(FormatText))
}

func TestSectionRenderingKeepsTrailingNewlines(t *testing.T) {
	pairs := [][2]string{{"x", "x\n"}, {"", "\n"}}
	for _, pair := range pairs {
		a := Section{Title: "a.txt", Language: "plaintext", Body: pair[0]}
		b := Section{Title: "a.txt", Language: "plaintext", Body: pair[1]}
		assert.NotEqual(t, a.Markdown(), b.Markdown(), "bodies %q and %q", pair[0], pair[1])
		assert.NotEqual(t, a.PlainText(), b.PlainText(), "bodies %q and %q", pair[0], pair[1])
	}

	s := Section{Title: "e.txt", Language: "plaintext", Body: ""}
	assert.Equal(t, "## e.txt\n```plaintext\n\n```\n", s.Markdown())
	s.Body = "\n"
	assert.Equal(t, "## e.txt\n```plaintext\n\n\n```\n", s.Markdown())
}

func TestErrorSectionUsesPlainTextTag(t *testing.T) {
	s := Section{Title: "gone.py", Language: errorLanguage, Err: errors.New("missing")}
	assert.Equal(t, "## gone.py\n```plaintext\n[error] unable to read gone.py: missing\n```\n", s.Markdown())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("MD")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	f, err = ParseFormat("plain")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("html")
	assert.Error(t, err)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatMarkdown, FormatForPath("out/combined.md"))
	assert.Equal(t, FormatText, FormatForPath("out/combined.txt"))
	assert.Equal(t, FormatText, FormatForPath("combined"))
	assert.Equal(t, ".md", FormatMarkdown.Extension())
	assert.Equal(t, "plaintext", FormatText.Language())
}
