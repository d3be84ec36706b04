package aggregator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/language"
)

// errorLanguage tags the fenced body of a failed section.
const errorLanguage = language.Default

// Format selects how a Document is rendered.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts "markdown"/"md" and "text"/"txt"/"plain".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "plain":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown document format %q (want markdown or text)", s)
	}
}

// FormatForPath picks markdown for .md files and plain text otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Language is the document-view language tag for the format.
func (f Format) Language() string {
	if f == FormatMarkdown {
		return "markdown"
	}
	return "plaintext"
}

// Extension is the file extension, with dot, for saved documents.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}

// Section is the part of a document produced by one selected path.
type Section struct {
	Title    string
	Path     string
	Language string
	Body     string
	Err      error
}

// Failed reports whether the section holds an error placeholder.
func (s Section) Failed() bool {
	return s.Err != nil
}

// Content is the section body, or its error placeholder.
func (s Section) Content() string {
	if s.Err == nil {
		return s.Body
	}
	reason := s.Err.Error()
	var e *errors.Error
	if errors.As(s.Err, &e) {
		reason = e.Reason()
	}
	return fmt.Sprintf("[error] unable to read %s: %s", s.Title, reason)
}

// Markdown renders the section as a heading followed by a fenced block.
func (s Section) Markdown() string {
	content := s.Content()
	fence := Fence(content)

	var b strings.Builder
	b.WriteString("## ")
	b.WriteString(s.Title)
	b.WriteString("\n")
	b.WriteString(fence)
	b.WriteString(s.Language)
	b.WriteString("\n")
	b.WriteString(content)
	b.WriteString("\n")
	b.WriteString(fence)
	b.WriteString("\n")
	return b.String()
}

// PlainText renders the section as its title line followed by the content.
func (s Section) PlainText() string {
	return s.Title + "\n" + s.Content() + "\n"
}

// Document is the ordered result of one aggregation.
type Document struct {
	Sections []Section
}

// Failed counts sections holding error placeholders.
func (d *Document) Failed() int {
	n := 0
	for _, s := range d.Sections {
		if s.Failed() {
			n++
		}
	}
	return n
}

// Markdown renders all sections separated by a single blank line.
func (d *Document) Markdown() string {
	parts := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		parts[i] = s.Markdown()
	}
	return strings.Join(parts, "\n")
}

// PlainText renders all sections separated by a single blank line.
func (d *Document) PlainText() string {
	parts := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		parts[i] = s.PlainText()
	}
	return strings.Join(parts, "\n")
}

// Render renders the document in the given format.
func (d *Document) Render(f Format) string {
	if f == FormatText {
		return d.PlainText()
	}
	return d.Markdown()
}

// Fence returns a backtick fence longer than any backtick run in content.
func Fence(content string) string {
	longest, run := 0, 0
	for i := 0; i < len(content); i++ {
		if content[i] == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := longest + 1
	if n < 3 {
		n = 3
	}
	return strings.Repeat("`", n)
}
