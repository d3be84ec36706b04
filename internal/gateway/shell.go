package gateway

import (
	"context"
	"embed"
	"io"
	"io/fs"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	textlang "golang.org/x/text/language"
)

//go:embed assets
var assetFS embed.FS

// Assets returns the built-in panel client: panel.js and panel.css.
func Assets() fs.FS {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// Shell is the built-in panel template. Its insertion points are filled
// by Prepare.
func Shell(title string) templ.Component {
	title = cases.Title(textlang.English).String(strings.TrimSpace(title))
	if title == "" {
		title = "Visual Tree"
	}
	escaped := templ.EscapeString(title)

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="Content-Security-Policy" content="`+PolicySlot+`">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>`+escaped+`</title>
<link rel="stylesheet" href="./panel.css">
</head>
<body>
<header>
<h1>`+escaped+`</h1>
<div class="actions">
<button id="refresh" type="button">Refresh</button>
<button id="show-selected" type="button" disabled>Show selected</button>
</div>
</header>
<main id="tree" aria-live="polite"><p class="status">Loading workspace…</p></main>
<script src="./panel.js"></script>
</body>
</html>
`)
		return err
	})
}

// DefaultTemplate renders Shell to a string.
func DefaultTemplate(ctx context.Context, title string) (string, error) {
	var b strings.Builder
	if err := Shell(title).Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}
