// Package language maps file names to the syntax tags used when fencing
// aggregated file contents.
package language

import (
	"path/filepath"
	"strings"
)

// Default is returned for files whose extension is unknown or absent.
const Default = "plaintext"

// extensions maps a lowercase extension, without the leading dot, to a tag.
var extensions = map[string]string{
	// systems and compiled languages
	"c":     "c",
	"h":     "c",
	"cc":    "cpp",
	"cpp":   "cpp",
	"cxx":   "cpp",
	"hpp":   "cpp",
	"hh":    "cpp",
	"hxx":   "cpp",
	"cs":    "csharp",
	"go":    "go",
	"rs":    "rust",
	"java":  "java",
	"kt":    "kotlin",
	"kts":   "kotlin",
	"scala": "scala",
	"swift": "swift",
	"m":     "objective-c",
	"mm":    "objective-cpp",
	"zig":   "zig",
	"d":     "d",
	"nim":   "nim",
	"dart":  "dart",
	"fs":    "fsharp",
	"fsx":   "fsharp",
	"vb":    "vb",
	"pas":   "pascal",
	"f90":   "fortran",
	"f":     "fortran",
	"asm":   "asm",
	"s":     "asm",

	// scripting languages
	"py":     "python",
	"pyw":    "python",
	"pyi":    "python",
	"rb":     "ruby",
	"pl":     "perl",
	"pm":     "perl",
	"php":    "php",
	"lua":    "lua",
	"r":      "r",
	"jl":     "julia",
	"ex":     "elixir",
	"exs":    "elixir",
	"erl":    "erlang",
	"hrl":    "erlang",
	"hs":     "haskell",
	"ml":     "ocaml",
	"mli":    "ocaml",
	"clj":    "clojure",
	"cljs":   "clojure",
	"lisp":   "lisp",
	"el":     "lisp",
	"scm":    "scheme",
	"groovy": "groovy",
	"tcl":    "tcl",

	// shells
	"sh":   "shell",
	"bash": "shell",
	"zsh":  "shell",
	"fish": "fish",
	"ps1":  "powershell",
	"psm1": "powershell",
	"bat":  "bat",
	"cmd":  "bat",

	// web
	"js":     "javascript",
	"mjs":    "javascript",
	"cjs":    "javascript",
	"jsx":    "javascriptreact",
	"ts":     "typescript",
	"mts":    "typescript",
	"cts":    "typescript",
	"tsx":    "typescriptreact",
	"vue":    "vue",
	"svelte": "svelte",
	"html":   "html",
	"htm":    "html",
	"xhtml":  "html",
	"css":    "css",
	"scss":   "scss",
	"sass":   "sass",
	"less":   "less",
	"templ":  "templ",

	// markup and docs
	"md":       "markdown",
	"markdown": "markdown",
	"rst":      "restructuredtext",
	"tex":      "latex",
	"adoc":     "asciidoc",
	"txt":      "plaintext",
	"xml":      "xml",
	"svg":      "xml",
	"xsl":      "xml",

	// data and configuration
	"json":       "json",
	"jsonc":      "jsonc",
	"yaml":       "yaml",
	"yml":        "yaml",
	"toml":       "toml",
	"ini":        "ini",
	"cfg":        "ini",
	"conf":       "ini",
	"properties": "properties",
	"env":        "dotenv",
	"csv":        "csv",
	"tsv":        "tsv",
	"sql":        "sql",
	"graphql":    "graphql",
	"gql":        "graphql",
	"proto":      "proto",
	"tf":         "terraform",
	"hcl":        "hcl",
	"nix":        "nix",

	// build files
	"mk":         "makefile",
	"cmake":      "cmake",
	"gradle":     "groovy",
	"dockerfile": "dockerfile",
}

// names covers files that are identified by their whole base name.
var names = map[string]string{
	"makefile":       "makefile",
	"gnumakefile":    "makefile",
	"dockerfile":     "dockerfile",
	"cmakelists.txt": "cmake",
	"go.mod":         "go.mod",
	"go.sum":         "go.sum",
}

// Classify returns the syntax tag for path. It never returns an empty string.
func Classify(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if tag, ok := names[base]; ok {
		return tag
	}
	return FromExtension(Extension(path))
}

// Extension returns the lowercase text after the last '.' in the base name
// of path, or "" when there is none.
func Extension(path string) string {
	base := filepath.Base(path)
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// FromExtension looks up an extension with or without its leading dot.
func FromExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if tag, ok := extensions[ext]; ok {
		return tag
	}
	return Default
}
