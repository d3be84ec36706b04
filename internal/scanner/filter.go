package scanner

import (
	"bufio"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// filter applies the exclude, include and gitignore options.
type filter struct {
	root      string
	exclude   map[string]struct{}
	include   []string
	gitignore *ignore.GitIgnore
}

func newFilter(root string, opts Options) *filter {
	f := &filter{
		root:    root,
		exclude: make(map[string]struct{}, len(opts.ExcludeDirs)),
		include: opts.Include,
	}
	for _, name := range opts.ExcludeDirs {
		f.exclude[name] = struct{}{}
	}
	if opts.RespectGitignore {
		f.gitignore = loadGitignore(root)
	}
	return f
}

// loadGitignore compiles the root .gitignore, or returns nil when absent.
func loadGitignore(root string) *ignore.GitIgnore {
	file, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}

func (f *filter) skipDir(path, name string) bool {
	if _, ok := f.exclude[name]; ok {
		return true
	}
	return f.ignored(path, true)
}

func (f *filter) skipFile(path, name string) bool {
	if f.ignored(path, false) {
		return true
	}
	if len(f.include) == 0 {
		return false
	}
	for _, pattern := range f.include {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return false
		}
	}
	return true
}

func (f *filter) ignored(path string, dir bool) bool {
	if f.gitignore == nil {
		return false
	}
	rel, err := filepath.Rel(f.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if f.gitignore.MatchesPath(rel) {
		return true
	}
	return dir && f.gitignore.MatchesPath(rel+"/")
}
