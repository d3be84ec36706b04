// Package aggregator turns a selection of paths into one composite document.
//
// Every path becomes exactly one Section, in request order. Reads run
// concurrently with a bounded fan-out; a path that cannot be read yields
// an error Section instead of failing the whole document.
package aggregator

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/language"
	"github.com/conneroisu/visualtree/internal/logging"
)

// DefaultMaxFileSize caps the size of a single file read.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Options configures an Aggregator.
type Options struct {
	// Root is the workspace root used for display paths and for resolving
	// relative selections. Empty means no workspace is open.
	Root string
	// Concurrency bounds simultaneous file reads.
	Concurrency int
	// MaxFileSize rejects larger files. Zero means DefaultMaxFileSize,
	// negative means unlimited.
	MaxFileSize int64
	// Skip lists base names that are dropped from every selection.
	Skip []string
}

// Aggregator reads and renders selections.
type Aggregator struct {
	opts   Options
	skip   map[string]struct{}
	reads  singleflight.Group
	logger logging.Logger

	readFile func(path string, maxSize int64) ([]byte, error)
}

// New creates an aggregator. A nil logger discards diagnostics.
func New(opts Options, logger logging.Logger) *Aggregator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU() * 2
	}
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	skip := make(map[string]struct{}, len(opts.Skip))
	for _, name := range opts.Skip {
		skip[name] = struct{}{}
	}

	return &Aggregator{
		opts:     opts,
		skip:     skip,
		logger:   logger.WithComponent("aggregator"),
		readFile: loadFile,
	}
}

// Root returns the workspace root the aggregator resolves against.
func (a *Aggregator) Root() string {
	return a.opts.Root
}

// Aggregate reads every selected path. The only error it returns is the
// context's, when the caller gave up before all reads finished.
func (a *Aggregator) Aggregate(ctx context.Context, paths []string) (*Document, error) {
	selected := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, skip := a.skip[filepath.Base(p)]; skip {
			a.logger.Debug(ctx, "Skipping path from selection", "path", p)
			continue
		}
		selected = append(selected, p)
	}

	perf := logging.StartOperation(a.logger, "aggregate")
	sections := make([]Section, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)

	for i, p := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sections[i] = a.section(gctx, p)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	doc := &Document{Sections: sections}
	perf.End(ctx, "sections", len(sections), "failed", doc.Failed())
	return doc, nil
}

func (a *Aggregator) section(ctx context.Context, requested string) Section {
	abs := a.resolve(requested)
	display := a.DisplayPath(requested)

	content, err := a.read(abs)
	if err != nil {
		a.logger.Warn(ctx, err, "File read failed", "path", abs)
		return Section{
			Title:    display,
			Path:     abs,
			Language: errorLanguage,
			Err:      err,
		}
	}

	return Section{
		Title:    display,
		Path:     abs,
		Language: language.Classify(abs),
		Body:     content,
	}
}

func (a *Aggregator) read(path string) (string, error) {
	v, err, _ := a.reads.Do(path, func() (interface{}, error) {
		data, err := a.readFile(path, a.opts.MaxFileSize)
		if err != nil {
			return nil, err
		}
		return decodeText(path, data)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// resolve makes a selected path absolute against the workspace root.
func (a *Aggregator) resolve(p string) string {
	if filepath.IsAbs(p) || a.opts.Root == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(a.opts.Root, p)
}

// DisplayPath returns p relative to the workspace root when it lies
// inside it, and the literal path otherwise.
func (a *Aggregator) DisplayPath(p string) string {
	if a.opts.Root == "" {
		return p
	}
	rel, err := filepath.Rel(a.opts.Root, a.resolve(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}

// ErrNoSelection is returned by callers that refuse an empty selection.
var ErrNoSelection = errors.New("no files selected")
