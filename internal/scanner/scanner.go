// Package scanner builds the in-memory tree of a workspace directory.
//
// Directories are listed one level at a time from an explicit work list,
// so nesting depth never grows the goroutine stack. Listings within one
// level run concurrently; each listing writes only into its own folder
// node, which keeps the assembled tree independent of completion order.
// A directory that cannot be listed becomes an empty folder and a warning
// is logged. The scan itself only fails when the root is unusable.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/logging"
)

// Options controls which entries appear in the tree.
type Options struct {
	// ExcludeDirs lists directory base names that are omitted entirely.
	ExcludeDirs []string
	// Include restricts files to those whose base name matches one of the
	// glob patterns. Folders are always listed. Empty means every file.
	Include []string
	// RespectGitignore applies the root .gitignore, when present.
	RespectGitignore bool
	// FollowSymlinks turns links that resolve to directories into folders.
	FollowSymlinks bool
	// MaxDepth stops descending below folders at this depth. Zero means no limit.
	MaxDepth int
	// Concurrency bounds simultaneous directory listings.
	Concurrency int
}

// Scanner walks workspace directories.
type Scanner struct {
	opts   Options
	logger logging.Logger
}

// New creates a scanner. A nil logger discards diagnostics.
func New(opts Options, logger logging.Logger) *Scanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
		if opts.Concurrency > 8 {
			opts.Concurrency = 8
		}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scanner{
		opts:   opts,
		logger: logger.WithComponent("scanner"),
	}
}

// pending is a folder whose entries have not been listed yet.
type pending struct {
	node      *TreeNode
	canonical string
	parent    *pending
}

// seen reports whether canonical is this folder or one of its ancestors.
func (p *pending) seen(canonical string) bool {
	for cur := p; cur != nil; cur = cur.parent {
		if cur.canonical == canonical {
			return true
		}
	}
	return false
}

// Scan lists root and everything below it.
func (s *Scanner) Scan(ctx context.Context, root string) (*TreeNode, error) {
	if root == "" {
		return nil, errors.NewNoWorkspaceError("list files")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &errors.Error{
			Kind:    errors.KindScanRead,
			Code:    errors.CodeRootInvalid,
			Message: "workspace root cannot be resolved",
			Path:    root,
			Cause:   err,
		}
	}

	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		return nil, &errors.Error{
			Kind:    errors.KindScanRead,
			Code:    errors.CodeRootInvalid,
			Message: "workspace root is not a readable directory",
			Path:    absRoot,
			Cause:   err,
		}
	}

	canonical, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		canonical = absRoot
	}

	rootNode := &TreeNode{
		Name:     filepath.Base(absRoot),
		Path:     absRoot,
		Kind:     KindFolder,
		Children: []*TreeNode{},
	}

	f := newFilter(absRoot, s.opts)
	perf := logging.StartOperation(s.logger, "scan")

	frontier := []*pending{{node: rootNode, canonical: canonical}}
	folders := 0
	for len(frontier) > 0 {
		folders += len(frontier)
		next, err := s.listLevel(ctx, frontier, f)
		if err != nil {
			perf.EndWithError(ctx, err)
			return nil, err
		}
		frontier = next
	}

	perf.End(ctx, "root", absRoot, "folders", folders)
	return rootNode, nil
}

// listLevel lists every folder in frontier and returns the folders found
// one level down, in tree order.
func (s *Scanner) listLevel(ctx context.Context, frontier []*pending, f *filter) ([]*pending, error) {
	found := make([][]*pending, len(frontier))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, dir := range frontier {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found[i] = s.listDir(gctx, dir, f)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var next []*pending
	for _, dirs := range found {
		next = append(next, dirs...)
	}
	return next, nil
}

// listDir fills dir.node.Children and returns the sub-folders to descend into.
func (s *Scanner) listDir(ctx context.Context, dir *pending, f *filter) []*pending {
	entries, err := os.ReadDir(dir.node.Path)
	if err != nil {
		s.logger.Warn(ctx, errors.NewScanReadError(dir.node.Path, err),
			"Skipping unreadable directory", "path", dir.node.Path)
		dir.node.Children = []*TreeNode{}
		return nil
	}

	depth := dir.node.Depth + 1
	descend := s.opts.MaxDepth <= 0 || depth < s.opts.MaxDepth

	children := make([]*TreeNode, 0, len(entries))
	var subdirs []*pending

	for _, entry := range entries {
		path := filepath.Join(dir.node.Path, entry.Name())
		node := &TreeNode{Name: entry.Name(), Path: path, Depth: depth}

		isDir, canonical := s.classify(ctx, entry, path, dir.canonical)
		if isDir {
			if f.skipDir(path, entry.Name()) {
				continue
			}
			node.Kind = KindFolder
			node.Children = []*TreeNode{}
			children = append(children, node)

			if dir.seen(canonical) {
				s.logger.Warn(ctx, nil, "Symlink cycle detected; not descending", "path", path, "target", canonical)
				continue
			}
			if descend {
				subdirs = append(subdirs, &pending{node: node, canonical: canonical, parent: dir})
			}
			continue
		}

		if f.skipFile(path, entry.Name()) {
			continue
		}
		node.Kind = KindFile
		children = append(children, node)
	}

	dir.node.Children = children
	return subdirs
}

// classify decides whether an entry is listed as a folder, using the
// entry's own type bits. Symlinks are resolved only when following is on.
func (s *Scanner) classify(ctx context.Context, entry fs.DirEntry, path, parentCanonical string) (bool, string) {
	mode := entry.Type()
	if mode.IsDir() {
		return true, filepath.Join(parentCanonical, entry.Name())
	}
	if mode&fs.ModeSymlink == 0 || !s.opts.FollowSymlinks {
		return false, ""
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		s.logger.Debug(ctx, "Dangling symlink listed as file", "path", path, "error", err.Error())
		return false, ""
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return false, ""
	}
	return true, target
}
