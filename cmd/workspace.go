package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/conneroisu/visualtree/internal/aggregator"
	"github.com/conneroisu/visualtree/internal/config"
	"github.com/conneroisu/visualtree/internal/logging"
	"github.com/conneroisu/visualtree/internal/scanner"
)

// workspaceRoot returns the absolute workspace root, or "" when none is
// configured.
func workspaceRoot(cfg *config.Config) (string, error) {
	if cfg.Workspace.Root == "" {
		return "", nil
	}
	root, err := filepath.Abs(cfg.Workspace.Root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	return root, nil
}

func newScanner(cfg *config.Config, logger logging.Logger) *scanner.Scanner {
	return scanner.New(scanner.Options{
		ExcludeDirs:      cfg.Workspace.ExcludeDirs,
		Include:          cfg.Workspace.Include,
		RespectGitignore: cfg.Workspace.RespectGitignore,
		FollowSymlinks:   cfg.Workspace.FollowSymlinks,
		MaxDepth:         cfg.Workspace.MaxDepth,
	}, logger)
}

func newAggregator(cfg *config.Config, root string, logger logging.Logger) *aggregator.Aggregator {
	return aggregator.New(aggregator.Options{
		Root:        root,
		Concurrency: cfg.Aggregate.Concurrency,
		MaxFileSize: cfg.Aggregate.MaxFileSize,
		Skip:        cfg.Aggregate.Skip,
	}, logger)
}
