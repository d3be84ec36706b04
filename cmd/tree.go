package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/scanner"
)

var treeFormat = newChoiceValue("text", "text", "json", "yaml")

var treeCmd = &cobra.Command{
	Use:   "tree [root]",
	Short: "Print the workspace tree",
	Long: `Scan the workspace and print its tree.

Examples:
  visualtree tree                        # Tree of the current directory
  visualtree tree ./src --format json    # JSON, as sent to the panel
  visualtree tree --include '*.go' --gitignore`,
	Args: cobra.MaximumNArgs(1),
	PreRun: func(cmd *cobra.Command, args []string) {
		bindWorkspaceFlags(cmd.Flags())
	},
	RunE: runTree,
}

func init() {
	rootCmd.AddCommand(treeCmd)

	treeCmd.Flags().VarP(treeFormat, "format", "f", "output format")
	addWorkspaceFlags(treeCmd.Flags())
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, logger, cleanup, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 1 {
		cfg.Workspace.Root = args[0]
	}
	root, err := workspaceRoot(cfg)
	if err != nil {
		return err
	}
	if root == "" {
		return errors.NewNoWorkspaceError("print the tree")
	}

	tree, err := newScanner(cfg, logger).Scan(cmd.Context(), root)
	if err != nil {
		return err
	}

	return writeTree(cmd.OutOrStdout(), tree, treeFormat.String())
}

func writeTree(w io.Writer, tree *scanner.TreeNode, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		return scanner.WriteText(w, tree)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
