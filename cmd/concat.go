package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/visualtree/internal/aggregator"
)

var (
	concatFormat = newChoiceValue("", "markdown", "text")
	concatOutput string
)

var concatCmd = &cobra.Command{
	Use:   "concat <path>...",
	Short: "Combine files into one document",
	Long: `Combine the given files into one document, one section per file, in the
order given. Files that cannot be read become error sections; the rest of
the document is still produced.

Without --format, a .md output file gets markdown and any other output
file plain text. Standard output uses aggregate.format.

Examples:
  visualtree concat main.go go.mod
  visualtree concat src/*.py -o combined.md
  visualtree concat a.txt b.txt --format text`,
	RunE: runConcat,
}

func init() {
	rootCmd.AddCommand(concatCmd)

	concatCmd.Flags().VarP(concatFormat, "format", "f", "document format")
	concatCmd.Flags().StringVarP(&concatOutput, "output", "o", "", "write the document to this file instead of stdout")
}

func runConcat(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return aggregator.ErrNoSelection
	}

	cfg, logger, cleanup, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	root, err := workspaceRoot(cfg)
	if err != nil {
		return err
	}

	format, err := concatDocumentFormat(cfg.Aggregate.Format, concatFormat.String(), concatOutput)
	if err != nil {
		return err
	}

	doc, err := newAggregator(cfg, root, logger).Aggregate(cmd.Context(), args)
	if err != nil {
		return err
	}
	if len(doc.Sections) == 0 {
		return aggregator.ErrNoSelection
	}

	content := doc.Render(format)
	if concatOutput == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}

	if err := os.WriteFile(concatOutput, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", concatOutput, err)
	}

	msg := fmt.Sprintf("Combined %d file(s) into %s", len(doc.Sections), concatOutput)
	if failed := doc.Failed(); failed > 0 {
		msg += fmt.Sprintf(" (%d could not be read)", failed)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), msg)
	return nil
}

// concatDocumentFormat picks the explicit format, else the one implied by
// the output file, else the configured one.
func concatDocumentFormat(configured, explicit, output string) (aggregator.Format, error) {
	switch {
	case explicit != "":
		return aggregator.ParseFormat(explicit)
	case output != "":
		return aggregator.FormatForPath(output), nil
	default:
		return aggregator.ParseFormat(configured)
	}
}
