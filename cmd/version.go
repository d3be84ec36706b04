package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/visualtree/internal/version"
)

var versionFormat = newChoiceValue("text", "text", "json")

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for visualtree.

Examples:
  visualtree version              # Show short version
  visualtree version --detailed   # Show detailed version info
  visualtree version --format json`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().VarP(versionFormat, "format", "f", "output format")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if versionFormat.String() == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(version.GetBuildInfo())
	}

	if detailed, _ := cmd.Flags().GetBool("detailed"); detailed {
		_, err := fmt.Fprintln(out, version.GetDetailedVersion())
		return err
	}

	line := "visualtree " + version.GetShortVersion()
	if !version.IsRelease() {
		line += " (development build)"
	}
	_, err := fmt.Fprintln(out, line)
	return err
}
