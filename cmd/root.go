// Package cmd provides the command-line interface for visualtree.
//
// Configuration System:
//
//	Values come from these sources, highest priority first:
//	1. Command-line flags (--port, --root, ...)
//	2. VISUALTREE_<SECTION>_<OPTION> environment variables
//	3. The file named by --config or VISUALTREE_CONFIG_FILE
//	4. .visualtree.yml in the current directory
//
//	A .env file in the current directory is loaded before anything else,
//	so it can provide any of the environment variables above.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/visualtree/internal/config"
	"github.com/conneroisu/visualtree/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "visualtree",
	Short: "Browse a workspace tree and combine selected files into one document",
	Long: `visualtree shows the files of a workspace as a checkable tree in a browser
panel. Selected files are combined into a single markdown or plain text
document, one fenced section per file.

Quick Start:
  visualtree serve                 Open the panel for the current directory
  visualtree tree --format json    Print the workspace tree
  visualtree concat a.go b.go      Combine files without the panel`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		bindRootFlags()
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .visualtree.yml, can also use VISUALTREE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("root", ".", "workspace root directory")
}

// bindRootFlags binds the persistent flags. Subcommands run it before
// their own bindings.
func bindRootFlags() {
	mustBind("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBind("workspace.root", rootCmd.PersistentFlags().Lookup("root"))
}

// initConfig wires the configuration sources into the global viper
// instance.
func initConfig() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.FileName)
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and builds the logger it describes.
// The returned cleanup closes the log file, if any.
func loadConfig(stderr io.Writer) (*config.Config, logging.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, cleanup, err := newLogger(&cfg.Logging, stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, cleanup, nil
}

func newLogger(cfg *config.LoggingConfig, stderr io.Writer) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	base := &logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: stderr,
	}
	console := logging.NewLogger(base)

	if cfg.File == "" {
		return console, func() {}, nil
	}

	file, err := logging.NewFileLogger(base, logging.FileConfig{
		Path:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	cleanup := func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to close log file: %v\n", err)
		}
	}
	return logging.NewMultiLogger(console, file), cleanup, nil
}
