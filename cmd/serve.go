package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/visualtree/internal/aggregator"
	"github.com/conneroisu/visualtree/internal/bridge"
	"github.com/conneroisu/visualtree/internal/config"
	"github.com/conneroisu/visualtree/internal/gateway"
	"github.com/conneroisu/visualtree/internal/logging"
	"github.com/conneroisu/visualtree/internal/notify"
	"github.com/conneroisu/visualtree/internal/server"
	"github.com/conneroisu/visualtree/internal/viewer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the workspace panel in the browser",
	Long: `Start the panel host and open the workspace panel in the browser.

The panel lists the workspace tree with a checkbox per file. "Show
selected" combines the checked files into one document, written to the
output directory and served at /documents/{id}.

Examples:
  visualtree serve                       # Panel for the current directory
  visualtree serve --root ../project     # Panel for another directory
  visualtree serve --port 0 --no-open    # Pick a free port, print the URL`,
	PreRun: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		mustBind("server.port", flags.Lookup("port"))
		mustBind("server.host", flags.Lookup("host"))
		mustBind("server.no-open", flags.Lookup("no-open"))
		mustBind("panel.template", flags.Lookup("template"))
		mustBind("panel.assets_dir", flags.Lookup("assets-dir"))
		mustBind("aggregate.format", flags.Lookup("format"))
		mustBind("output.dir", flags.Lookup("output-dir"))
		bindWorkspaceFlags(flags)
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.IntP("port", "p", 7070, "Port to serve on (0 picks a free port)")
	flags.String("host", "localhost", "Host to bind to")
	flags.Bool("no-open", false, "Don't open browser automatically")
	flags.String("template", "", "custom panel template")
	flags.String("assets-dir", "", "serve panel assets from this directory")
	flags.Var(newChoiceValue("markdown", "markdown", "text"), "format", "format of opened documents")
	flags.String("output-dir", "", "directory receiving opened documents")
	addWorkspaceFlags(flags)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, cleanup, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := workspaceRoot(cfg)
	if err != nil {
		return err
	}
	if root == "" {
		logger.Warn(ctx, nil, "No workspace root configured; the panel will show an empty tree")
	}

	format, err := aggregator.ParseFormat(cfg.Aggregate.Format)
	if err != nil {
		return err
	}

	notifier := notify.NewTerminal(cmd.ErrOrStderr(), logger)

	store, err := viewer.NewStore(cfg.Output.CacheSize, logger)
	if err != nil {
		return err
	}
	outputDir := cfg.Output.Dir
	if outputDir == "" {
		outputDir = filepath.Join(os.TempDir(), "visualtree")
	}

	srv := server.New(cfg, server.Options{Store: store, Logger: logger})
	if err := srv.Listen(); err != nil {
		return err
	}
	store.OnOpen(srv.OpenBrowser)

	controller := bridge.NewController(bridge.ControllerOptions{
		Factory: srv,
		Gateway: gateway.New(gateway.Options{
			ConnectSources:    []string{srv.WebSocketSource()},
			AllowInlineStyles: cfg.Panel.AllowInlineStyles,
			ReportURI:         srv.BaseURL() + "/csp-report",
		}, logger),
		Template:  templateSource(cfg),
		AssetsDir: cfg.Panel.AssetsDir,
		Deps: bridge.Dependencies{
			Root:       root,
			Scanner:    newScanner(cfg, logger),
			Aggregator: newAggregator(cfg, root, logger),
			Viewer:     viewer.Multi{viewer.NewFileViewer(outputDir, logger), store},
			Notifier:   notifier,
			Format:     format,
			Logger:     logger,
		},
	})
	srv.SetLauncher(controller)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	fmt.Fprintf(cmd.ErrOrStderr(), "visualtree panel for %s at %s\n", displayRoot(root), srv.BaseURL())
	if _, err := controller.Show(ctx); err != nil {
		// Already reported; the index page retries.
		logger.Debug(ctx, "Initial panel failed", "error", err.Error())
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	return shutdown(controller, srv, logger)
}

func shutdown(controller *bridge.Controller, srv *server.PanelServer, logger logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	controller.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error(ctx, err, "Server shutdown failed")
		return err
	}
	return nil
}

// templateSource reads the configured template on every panel creation,
// so edits show up on the next panel.
func templateSource(cfg *config.Config) bridge.TemplateSource {
	if cfg.Panel.Template == "" {
		return func(ctx context.Context) (string, error) {
			return gateway.DefaultTemplate(ctx, cfg.Panel.Title)
		}
	}

	path := cfg.Panel.Template
	return func(ctx context.Context) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read panel template: %w", err)
		}
		return string(data), nil
	}
}

func displayRoot(root string) string {
	if root == "" {
		return "(no workspace)"
	}
	return root
}
