// Package server hosts visualtree panels over HTTP.
//
// Each panel is a page at /panel/{id} whose duplex message channel is a
// WebSocket at /panel/{id}/ws. Panel assets are served from /assets and
// documents opened by the in-memory viewer from /documents/{id}. A panel
// whose page has gone away for longer than the dispose grace period is
// disposed.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/visualtree/internal/bridge"
	"github.com/conneroisu/visualtree/internal/config"
	"github.com/conneroisu/visualtree/internal/gateway"
	"github.com/conneroisu/visualtree/internal/logging"
	"github.com/conneroisu/visualtree/internal/security"
	"github.com/conneroisu/visualtree/internal/validation"
	"github.com/conneroisu/visualtree/internal/version"
	"github.com/conneroisu/visualtree/internal/viewer"
)

// Launcher shows the panel for requests to the index page.
type Launcher interface {
	Show(ctx context.Context) (bridge.Panel, error)
}

// Options are the collaborators of a PanelServer.
type Options struct {
	// Store serves documents at /documents/{id}. Optional.
	Store *viewer.Store
	// Assets overrides the served panel assets. Nil serves
	// panel.assets_dir, or the built-in set when that is empty.
	Assets fs.FS
	Logger logging.Logger
}

// PanelServer is the HTTP host of panels. It implements
// bridge.PanelFactory.
type PanelServer struct {
	config *config.Config
	store  *viewer.Store
	assets fs.FS
	logger logging.Logger
	router chi.Router

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.RWMutex
	panels         map[string]*panel
	launcher       Launcher
	listener       net.Listener
	httpServer     *http.Server
	baseURL        string
	allowedOrigins []string
	isShutdown     bool

	openURL      func(url string) error
	shutdownOnce sync.Once
}

// New creates a panel server. Nothing listens until Listen or Start.
func New(cfg *config.Config, opts Options) *PanelServer {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	assets := opts.Assets
	if assets == nil {
		if cfg.Panel.AssetsDir != "" {
			assets = os.DirFS(cfg.Panel.AssetsDir)
		} else {
			assets = gateway.Assets()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &PanelServer{
		config: cfg,
		store:  opts.Store,
		assets: assets,
		logger: logger.WithComponent("server"),
		ctx:    ctx,
		cancel: cancel,
		panels: make(map[string]*panel),
	}
	s.openURL = openBrowser
	s.setAddress(net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
	s.router = s.routes()
	return s
}

func (s *PanelServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	// Browsers post reports without an Origin header.
	r.Post("/csp-report", security.CSPViolationHandler(s.logger))

	r.Group(func(r chi.Router) {
		r.Use(s.securityHeaders)
		r.Get("/", s.handleIndex)
		r.Get("/health", s.handleHealth)
		r.Get("/panel/{id}", s.handlePanel)
		r.Get("/panel/{id}/ws", s.handleWebSocket)
		r.Get("/documents/{id}", s.handleDocument)
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(s.assets))))
	})

	return r
}

// securityHeaders applies the security middleware with the origins of
// the current binding, which is only known after Listen.
func (s *PanelServer) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := security.DefaultConfig(s.AllowedOrigins())
		cfg.Logger = s.logger
		security.Middleware(cfg)(next).ServeHTTP(w, r)
	})
}

// logRequests logs each request with its duration.
func (s *PanelServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// Handler returns the HTTP handler of the server.
func (s *PanelServer) Handler() http.Handler {
	return s.router
}

// SetLauncher sets what the index page shows.
func (s *PanelServer) SetLauncher(l Launcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launcher = l
}

// Listen binds the configured address. With port 0 the system picks a
// port; BaseURL reflects the bound one.
func (s *PanelServer) Listen() error {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	_, port, _ := net.SplitHostPort(ln.Addr().String())

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.setAddress(net.JoinHostPort(s.config.Server.Host, port))
	s.logger.Info(context.Background(), "Listening", "url", s.BaseURL())
	return nil
}

// Serve serves on the bound listener until Shutdown.
func (s *PanelServer) Serve() error {
	s.mu.RLock()
	server, ln := s.httpServer, s.listener
	s.mu.RUnlock()
	if server == nil {
		return fmt.Errorf("server is not listening")
	}

	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Start listens and serves until ctx is done.
func (s *PanelServer) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Shutdown failed")
		}
	})
	defer stop()

	return s.Serve()
}

// setAddress derives the base URL and the allowed origins from the bound
// host and port.
func (s *PanelServer) setAddress(hostport string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	origins := []string{
		net.JoinHostPort(host, port),
		net.JoinHostPort("localhost", port),
		net.JoinHostPort("127.0.0.1", port),
	}
	origins = append(origins, s.config.Server.AllowedOrigins...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = "http://" + net.JoinHostPort(host, port)
	s.allowedOrigins = origins
	if s.store != nil {
		s.store.SetBaseURL(s.baseURL)
	}
}

// BaseURL returns the URL the server is reachable at.
func (s *PanelServer) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// WebSocketSource is the connect-src token for panel sockets.
func (s *PanelServer) WebSocketSource() string {
	return "ws://" + strings.TrimPrefix(s.BaseURL(), "http://")
}

// AllowedOrigins returns the origins accepted for sockets and
// state-changing requests.
func (s *PanelServer) AllowedOrigins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.allowedOrigins...)
}

// Panels returns the number of live panels.
func (s *PanelServer) Panels() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.panels)
}

// activity counts connected panels and reports the most recent inbound
// frame across them.
func (s *PanelServer) activity() (int, time.Time) {
	s.mu.RLock()
	panels := make([]*panel, 0, len(s.panels))
	for _, p := range s.panels {
		panels = append(panels, p)
	}
	s.mu.RUnlock()

	var (
		connected int
		last      time.Time
	)
	for _, p := range panels {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			continue
		}
		connected++
		if t := conn.LastActivity(); t.After(last) {
			last = t
		}
	}
	return connected, last
}

// OpenBrowser opens url in the system browser when the server is
// configured to.
func (s *PanelServer) OpenBrowser(ctx context.Context, url string) {
	if !s.config.Server.Open {
		s.logger.Info(ctx, "Open in your browser", "url", url)
		return
	}
	if err := s.openURL(url); err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser", "url", url)
	}
}

// Shutdown disposes every panel and stops the HTTP server.
func (s *PanelServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.mu.Lock()
		s.isShutdown = true
		panels := make([]*panel, 0, len(s.panels))
		for _, p := range s.panels {
			panels = append(panels, p)
		}
		server := s.httpServer
		s.mu.Unlock()

		for _, p := range panels {
			p.Dispose()
		}
		s.cancel()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *PanelServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	launcher := s.launcher
	s.mu.RUnlock()

	if launcher == nil {
		http.Error(w, "No panel available", http.StatusServiceUnavailable)
		return
	}

	p, err := launcher.Show(withoutBrowser(r.Context()))
	if err != nil {
		http.Error(w, "Panel could not be opened", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/panel/"+p.ID(), http.StatusSeeOther)
}

func (s *PanelServer) handlePanel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Panel not found", http.StatusNotFound)
		return
	}

	html, policy := p.page()
	if html == "" {
		http.Error(w, "Panel is not ready", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Security-Policy", policy)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(html)); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to write panel page", "panel", p.id)
	}
}

func (s *PanelServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.NotFound(w, r)
		return
	}

	doc, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(doc.Content)); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to write document", "document", doc.ID)
	}
}

// handleHealth returns the server health status for health checks
func (s *PanelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	documents := 0
	if s.store != nil {
		documents = s.store.Len()
	}

	connected, last := s.activity()
	health := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"panels":     s.Panels(),
		"connected":  connected,
		"documents":  documents,
	}
	if connected > 0 {
		health["last_activity"] = last.UTC()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

type browserKey struct{}

// withoutBrowser marks ctx as originating from a browser that is already
// showing the panel.
func withoutBrowser(ctx context.Context) context.Context {
	return context.WithValue(ctx, browserKey{}, true)
}

func fromBrowser(ctx context.Context) bool {
	v, _ := ctx.Value(browserKey{}).(bool)
	return v
}

func openBrowser(url string) error {
	// Validate URL for security before passing to system commands
	if err := validation.ValidateURL(url); err != nil {
		return fmt.Errorf("browser open refused: %w", err)
	}

	switch runtime.GOOS {
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}
