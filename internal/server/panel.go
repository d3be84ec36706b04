package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/conneroisu/visualtree/internal/bridge"
	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/logging"
	"github.com/conneroisu/visualtree/internal/validation"
	"github.com/conneroisu/visualtree/internal/websocket"
)

// ErrNotConnected is returned by PostMessage while no page is attached.
var ErrNotConnected = stderrors.New("panel has no connected page")

// Inbound messages allowed per connection and window.
const (
	messageLimit  = 50
	messageWindow = time.Second
)

// panel is one hosted page and its current connection.
type panel struct {
	id     string
	server *PanelServer
	logger logging.Logger

	mu        sync.Mutex
	html      string
	policy    string
	conn      *websocket.Conn
	onMessage func(ctx context.Context, msg []byte)
	onDispose []func()
	grace     *time.Timer
	disposed  bool
}

// CreatePanel registers a new panel. Its page is empty until SetHTML.
func (s *PanelServer) CreatePanel(ctx context.Context) (bridge.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isShutdown {
		return nil, errors.NewInternalError(errors.CodeInternal, "server is shutting down", nil)
	}

	p := &panel{
		id:     uuid.NewString(),
		server: s,
	}
	p.logger = s.logger.With("panel", p.id)
	s.panels[p.id] = p

	s.logger.Debug(ctx, "Panel created", "panel", p.id)
	return p, nil
}

func (s *PanelServer) lookup(id string) (*panel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.panels[id]
	return p, ok
}

func (s *PanelServer) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.panels, id)
}

func (p *panel) ID() string {
	return p.id
}

func (p *panel) URL() string {
	return p.server.BaseURL() + "/panel/" + p.id
}

func (p *panel) PostMessage(_ context.Context, msg []byte) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	return conn.Send(msg)
}

func (p *panel) OnDidReceiveMessage(fn func(ctx context.Context, msg []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMessage = fn
}

func (p *panel) OnDidDispose(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDispose = append(p.onDispose, fn)
}

func (p *panel) SetHTML(html, policy string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return errors.NewInternalError(errors.CodeInternal, "panel is disposed", nil)
	}
	p.html, p.policy = html, policy
	return nil
}

func (p *panel) page() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, p.policy
}

// Reveal opens the panel page unless a page is already attached or the
// request came from the browser itself.
func (p *panel) Reveal(ctx context.Context) {
	p.mu.Lock()
	connected := p.conn != nil
	p.mu.Unlock()

	if connected || fromBrowser(ctx) {
		return
	}
	p.server.OpenBrowser(ctx, p.URL())
}

// AsWebviewURI maps a path under the configured assets directory to its
// served URL. The empty path names the assets root.
func (p *panel) AsWebviewURI(localPath string) (string, error) {
	base := p.server.BaseURL() + "/assets"
	root := p.server.config.Panel.AssetsDir

	if localPath == "" || localPath == root {
		return base, nil
	}
	if root == "" {
		return "", errors.NewSecurityError(errors.CodePathTraversal,
			"no assets directory is configured for "+localPath)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return base, nil
	}
	if err := validation.ValidateRelativePath(rel); err != nil {
		return "", errors.NewSecurityError(errors.CodePathTraversal, err.Error())
	}
	return base + "/" + filepath.ToSlash(rel), nil
}

func (p *panel) CSPSource() string {
	return p.server.BaseURL()
}

// Dispose closes the connection, unregisters the panel and runs the
// dispose callbacks once.
func (p *panel) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	conn := p.conn
	p.conn = nil
	if p.grace != nil {
		p.grace.Stop()
	}
	callbacks := p.onDispose
	p.onDispose = nil
	p.mu.Unlock()

	p.server.remove(p.id)
	if conn != nil {
		conn.Close(cws.StatusGoingAway, "panel disposed")
	}
	p.logger.Debug(context.Background(), "Panel disposed")

	for _, fn := range callbacks {
		fn()
	}
}

// attach makes conn the panel's connection, replacing any earlier one.
func (p *panel) attach(conn *websocket.Conn) bool {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return false
	}
	previous := p.conn
	p.conn = conn
	if p.grace != nil {
		p.grace.Stop()
		p.grace = nil
	}
	p.mu.Unlock()

	if previous != nil {
		previous.Close(cws.StatusGoingAway, "replaced by a newer page")
	}
	return true
}

// detach forgets conn and starts the dispose grace period.
func (p *panel) detach(conn *websocket.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed || p.conn != conn {
		return
	}
	p.conn = nil

	grace := p.server.config.Server.DisposeGrace
	p.grace = time.AfterFunc(grace, p.Dispose)
}

func (p *panel) receive(ctx context.Context, msg []byte) {
	p.mu.Lock()
	fn := p.onMessage
	p.mu.Unlock()

	if fn != nil {
		fn(ctx, msg)
	}
}

func (s *PanelServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Panel not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, websocket.Options{
		AllowedOrigins: s.AllowedOrigins(),
		MessageLimit:   messageLimit,
		MessageWindow:  messageWindow,
		Logger:         s.logger,
	})
	if err != nil {
		return
	}

	if !p.attach(conn) {
		conn.Close(cws.StatusGoingAway, "panel disposed")
		return
	}
	p.logger.Info(r.Context(), "Page connected", "remote", conn.RemoteAddr())

	// Serve outlives the request context once the connection is hijacked.
	if err := conn.Serve(s.ctx, p.receive); err != nil {
		p.logger.Warn(s.ctx, err, "Page connection failed")
	}

	p.detach(conn)
	p.logger.Debug(s.ctx, "Page disconnected")
}
