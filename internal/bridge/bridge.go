// Package bridge connects a panel page to the scanner and the aggregator.
//
// A Bridge is bound to one panel. It is Active from creation until the
// panel is disposed, then Idle for good. Inbound messages are decoded into
// the closed set of protocol requests and dispatched; every failure,
// including a panic inside a handler, ends as a user notification. Work
// still running when the panel is disposed is dropped without delivery.
//
// A Controller owns the single panel slot: Show creates the panel on first
// use and reveals it afterwards.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/visualtree/internal/aggregator"
	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/logging"
	"github.com/conneroisu/visualtree/internal/protocol"
)

// State is the lifecycle state of a bridge.
type State int

const (
	StateIdle State = iota
	StateActive
)

// String returns the state name.
func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// Dependencies are the collaborators a bridge dispatches to.
type Dependencies struct {
	// Root is the workspace root. Empty means no workspace is open.
	Root       string
	Scanner    TreeScanner
	Aggregator ContentAggregator
	Viewer     DocumentViewer
	Notifier   Notifier
	// Format is the rendering used for opened documents.
	Format aggregator.Format
	Logger logging.Logger
}

// Bridge dispatches messages for one panel.
type Bridge struct {
	panel  Panel
	deps   Dependencies
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	state State
}

// New binds a bridge to panel and subscribes to its events.
func New(panel Panel, deps Dependencies) *Bridge {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Format == "" {
		deps.Format = aggregator.FormatMarkdown
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		panel:  panel,
		deps:   deps,
		logger: deps.Logger.WithComponent("bridge").With("panel", panel.ID()),
		ctx:    ctx,
		cancel: cancel,
		state:  StateActive,
	}

	panel.OnDidReceiveMessage(b.Handle)
	panel.OnDidDispose(b.deactivate)
	return b
}

// Panel returns the bound panel.
func (b *Bridge) Panel() Panel {
	return b.panel
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Done is closed when the bridge becomes Idle.
func (b *Bridge) Done() <-chan struct{} {
	return b.ctx.Done()
}

func (b *Bridge) deactivate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateIdle {
		return
	}
	b.state = StateIdle
	b.cancel()
	b.logger.Debug(context.Background(), "Panel disposed")
}

// Handle decodes and dispatches one inbound message. It never panics and
// never returns an error; failures become notifications or log entries.
func (b *Bridge) Handle(ctx context.Context, raw []byte) {
	if b.State() != StateActive {
		return
	}

	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		b.logger.Warn(ctx, err, "Ignoring malformed message", "bytes", len(raw))
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(b.ctx, cancel)
	defer stop()

	if err := b.dispatchSafely(ctx, req); err != nil {
		if b.abandoned(ctx, err) {
			b.logger.Debug(ctx, "Dropped result for disposed panel", "command", string(req.Command()))
			return
		}
		b.logger.Error(ctx, err, "Request failed", "command", string(req.Command()))
		b.notifyError(ctx, userMessage(err))
	}
}

func (b *Bridge) dispatchSafely(ctx context.Context, req protocol.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewInternalError(errors.CodePanic,
				fmt.Sprintf("internal error while handling %s", req.Command()),
				fmt.Errorf("%v", r))
		}
	}()
	return b.Dispatch(ctx, req)
}

// Dispatch runs the handler for req.
func (b *Bridge) Dispatch(ctx context.Context, req protocol.Request) error {
	switch r := req.(type) {
	case protocol.ListFilesRequest:
		return b.listFiles(ctx)
	case protocol.ShowSelectionRequest:
		return b.showSelection(ctx, r.Paths)
	case protocol.ErrorReport:
		b.notifyError(ctx, r.Message)
		return nil
	case protocol.UnknownRequest:
		b.logger.Debug(ctx, "Ignoring unknown command", "command", r.Kind)
		return nil
	default:
		return errors.NewProtocolError(errors.CodeMalformedMessage, fmt.Sprintf("unhandled request %T", req), nil)
	}
}

func (b *Bridge) listFiles(ctx context.Context) error {
	if b.deps.Root == "" {
		if err := b.post(ctx, protocol.FileListResponse{}); err != nil {
			return err
		}
		return errors.NewNoWorkspaceError("list files")
	}

	tree, err := b.deps.Scanner.Scan(ctx, b.deps.Root)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if postErr := b.post(ctx, protocol.FileListResponse{}); postErr != nil {
			b.logger.Warn(ctx, postErr, "Failed to post empty tree")
		}
		return err
	}

	b.logger.Info(ctx, "Workspace scanned", "root", b.deps.Root, "files", tree.CountFiles())
	return b.post(ctx, protocol.FileListResponse{Files: tree})
}

func (b *Bridge) showSelection(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		b.notifyInfo(ctx, "No files selected.")
		return nil
	}

	doc, err := b.deps.Aggregator.Aggregate(ctx, paths)
	if err != nil {
		return err
	}
	if err := b.live(ctx); err != nil {
		return err
	}
	if len(doc.Sections) == 0 {
		b.notifyInfo(ctx, "No files selected.")
		return nil
	}

	location, err := b.deps.Viewer.OpenDocument(ctx, doc.Render(b.deps.Format), b.deps.Format.Language())
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}

	msg := fmt.Sprintf("Combined %d file(s) into %s", len(doc.Sections), location)
	if failed := doc.Failed(); failed > 0 {
		msg += fmt.Sprintf(" (%d could not be read)", failed)
	}
	b.notifyInfo(ctx, msg)
	return nil
}

// post delivers resp unless the panel has gone away.
func (b *Bridge) post(ctx context.Context, resp protocol.Response) error {
	if err := b.live(ctx); err != nil {
		return err
	}
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		return errors.NewInternalError(errors.CodeInternal, "failed to encode response", err)
	}
	return b.panel.PostMessage(ctx, data)
}

func (b *Bridge) live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.State() != StateActive {
		return context.Canceled
	}
	return nil
}

// abandoned reports whether a failed request belongs to a panel that is
// gone. Disposal cancels ctx asynchronously, so the state is checked too.
func (b *Bridge) abandoned(ctx context.Context, err error) bool {
	return b.State() != StateActive || ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func (b *Bridge) notifyError(ctx context.Context, message string) {
	b.notify(func(n Notifier) { n.ShowError(ctx, message) })
}

func (b *Bridge) notifyInfo(ctx context.Context, message string) {
	b.notify(func(n Notifier) { n.ShowInfo(ctx, message) })
}

// notify holds the read lock so a notification never follows deactivate.
func (b *Bridge) notify(show func(Notifier)) {
	if b.deps.Notifier == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state != StateActive {
		return
	}
	show(b.deps.Notifier)
}

// userMessage strips error codes from notifications.
func userMessage(err error) string {
	var e *errors.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Path != "" {
		return e.Path + ": " + e.Reason()
	}
	return e.Reason()
}
