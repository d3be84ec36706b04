package bridge

import (
	"context"

	"github.com/conneroisu/visualtree/internal/aggregator"
	"github.com/conneroisu/visualtree/internal/scanner"
)

// Panel is a host surface showing one page that exchanges messages with
// the bridge.
type Panel interface {
	// ID identifies the panel within its host.
	ID() string
	// PostMessage delivers an outbound message to the page.
	PostMessage(ctx context.Context, msg []byte) error
	// OnDidReceiveMessage registers the handler for inbound messages.
	OnDidReceiveMessage(fn func(ctx context.Context, msg []byte))
	// OnDidDispose registers a callback run once when the panel goes away.
	// Several callbacks may be registered.
	OnDidDispose(fn func())
	// SetHTML replaces the page served by the panel.
	SetHTML(html, policy string) error
	// Reveal brings the panel to the user's attention.
	Reveal(ctx context.Context)
	// AsWebviewURI maps a local resource path to a URI the page may load.
	AsWebviewURI(localPath string) (string, error)
	// CSPSource is the policy source token for the panel's own resources.
	CSPSource() string
	// Dispose closes the panel.
	Dispose()
}

// PanelFactory creates panels.
type PanelFactory interface {
	CreatePanel(ctx context.Context) (Panel, error)
}

// TreeScanner builds a workspace tree.
type TreeScanner interface {
	Scan(ctx context.Context, root string) (*scanner.TreeNode, error)
}

// ContentAggregator builds a document from selected paths.
type ContentAggregator interface {
	Aggregate(ctx context.Context, paths []string) (*aggregator.Document, error)
}

// DocumentViewer opens a read-only view of a document.
type DocumentViewer interface {
	OpenDocument(ctx context.Context, content, language string) (string, error)
}

// Notifier shows messages to the user.
type Notifier interface {
	ShowError(ctx context.Context, message string)
	ShowInfo(ctx context.Context, message string)
}
