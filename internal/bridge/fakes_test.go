package bridge

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/conneroisu/visualtree/internal/aggregator"
	"github.com/conneroisu/visualtree/internal/protocol"
)

// fakePanel records everything the bridge does to it.
type fakePanel struct {
	id string

	mu        sync.Mutex
	posted    [][]byte
	html      string
	policy    string
	reveals   int
	disposed  bool
	onMessage func(ctx context.Context, msg []byte)
	onDispose []func()
	postErr   error
}

func newFakePanel(id string) *fakePanel {
	return &fakePanel{id: id}
}

func (p *fakePanel) ID() string { return p.id }

func (p *fakePanel) PostMessage(_ context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.postErr != nil {
		return p.postErr
	}
	p.posted = append(p.posted, msg)
	return nil
}

func (p *fakePanel) OnDidReceiveMessage(fn func(ctx context.Context, msg []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMessage = fn
}

func (p *fakePanel) OnDidDispose(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDispose = append(p.onDispose, fn)
}

func (p *fakePanel) SetHTML(html, policy string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html, p.policy = html, policy
	return nil
}

func (p *fakePanel) Reveal(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reveals++
}

func (p *fakePanel) AsWebviewURI(localPath string) (string, error) {
	return "http://127.0.0.1:7070/assets", nil
}

func (p *fakePanel) CSPSource() string { return "http://127.0.0.1:7070" }

func (p *fakePanel) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	callbacks := p.onDispose
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// send simulates the page posting a message.
func (p *fakePanel) send(ctx context.Context, msg string) {
	p.mu.Lock()
	fn := p.onMessage
	p.mu.Unlock()
	fn(ctx, []byte(msg))
}

func (p *fakePanel) responses() []protocol.Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Response, 0, len(p.posted))
	for _, raw := range p.posted {
		resp, err := protocol.DecodeResponse(raw)
		if err != nil {
			panic(err)
		}
		out = append(out, resp)
	}
	return out
}

type fakeFactory struct {
	mu      sync.Mutex
	created []*fakePanel
	err     error
}

func (f *fakeFactory) CreatePanel(context.Context) (Panel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := newFakePanel(fmt.Sprintf("panel-%d", len(f.created)+1))
	f.created = append(f.created, p)
	return p, nil
}

type openedDoc struct {
	content  string
	language string
}

type fakeViewer struct {
	mu     sync.Mutex
	opened []openedDoc
}

func (v *fakeViewer) OpenDocument(_ context.Context, content, language string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.opened = append(v.opened, openedDoc{content, language})
	return filepath.Join("out", fmt.Sprintf("doc-%d.md", len(v.opened))), nil
}

func (v *fakeViewer) docs() []openedDoc {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]openedDoc(nil), v.opened...)
}

// blockingAggregator waits for release before answering.
type blockingAggregator struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func (a *blockingAggregator) Aggregate(ctx context.Context, paths []string) (*aggregator.Document, error) {
	close(a.started)
	<-a.release
	if a.err != nil {
		return nil, a.err
	}
	return &aggregator.Document{Sections: []aggregator.Section{{Title: "x", Language: "plaintext", Body: "x"}}}, nil
}

type panickingAggregator struct{}

func (panickingAggregator) Aggregate(context.Context, []string) (*aggregator.Document, error) {
	panic("boom")
}
