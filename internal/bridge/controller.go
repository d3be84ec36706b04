package bridge

import (
	"context"
	"sync"

	"github.com/conneroisu/visualtree/internal/gateway"
	"github.com/conneroisu/visualtree/internal/logging"
)

// TemplateSource returns the panel template.
type TemplateSource func(ctx context.Context) (string, error)

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Factory  PanelFactory
	Gateway  *gateway.Gateway
	Template TemplateSource
	// AssetsDir is the local directory holding the page's resources.
	AssetsDir string
	Deps      Dependencies
}

// Controller owns the single panel slot.
type Controller struct {
	opts   ControllerOptions
	logger logging.Logger

	mu      sync.Mutex
	current *Bridge
}

// NewController creates a controller with an empty slot.
func NewController(opts ControllerOptions) *Controller {
	logger := opts.Deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Template == nil {
		opts.Template = func(ctx context.Context) (string, error) {
			return gateway.DefaultTemplate(ctx, "")
		}
	}
	return &Controller{opts: opts, logger: logger.WithComponent("bridge")}
}

// Show returns the open panel, revealing it, or creates one. When the
// template cannot be prepared the new panel is disposed, the user is
// notified, and the slot stays empty.
func (c *Controller) Show(ctx context.Context) (Panel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.Panel().Reveal(ctx)
		return c.current.Panel(), nil
	}

	panel, err := c.opts.Factory.CreatePanel(ctx)
	if err != nil {
		c.fail(ctx, err, "Panel creation failed")
		return nil, err
	}

	if err := c.render(ctx, panel); err != nil {
		panel.Dispose()
		c.fail(ctx, err, "Panel template rejected")
		return nil, err
	}

	b := New(panel, c.opts.Deps)
	panel.OnDidDispose(func() { c.release(b) })
	c.current = b

	c.logger.Info(ctx, "Panel opened", "panel", panel.ID())
	panel.Reveal(ctx)
	return panel, nil
}

func (c *Controller) render(ctx context.Context, panel Panel) error {
	template, err := c.opts.Template(ctx)
	if err != nil {
		return err
	}
	base, err := panel.AsWebviewURI(c.opts.AssetsDir)
	if err != nil {
		return err
	}
	page, err := c.opts.Gateway.Prepare(template, base, panel.CSPSource())
	if err != nil {
		return err
	}
	return panel.SetHTML(page.HTML, page.Policy)
}

func (c *Controller) fail(ctx context.Context, err error, msg string) {
	c.logger.Error(ctx, err, msg)
	if c.opts.Deps.Notifier != nil {
		c.opts.Deps.Notifier.ShowError(ctx, userMessage(err))
	}
}

// release empties the slot if b still occupies it.
func (c *Controller) release(b *Bridge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == b {
		c.current = nil
	}
}

// Current returns the active bridge, or nil.
func (c *Controller) Current() *Bridge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close disposes the open panel, if any.
func (c *Controller) Close() {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current != nil {
		current.Panel().Dispose()
	}
}
