package bridge

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/gateway"
)

func newController(t *testing.T, template TemplateSource) (*Controller, *fakeFactory, Dependencies) {
	t.Helper()
	deps, _, _ := newDeps(t.TempDir())
	factory := &fakeFactory{}
	c := NewController(ControllerOptions{
		Factory:   factory,
		Gateway:   gateway.New(gateway.Options{}, nil),
		Template:  template,
		AssetsDir: "assets",
		Deps:      deps,
	})
	return c, factory, deps
}

func TestControllerShowIsIdempotent(t *testing.T) {
	c, factory, _ := newController(t, nil)

	first, err := c.Show(context.Background())
	require.NoError(t, err)
	second, err := c.Show(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	require.Len(t, factory.created, 1)
	panel := factory.created[0]
	assert.Equal(t, 2, panel.reveals)
	assert.Contains(t, panel.html, "http://127.0.0.1:7070/assets/panel.js")
	assert.Contains(t, panel.policy, "script-src 'nonce-")
	assert.False(t, strings.Contains(panel.policy, "unsafe-inline"))
}

func TestControllerSlotClearedOnDispose(t *testing.T) {
	c, factory, _ := newController(t, nil)

	_, err := c.Show(context.Background())
	require.NoError(t, err)
	b := c.Current()
	require.NotNil(t, b)

	c.Close()
	assert.Nil(t, c.Current())
	assert.Equal(t, StateIdle, b.State())

	_, err = c.Show(context.Background())
	require.NoError(t, err)
	assert.Len(t, factory.created, 2)
	assert.NotEqual(t, factory.created[0].policy, factory.created[1].policy, "nonce is regenerated")
}

func TestControllerTemplateErrorAbortsCreation(t *testing.T) {
	c, factory, deps := newController(t, func(context.Context) (string, error) {
		return "<html><head></head><body></body></html>", nil
	})

	_, err := c.Show(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindTemplate))
	assert.Nil(t, c.Current())
	require.Len(t, factory.created, 1)
	assert.True(t, factory.created[0].disposed)

	rec := deps.Notifier.(interface{ Errors() []string })
	assert.Len(t, rec.Errors(), 1)
}

func TestControllerFactoryError(t *testing.T) {
	c, factory, _ := newController(t, nil)
	factory.err = fmt.Errorf("server is shutting down")

	_, err := c.Show(context.Background())
	assert.ErrorContains(t, err, "shutting down")
	assert.Nil(t, c.Current())
}
