package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, nil)
	term.DisableColor()

	term.ShowError(context.Background(), "no workspace folder is open")
	term.ShowInfo(context.Background(), "document ready")

	out := buf.String()
	assert.Contains(t, out, "[error] no workspace folder is open\n")
	assert.Contains(t, out, "[info] document ready\n")
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	rec.ShowError(context.Background(), "a")
	rec.ShowInfo(context.Background(), "b")
	rec.ShowError(context.Background(), "c")

	assert.Equal(t, []string{"a", "c"}, rec.Errors())
	assert.Equal(t, []string{"b"}, rec.Infos())
	assert.Len(t, rec.All(), 3)
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, b}
	m.ShowError(context.Background(), "x")
	m.ShowInfo(context.Background(), "y")

	assert.Equal(t, []string{"x"}, a.Errors())
	assert.Equal(t, []string{"y"}, b.Infos())
}
