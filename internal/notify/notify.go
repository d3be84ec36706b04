// Package notify implements the user-facing notification surface.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/conneroisu/visualtree/internal/logging"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// String returns the label printed before a notification.
func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notifier shows messages to the user.
type Notifier interface {
	ShowError(ctx context.Context, message string)
	ShowInfo(ctx context.Context, message string)
}

// Terminal prints coloured notifications, one per line.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	colors map[Level]*color.Color
	logger logging.Logger
}

// NewTerminal creates a notifier writing to out. Notifications are also
// logged when logger is not nil.
func NewTerminal(out io.Writer, logger logging.Logger) *Terminal {
	return &Terminal{
		out: out,
		colors: map[Level]*color.Color{
			LevelInfo:  color.New(color.FgCyan),
			LevelError: color.New(color.FgRed, color.Bold),
		},
		logger: logger,
	}
}

// DisableColor switches to plain output.
func (t *Terminal) DisableColor() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.colors {
		c.DisableColor()
	}
}

// ShowError prints an error notification.
func (t *Terminal) ShowError(ctx context.Context, message string) {
	t.show(ctx, LevelError, message)
	if t.logger != nil {
		t.logger.Debug(ctx, "Error notification shown", "message", message)
	}
}

// ShowInfo prints an informational notification.
func (t *Terminal) ShowInfo(ctx context.Context, message string) {
	t.show(ctx, LevelInfo, message)
}

func (t *Terminal) show(_ context.Context, level Level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stamp := time.Now().Format("15:04:05")
	label := t.colors[level].Sprintf("[%s]", level)
	fmt.Fprintf(t.out, "%s %s %s\n", stamp, label, message)
}

// Notification is one recorded message.
type Notification struct {
	Level   Level
	Message string
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ShowError records an error notification.
func (r *Recorder) ShowError(_ context.Context, message string) {
	r.add(LevelError, message)
}

// ShowInfo records an informational notification.
func (r *Recorder) ShowInfo(_ context.Context, message string) {
	r.add(LevelInfo, message)
}

func (r *Recorder) add(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Level: level, Message: message})
}

// All returns a copy of every recorded notification.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Errors returns the recorded error messages.
func (r *Recorder) Errors() []string {
	return r.messages(LevelError)
}

// Infos returns the recorded informational messages.
func (r *Recorder) Infos() []string {
	return r.messages(LevelInfo)
}

func (r *Recorder) messages(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.items {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}

// Multi fans notifications out to several notifiers.
type Multi []Notifier

// ShowError forwards to every notifier.
func (m Multi) ShowError(ctx context.Context, message string) {
	for _, n := range m {
		n.ShowError(ctx, message)
	}
}

// ShowInfo forwards to every notifier.
func (m Multi) ShowInfo(ctx context.Context, message string) {
	for _, n := range m {
		n.ShowInfo(ctx, message)
	}
}
