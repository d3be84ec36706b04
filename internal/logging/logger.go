// Package logging is the structured logger shared by every visualtree
// component. It wraps log/slog with an error-first call shape and can fan
// out to a rotating log file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// slogFatal sits above slog.LevelError so handlers can tell the two apart.
const slogFatal = slog.LevelError + 4

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel converts a configuration string into a LogLevel. The empty
// string means info.
func ParseLevel(s string) (LogLevel, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "":
		return LevelInfo, nil
	case "WARNING":
		return LevelWarn, nil
	}
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", strings.ToLower(s))
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelFatal:
		return slogFatal
	default:
		return slog.LevelInfo
	}
}

// Logger is the logging surface components depend on. Key/value pairs
// follow the slog convention.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Fatal(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultConfig logs text at info level to stderr.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// TreeLogger is the slog-backed Logger.
type TreeLogger struct {
	logger *slog.Logger
}

// NewLogger creates a logger from config. A nil config uses DefaultConfig.
func NewLogger(config *LoggerConfig) *TreeLogger {
	if config == nil {
		config = DefaultConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       config.Level.slogLevel(),
		AddSource:   config.AddSource,
		ReplaceAttr: renameFatal,
	}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if config.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if config.Component != "" {
		logger = logger.With("component", config.Component)
	}
	return &TreeLogger{logger: logger}
}

func renameFatal(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level >= slogFatal {
			a.Value = slog.StringValue("FATAL")
		}
	}
	return a
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *TreeLogger {
	return NewLogger(&LoggerConfig{Level: LevelFatal, Output: io.Discard})
}

func (l *TreeLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelDebug, nil, msg, fields)
}

func (l *TreeLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelInfo, nil, msg, fields)
}

// Warn logs at warning level. err may be nil.
func (l *TreeLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelWarn, err, msg, fields)
}

func (l *TreeLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelError, err, msg, fields)
}

// Fatal logs at the highest level. It does not exit; the caller decides.
func (l *TreeLogger) Fatal(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, slogFatal, err, msg, fields)
}

func (l *TreeLogger) With(fields ...interface{}) Logger {
	return &TreeLogger{logger: l.logger.With(fields...)}
}

func (l *TreeLogger) WithComponent(component string) Logger {
	return &TreeLogger{logger: l.logger.With("component", component)}
}

func (l *TreeLogger) log(ctx context.Context, level slog.Level, err error, msg string, fields []interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}

	record := slog.NewRecord(time.Now(), level, msg, 0)
	if err != nil {
		record.AddAttrs(slog.String("error", err.Error()))
	}
	record.Add(fields...)
	_ = l.logger.Handler().Handle(ctx, record)
}

// FileConfig configures the rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileLogger writes to a size-rotated log file.
type FileLogger struct {
	*TreeLogger
	writer *lumberjack.Logger
}

// NewFileLogger creates the log directory and a logger writing to a
// lumberjack file. config.Output is ignored.
func NewFileLogger(config *LoggerConfig, file FileConfig) (*FileLogger, error) {
	if file.Path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(file.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if config == nil {
		config = DefaultConfig()
	}

	writer := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   file.Compress,
	}

	fileConfig := *config
	fileConfig.Output = writer

	return &FileLogger{
		TreeLogger: NewLogger(&fileConfig),
		writer:     writer,
	}, nil
}

// Close closes the underlying log file.
func (f *FileLogger) Close() error {
	return f.writer.Close()
}

// MultiLogger sends every entry to each of its loggers.
type MultiLogger struct {
	loggers []Logger
}

func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) each(fn func(Logger)) {
	for _, l := range m.loggers {
		fn(l)
	}
}

func (m *MultiLogger) derive(fn func(Logger) Logger) Logger {
	derived := make([]Logger, len(m.loggers))
	for i, l := range m.loggers {
		derived[i] = fn(l)
	}
	return &MultiLogger{loggers: derived}
}

func (m *MultiLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	m.each(func(l Logger) { l.Debug(ctx, msg, fields...) })
}

func (m *MultiLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	m.each(func(l Logger) { l.Info(ctx, msg, fields...) })
}

func (m *MultiLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	m.each(func(l Logger) { l.Warn(ctx, err, msg, fields...) })
}

func (m *MultiLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	m.each(func(l Logger) { l.Error(ctx, err, msg, fields...) })
}

func (m *MultiLogger) Fatal(ctx context.Context, err error, msg string, fields ...interface{}) {
	m.each(func(l Logger) { l.Fatal(ctx, err, msg, fields...) })
}

func (m *MultiLogger) With(fields ...interface{}) Logger {
	return m.derive(func(l Logger) Logger { return l.With(fields...) })
}

func (m *MultiLogger) WithComponent(component string) Logger {
	return m.derive(func(l Logger) Logger { return l.WithComponent(component) })
}

// PerfLogger times one operation.
type PerfLogger struct {
	Logger
	startTime time.Time
}

// StartOperation begins timing operation.
func StartOperation(l Logger, operation string) *PerfLogger {
	return &PerfLogger{
		Logger:    l.With("operation", operation),
		startTime: time.Now(),
	}
}

// End logs the elapsed time at debug level.
func (p *PerfLogger) End(ctx context.Context, fields ...interface{}) {
	fields = append(fields, "duration_ms", time.Since(p.startTime).Milliseconds())
	p.Debug(ctx, "Operation completed", fields...)
}

// EndWithError logs the failure and the elapsed time.
func (p *PerfLogger) EndWithError(ctx context.Context, err error) {
	p.Error(ctx, err, "Operation failed", "duration_ms", time.Since(p.startTime).Milliseconds())
}
