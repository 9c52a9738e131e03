package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maristed/tether/pkg/config"
)

// Logger provides a unified logging interface with key/value pairs
type Logger struct {
	slog *slog.Logger
}

var (
	defaultLogger *Logger
	logFile       *os.File
)

// Init initializes the default logger from the global config
func Init() error {
	if defaultLogger != nil {
		return nil // Already initialized
	}

	settings := config.Get()
	logger, file, err := New(settings.Logging.Level, settings.Logging.LogFile, settings.Logging.Preserve)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defaultLogger = logger
	logFile = file
	return nil
}

// New creates a Logger writing to the given file path. When preserve is
// false the file is truncated so each run starts with a fresh log.
func New(level, path string, preserve bool) (*Logger, *os.File, error) {
	if !filepath.IsAbs(path) {
		path = config.SettingsPath(filepath.Base(path))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if preserve {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return NewWithWriter(level, file), file, nil
}

// NewWithWriter creates a Logger over an arbitrary writer (useful for tests)
func NewWithWriter(level string, w io.Writer) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{slog: slog.New(handler)}
}

// discardHandler drops every record; used before Init has run
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// parseLevel converts a string level to a slog level
func parseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger tagged with a component name. Safe to
// call before Init; messages are dropped until the default logger exists.
func WithComponent(name string) *Logger {
	if defaultLogger == nil {
		return &Logger{slog: slog.New(discardHandler{})}
	}
	return &Logger{slog: defaultLogger.slog.With("component", name)}
}

// Debug logs a debug message with key/value pairs
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs an info message with key/value pairs
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs a warning message with key/value pairs
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs an error message with key/value pairs
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// Package-level convenience functions using the default logger

func Debug(msg string, args ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.Error(msg, args...)
}

// SetOutput replaces the default logger's output (useful for testing)
func SetOutput(w io.Writer) {
	defaultLogger = NewWithWriter("debug", w)
}

// Close closes the default logger's file, if any
func Close() error {
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}
