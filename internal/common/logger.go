package common

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel represents logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Logger provides a centralized logging interface for mongorun
type Logger struct {
	*slog.Logger
	level  LogLevel
	masker *Masker
}

// NewLogger creates a new structured text logger writing to stdout
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stdout, level, false)
}

// NewJSONLogger creates a structured logger with JSON output
func NewJSONLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stdout, level, true)
}

// NewLoggerTo creates a logger writing to w. Records pass through a masking
// handler so credentials never reach the output.
func NewLoggerTo(w io.Writer, level LogLevel, json bool) *Logger {
	opts := &slog.HandlerOptions{
		Level: level.ToSlogLevel(),
	}

	var inner slog.Handler
	if json {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return newMasked(inner, level)
}

// NewColorLogger creates a colorized console logger writing to stderr.
func NewColorLogger(level LogLevel) *Logger {
	return newMasked(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level.ToSlogLevel()}), level)
}

// NewColorLoggerTo creates a console logger writing to w through h's settings.
func NewColorLoggerTo(w io.Writer, level LogLevel, color bool) *Logger {
	h := NewColorHandler(w, &slog.HandlerOptions{Level: level.ToSlogLevel()})
	h.SetColorEnabled(color)
	return newMasked(h, level)
}

func newMasked(inner slog.Handler, level LogLevel) *Logger {
	masker := NewMasker()
	return &Logger{
		Logger: slog.New(NewMaskingHandler(inner, masker)),
		level:  level,
		masker: masker,
	}
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}

// EnableMasking toggles masking of sensitive values for this logger
func (l *Logger) EnableMasking(enabled bool) {
	if l.masker != nil {
		l.masker.SetEnabled(enabled)
	}
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
		masker: l.masker,
	}
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithRun returns a logger tagged with the migration run id
func (l *Logger) WithRun(runID string) *Logger {
	return l.with("run_id", runID)
}

// WithCollection returns a logger with target collection context
func (l *Logger) WithCollection(collection string) *Logger {
	return l.with("collection", collection)
}

// WithScript returns a logger with script context
func (l *Logger) WithScript(scriptID, ticket, method string) *Logger {
	return l.with("script_id", scriptID, "ticket", ticket, "method", method)
}

// WithStore returns a logger with history store context
func (l *Logger) WithStore(storeType string) *Logger {
	return l.with("store", storeType)
}

// Global default logger instance
var defaultLogger = NewLogger(LogLevelInfo)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// GetLogger returns the default logger
func GetLogger() *Logger {
	return defaultLogger
}

// LogError logs an error with context
func LogError(msg string, err error, attrs ...any) {
	args := append([]any{"error", err}, attrs...)
	defaultLogger.Error(msg, args...)
}

// LogInfo logs informational message
func LogInfo(msg string, attrs ...any) {
	defaultLogger.Info(msg, attrs...)
}

// LogDebug logs debug message
func LogDebug(msg string, attrs ...any) {
	defaultLogger.Debug(msg, attrs...)
}

// LogWarn logs warning message
func LogWarn(msg string, attrs ...any) {
	defaultLogger.Warn(msg, attrs...)
}
