package mongorun

import (
	"io"

	"github.com/loykin/mongorun/internal/common"
)

// Logger is the structured logger used by every component.
type Logger = common.Logger

// LogLevel is the logging verbosity.
type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

// NewLogger returns a text logger on stdout.
func NewLogger(level LogLevel) *Logger { return common.NewLogger(level) }

// NewJSONLogger returns a JSON logger on stdout.
func NewJSONLogger(level LogLevel) *Logger { return common.NewJSONLogger(level) }

// NewLoggerTo returns a logger writing to w, JSON when json is set.
func NewLoggerTo(w io.Writer, level LogLevel, json bool) *Logger {
	return common.NewLoggerTo(w, level, json)
}

// NewColorLogger returns a colorized console logger on stderr.
func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }

// SetDefaultLogger replaces the process logger.
func SetDefaultLogger(l *Logger) { common.SetDefaultLogger(l) }

// GetLogger returns the process logger.
func GetLogger() *Logger { return common.GetLogger() }

// EnableMasking toggles masking of credentials in values printed outside the logger.
func EnableMasking(enabled bool) { common.EnableMasking(enabled) }

// MaskSensitiveData masks credentials in s.
func MaskSensitiveData(s string) string { return common.MaskSensitiveData(s) }
