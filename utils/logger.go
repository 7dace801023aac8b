package utils

import (
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// ParseLogLevel maps a config value to a pterm level. Unknown values fall back to info.
func ParseLogLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "off", "disabled":
		return pterm.LogLevelDisabled
	default:
		return pterm.LogLevelInfo
	}
}

// NewLogger returns a leveled logger writing to stderr.
func NewLogger(level string) *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(ParseLogLevel(level)).WithWriter(os.Stderr)
}

// DiscardLogger drops everything. Tests and library callers without a logger use it.
func DiscardLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled).WithWriter(io.Discard)
}
