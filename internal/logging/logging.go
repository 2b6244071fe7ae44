package logging

import (
	"strings"

	"github.com/pterm/pterm"
)

// New builds the process logger. Unknown levels fall back to info, unknown
// formats to the colored text output.
func New(level, format string) *pterm.Logger {
	logger := pterm.DefaultLogger.WithLevel(ParseLevel(level))
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		logger = logger.WithFormatter(pterm.LogFormatterJSON)
	}
	return logger
}

// ParseLevel maps LOG_LEVEL values onto pterm levels.
func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "fatal":
		return pterm.LogLevelFatal
	case "off", "disabled", "none":
		return pterm.LogLevelDisabled
	default:
		return pterm.LogLevelInfo
	}
}
