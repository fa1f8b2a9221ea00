package cmdutils

import (
	"fmt"
	"io"

	"golang.org/x/exp/slog"
)

// ParseLog builds a logger from the -logLevel / -logFormat flag values.
func ParseLog(logLevel, logFormat string, w io.Writer) (*slog.Logger, error) {
	var logHandlerOpts slog.HandlerOptions
	switch logLevel {
	case "info":
		logHandlerOpts = slog.HandlerOptions{Level: slog.LevelInfo}
	case "debug":
		logHandlerOpts = slog.HandlerOptions{Level: slog.LevelDebug}
	case "warn":
		logHandlerOpts = slog.HandlerOptions{Level: slog.LevelWarn}
	case "error":
		logHandlerOpts = slog.HandlerOptions{Level: slog.LevelError}
	default:
		return nil, fmt.Errorf("invalid log level: %s", logLevel)
	}

	switch logFormat {
	case "json":
		return slog.New(logHandlerOpts.NewJSONHandler(w)), nil
	case "text":
		return slog.New(logHandlerOpts.NewTextHandler(w)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", logFormat)
	}
}
