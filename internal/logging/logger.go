// Package logging builds the structured loggers of the extractor.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// NewJSONLogger returns a JSON logger writing to w, tagged with the service name
func NewJSONLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// NewStdioLogger is the logger for MCP over stdio. stdout carries the protocol,
// so logs go to w (stderr) and only at debug level; otherwise they are dropped.
func NewStdioLogger(w io.Writer, service, level string) *slog.Logger {
	if ParseLevel(level) != slog.LevelDebug {
		return slog.New(slog.DiscardHandler)
	}
	return NewJSONLogger(w, service, level)
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
