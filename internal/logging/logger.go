// internal/logging/logger.go
package logging

import (
	"io"
	"log"
	"log/slog"
	"strings"
)

// New builds the service logger. format is "json" or "text"; unknown
// levels fall back to info.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)

	// route stray stdlib log calls (libraries) through the same writer
	log.SetOutput(w)
	return logger
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
