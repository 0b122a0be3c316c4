package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns JSON logger writing to stderr, so stdout stays free for command output.
// Level is taken from the argument (default info).
func New(level string) *slog.Logger {
	return NewWriter(os.Stderr, level)
}

// NewWriter builds the same logger over an arbitrary writer.
func NewWriter(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(h)
}

// ParseLevel parses debug/info/warn/error; unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return parsed
}
