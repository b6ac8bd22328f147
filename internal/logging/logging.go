// Package logging builds the structured loggers used across puppetdoc.
package logging

import (
	"errors"
	"io"
	"log/slog"
	"strings"
)

// ErrUnknownFormat is returned for a log format other than json or text
var ErrUnknownFormat = errors.New("unknown log format")

// ParseLevel converts a level name (debug, info, warn, error) to a slog.Level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(name))))
	return level, err
}

// New creates a logger writing to w in the given format ("json" or "text")
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, errors.Join(ErrUnknownFormat, errors.New(format))
	}
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
