package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Log formats accepted by Setup.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures the process logger.
type Options struct {
	Verbose bool
	Format  string // text (default) or json
}

// New builds a structured logger writing to w. Verbose lowers the level to debug;
// otherwise only warnings and errors are shown so command output stays clean.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q (supported: text, json)", opts.Format)
	}
}

// Setup builds the logger and installs it as the slog default.
func Setup(w io.Writer, opts Options) (*slog.Logger, error) {
	l, err := New(w, opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}
