// Package log builds the structured (slog) loggers used across divine.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// HandlerOption configures a logger built by New.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	writer    io.Writer
	format    string
	level     slog.Level
	addSource bool
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		writer: os.Stderr,
		format: FormatText,
		level:  slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithFormat selects FormatText or FormatJSON.
func WithFormat(format string) HandlerOption {
	return func(c *handlerConfig) {
		c.format = format
	}
}

// WithWriter sets the destination. Default is stderr, keeping stdout free
// for command output.
func WithWriter(w io.Writer) HandlerOption {
	return func(c *handlerConfig) {
		c.writer = w
	}
}

// NewHandler creates a text or JSON handler.
func NewHandler(opts ...HandlerOption) (slog.Handler, error) {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	hopts := &slog.HandlerOptions{Level: cfg.level, AddSource: cfg.addSource}
	switch cfg.format {
	case FormatText, "":
		return slog.NewTextHandler(cfg.writer, hopts), nil
	case FormatJSON:
		return slog.NewJSONHandler(cfg.writer, hopts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.format)
	}
}

// New creates a logger.
func New(opts ...HandlerOption) (*slog.Logger, error) {
	h, err := NewHandler(opts...)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// ParseLevel maps debug, info, warn or error to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
