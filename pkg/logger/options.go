package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects the handler New builds.
type Format int

const (
	// FormatText is slog's logfmt-style text handler.
	FormatText Format = iota

	// FormatJSON is slog's JSON handler, for log files and collectors.
	FormatJSON

	// FormatPretty is the colorized charmbracelet/log handler for terminals.
	FormatPretty
)

// ParseFormat resolves "text", "json" or "pretty".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "pretty":
		return FormatPretty, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q (want text, json or pretty)", s)
	}
}

// Option configures a Logger created with New.
type Option func(*config)

// WithDebug sets the log level to Debug when true, Info otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithFormat picks the output handler.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithPretty switches to the charmbracelet/log handler when pretty is true.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		if pretty {
			c.format = FormatPretty
		}
	}
}

// WithJSON switches to the JSON handler when json is true.
func WithJSON(json bool) Option {
	return func(c *config) {
		if json {
			c.format = FormatJSON
		}
	}
}

// WithWriter overrides the output writer. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writers = []io.Writer{w}
	}
}

// WithWriters sets multiple output writers (combined via io.MultiWriter).
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithSource includes source file:line in log output.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
