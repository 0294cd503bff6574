// Package loggingutil builds the pslog loggers used across sapadt and tags
// them with dotted subsystem paths.
package loggingutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"pkt.systems/pslog"
)

// SubsystemKey is the canonical key for subsystem tags.
const SubsystemKey = pslog.TrustedString("sys")

// Format selects the sink encoding.
type Format string

const (
	FormatPlain Format = "plain"
	FormatColor Format = "color"
	FormatJSON  Format = "json"
)

// ParseFormat maps a user supplied name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain", "text":
		return FormatPlain, nil
	case "color", "colour", "console":
		return FormatColor, nil
	case "json", "structured":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want plain, color or json)", s)
	}
}

// lockedWriter serialises writes so concurrent log calls never interleave
// within a line.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// SyncWriter wraps w with a mutex unless it already is one.
func SyncWriter(w io.Writer) io.Writer {
	if _, ok := w.(*lockedWriter); ok {
		return w
	}
	return &lockedWriter{w: w}
}

// New returns a logger writing to w in the requested format at level.
func New(ctx context.Context, w io.Writer, format Format, level pslog.Level) pslog.Logger {
	if w == nil {
		return pslog.NoopLogger()
	}
	opts := pslog.Options{MinLevel: level}
	switch format {
	case FormatJSON:
		opts.Mode = pslog.ModeStructured
		opts.NoColor = true
	case FormatColor:
		opts.Mode = pslog.ModeConsole
	default:
		opts.Mode = pslog.ModeConsole
		opts.NoColor = true
	}
	return pslog.NewWithOptions(ctx, SyncWriter(w), opts)
}

// EnsureLogger returns l when non-nil, otherwise it returns a disabled logger.
func EnsureLogger(l pslog.Logger) pslog.Logger {
	if l != nil {
		return l
	}
	return pslog.NoopLogger()
}

// FromBase tags b with subsystem when it supports contextual fields. Loggers
// that only implement pslog.Base are returned unchanged.
func FromBase(b pslog.Base, subsystem string) pslog.Base {
	if b == nil {
		return pslog.NoopLogger()
	}
	if full, ok := b.(pslog.Logger); ok {
		return WithSubsystem(full, subsystem)
	}
	return b
}

// Subsystem builds a dot-delimited subsystem path from the supplied parts while
// skipping empty fragments.
func Subsystem(parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, ". ")
		if part == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, ".")
}

// WithSubsystem attaches a subsystem tag to every log entry.
func WithSubsystem(logger pslog.Logger, subsystem string) pslog.Logger {
	logger = EnsureLogger(logger)
	subsystem = strings.Trim(subsystem, ". ")
	if subsystem == "" {
		return logger
	}
	return logger.With(SubsystemKey, subsystem)
}
