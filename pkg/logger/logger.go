// Package logger builds the slog loggers used by the CLI and the server.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// Info messages that mention one of these are graph writes and are
// highlighted green.
var writeKeywords = []string{"ingest", "persist", "merged", "committed"}

// ColorHandler is a text slog.Handler that colors the level and message.
type ColorHandler struct {
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string

	mu *sync.Mutex
	w  io.Writer
}

// NewColorHandler creates a ColorHandler writing to w.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	h := &ColorHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled implements slog.Handler.
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

// Handle implements slog.Handler.
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	color := messageColor(r.Level, r.Message)

	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(colorGray)
		b.WriteString(r.Time.Format(time.TimeOnly))
		b.WriteString(colorReset)
		b.WriteByte(' ')
	}
	b.WriteString(color)
	fmt.Fprintf(&b, "%-5s", r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(colorReset)

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		writeAttr(&b, prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs implements slog.Handler.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func messageColor(level slog.Level, msg string) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level == slog.LevelInfo:
		lower := strings.ToLower(msg)
		for _, kw := range writeKeywords {
			if strings.Contains(lower, kw) {
				return colorGreen
			}
		}
	}
	return ""
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Any())
}

// NewDefaultLogger returns a colored logger on stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewHandler returns a JSON handler for format "json" and a ColorHandler
// otherwise.
func NewHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return NewColorHandler(w, opts)
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown
// values yield info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}
