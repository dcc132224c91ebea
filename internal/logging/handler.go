// Package logging provides the slog handlers used by sitecounter.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Log output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logger writing to w at level.
//
// Format "json" uses slog's JSON handler for log collectors; anything else
// uses HumanReadableHandler, which is what operators read on a terminal.
// The time attribute is dropped from text output.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(NewHumanReadableHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// HumanReadableHandler is a slog handler that writes the message followed
// by its attributes, e.g. `Visit recorded (visitor=3f0c2a9e..., page=/)`.
type HumanReadableHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr // pre-formatted by WithAttrs, keys already qualified
	group  string      // dotted prefix from WithGroup
}

// NewHumanReadableHandler creates a new human-readable log handler.
func NewHumanReadableHandler(w io.Writer, opts *slog.HandlerOptions) *HumanReadableHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &HumanReadableHandler{
		mu:     &sync.Mutex{},
		writer: w,
		opts:   *opts,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *HumanReadableHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes the log record.
func (h *HumanReadableHandler) Handle(_ context.Context, r slog.Record) error {
	// time, level and msg go through ReplaceAttr like any other attribute,
	// so callers can drop or rewrite them.
	var msg *slog.Attr
	var fields []slog.Attr
	for _, a := range []slog.Attr{
		slog.Time(slog.TimeKey, r.Time),
		slog.Any(slog.LevelKey, r.Level),
		slog.String(slog.MessageKey, r.Message),
	} {
		a = h.replace(nil, a)
		if a.Key == "" {
			continue
		}
		if a.Key == slog.MessageKey {
			m := a
			msg = &m
			continue
		}
		fields = append(fields, a)
	}

	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = h.appendAttr(fields, h.group, a)
		return true
	})

	var buf strings.Builder
	if msg != nil {
		buf.WriteString(msg.Value.String())
	}
	if len(fields) > 0 {
		if msg != nil {
			buf.WriteString(" (")
		}
		for i, a := range fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(a.Key)
			buf.WriteString("=")
			buf.WriteString(formatValue(a.Value))
		}
		if msg != nil {
			buf.WriteString(")")
		}
	}
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, buf.String())
	return err
}

// WithAttrs returns a new handler that prefixes every record with attrs.
func (h *HumanReadableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()
	for _, a := range attrs {
		h2.attrs = h.appendAttr(h2.attrs, h.group, a)
	}
	return h2
}

// WithGroup returns a new handler that qualifies subsequent attribute keys
// with name.
func (h *HumanReadableHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.group = qualify(h.group, name)
	return h2
}

func (h *HumanReadableHandler) clone() *HumanReadableHandler {
	h2 := *h
	h2.attrs = append([]slog.Attr(nil), h.attrs...)
	return &h2
}

// appendAttr resolves a, flattens groups into dotted keys and applies
// ReplaceAttr.
func (h *HumanReadableHandler) appendAttr(dst []slog.Attr, prefix string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = qualify(prefix, a.Key)
		}
		for _, ga := range a.Value.Group() {
			dst = h.appendAttr(dst, inner, ga)
		}
		return dst
	}

	var groups []string
	if prefix != "" {
		groups = strings.Split(prefix, ".")
	}
	a = h.replace(groups, a)
	if a.Key == "" {
		return dst
	}
	a.Key = qualify(prefix, a.Key)
	return append(dst, a)
}

func (h *HumanReadableHandler) replace(groups []string, a slog.Attr) slog.Attr {
	if h.opts.ReplaceAttr == nil {
		return a
	}
	return h.opts.ReplaceAttr(groups, a)
}

func qualify(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// formatValue renders a value, quoting strings that contain spaces or '='.
func formatValue(v slog.Value) string {
	if v.Kind() == slog.KindString {
		s := v.String()
		if strings.ContainsAny(s, " =") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
	return fmt.Sprintf("%v", v.Any())
}
