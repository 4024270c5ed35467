package web

import (
	"context"
	"log/slog"
	"strings"
)

// LogHandler forwards records to next and mirrors those at Level or above
// into the dashboard log buffer.
type LogHandler struct {
	next   slog.Handler
	server *Server
	level  slog.Level
	attrs  []slog.Attr
}

// NewLogHandler wraps next.
func NewLogHandler(next slog.Handler, s *Server, level slog.Level) *LogHandler {
	return &LogHandler{next: next, server: s, level: level}
}

// Enabled implements slog.Handler.
func (h *LogHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level || h.next.Enabled(ctx, l)
}

// Handle implements slog.Handler.
func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level {
		h.server.AddLog(kindOf(r.Level), h.format(r))
	}
	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		next:   h.next.WithAttrs(attrs),
		server: h.server,
		level:  h.level,
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup implements slog.Handler. Groups are flattened in the dashboard.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{next: h.next.WithGroup(name), server: h.server, level: h.level, attrs: h.attrs}
}

func (h *LogHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)
	return b.String()
}

func kindOf(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	}
	return "debug"
}
