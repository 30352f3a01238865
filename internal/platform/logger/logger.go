package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"market/pkg/platform/diagnostics"
)

// New returns a JSON logger on stdout whose records carry the request diagnostics.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with an explicit sink, used by tests.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(WrapHandler(h))
}

// ParseLevel maps a config string to a slog level; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DiagnosticsHandler appends the diagnostics of the record's context to every record.
// Diagnostics stay top-level even under WithGroup: once a group is open, the handler
// chain is rebuilt per record from root with the diagnostics added first.
type DiagnosticsHandler struct {
	root    slog.Handler
	next    slog.Handler
	ops     []func(slog.Handler) slog.Handler
	grouped bool
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &DiagnosticsHandler{root: next, next: next}
}

func (h *DiagnosticsHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *DiagnosticsHandler) Handle(ctx context.Context, rec slog.Record) error {
	attrs := diagnostics.From(ctx).Attrs()
	if len(attrs) == 0 {
		return h.next.Handle(ctx, rec)
	}
	if !h.grouped {
		rec = rec.Clone()
		rec.AddAttrs(attrs...)
		return h.next.Handle(ctx, rec)
	}
	handler := h.root.WithAttrs(attrs)
	for _, op := range h.ops {
		handler = op(handler)
	}
	return handler.Handle(ctx, rec)
}

func (h *DiagnosticsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) }, false)
}

func (h *DiagnosticsHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) }, true)
}

func (h *DiagnosticsHandler) with(op func(slog.Handler) slog.Handler, group bool) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		root:    h.root,
		next:    op(h.next),
		ops:     append(slices.Clip(h.ops), op),
		grouped: h.grouped || group,
	}
}
