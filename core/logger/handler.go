package logger

import (
	"context"
	"log/slog"
)

// contextHandler decorates a slog.Handler with request metadata carried in context.
// Attributes already present on the record win over context values.
type contextHandler struct {
	next slog.Handler
}

func newContextHandler(next slog.Handler) *contextHandler {
	return &contextHandler{next: next}
}

// Enabled reports whether the wrapped handler allows the provided level.
func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle appends rid, update, chat, user and handler identifiers before delegating.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx == nil {
		return h.next.Handle(ctx, r)
	}

	present := make(map[string]struct{}, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		present[a.Key] = struct{}{}
		return true
	})
	add := func(a slog.Attr) {
		if _, ok := present[a.Key]; ok {
			return
		}
		r.AddAttrs(a)
	}

	if rid := RIDFrom(ctx); rid != "" {
		add(slog.String("rid", CompactRID(rid)))
	}
	if updateID := UpdateIDFrom(ctx); updateID != 0 {
		add(slog.Int("update_id", updateID))
	}
	if chatID := ChatIDFrom(ctx); chatID != 0 {
		add(slog.Int64("chat_id", chatID))
	}
	if userID := UserIDFrom(ctx); userID != 0 {
		add(slog.Int64("user_id", userID))
	}
	if handler := HandlerFrom(ctx); handler != "" {
		add(slog.String("handler", handler))
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler whose wrapped handler carries attrs.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup returns a handler whose wrapped handler opens the group.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &contextHandler{next: h.next.WithGroup(name)}
}
