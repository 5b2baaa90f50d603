package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
)

type contextKey struct{}

const idKey = "correlation_id"

// NewID generates an 8-character hex correlation ID (4 random bytes).
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithID returns a new context carrying the given correlation ID.
func WithID(ctx context.Context, id string) context.Context {
	return With(ctx, idKey, id)
}

// With returns a new context carrying an extra log attribute. Later values for the same key win.
func With(ctx context.Context, key, value string) context.Context {
	current := attrs(ctx)
	next := make([]slog.Attr, 0, len(current)+1)
	for _, a := range current {
		if a.Key != key {
			next = append(next, a)
		}
	}
	next = append(next, slog.String(key, value))
	return context.WithValue(ctx, contextKey{}, next)
}

// ID extracts the correlation ID from ctx, returning ("", false) if not present.
func ID(ctx context.Context) (string, bool) {
	for _, a := range attrs(ctx) {
		if a.Key == idKey {
			id := a.Value.String()
			return id, id != ""
		}
	}
	return "", false
}

func attrs(ctx context.Context) []slog.Attr {
	a, _ := ctx.Value(contextKey{}).([]slog.Attr)
	return a
}

// Handler wraps an existing slog.Handler and appends every attribute carried by the context.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if carried := attrs(ctx); len(carried) > 0 {
		r.AddAttrs(slices.Clone(carried)...)
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
