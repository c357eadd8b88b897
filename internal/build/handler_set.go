package build

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// HandlerSet fans log records out to several btclog handlers, so the daemon
// logs to the console and to a rotating file at once.
type HandlerSet struct {
	level btclog.Level
	set   []btclogv2.Handler
}

// NewHandlerSet creates a set over handlers at the Info level.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{set: handlers}
	h.SetLevel(btclog.LevelInfo)

	return h
}

// mapSet applies f to every handler of the set, producing a new set with
// the same level.
func (h *HandlerSet) mapSet(f func(btclogv2.Handler) btclogv2.Handler) *HandlerSet {
	out := &HandlerSet{
		level: h.level,
		set:   make([]btclogv2.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		out.set[i] = f(handler)
	}

	return out
}

// Enabled is part of the slog.Handler interface. A record is enabled only
// if every handler accepts it.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle is part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.set {
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs is part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newSlogSet(h.set, func(s slog.Handler) slog.Handler {
		return s.WithAttrs(attrs)
	})
}

// WithGroup is part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	return newSlogSet(h.set, func(s slog.Handler) slog.Handler {
		return s.WithGroup(name)
	})
}

// SubSystem is part of the btclog.Handler interface. The returned handler
// tags every record with the subsystem name.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	return h.mapSet(func(handler btclogv2.Handler) btclogv2.Handler {
		return handler.SubSystem(tag)
	})
}

// WithPrefix is part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	return h.mapSet(func(handler btclogv2.Handler) btclogv2.Handler {
		return handler.WithPrefix(prefix)
	})
}

// SetLevel is part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level is part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

var _ btclogv2.Handler = (*HandlerSet)(nil)

// slogSet is the plain slog.Handler produced by WithAttrs and WithGroup.
type slogSet struct {
	set []slog.Handler
}

func newSlogSet[H slog.Handler](handlers []H,
	f func(slog.Handler) slog.Handler) *slogSet {

	out := &slogSet{set: make([]slog.Handler, len(handlers))}
	for i, handler := range handlers {
		out.set[i] = f(handler)
	}

	return out
}

func (s *slogSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range s.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

func (s *slogSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range s.set {
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}

	return nil
}

func (s *slogSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newSlogSet(s.set, func(h slog.Handler) slog.Handler {
		return h.WithAttrs(attrs)
	})
}

func (s *slogSet) WithGroup(name string) slog.Handler {
	return newSlogSet(s.set, func(h slog.Handler) slog.Handler {
		return h.WithGroup(name)
	})
}

var _ slog.Handler = (*slogSet)(nil)
