package logging

import (
	"context"
	"errors"
	"log/slog"
)

// AttrSource returns attributes evaluated at log time, such as the id of the
// ingest run in progress.
type AttrSource func() []slog.Attr

// fanout delivers each record to every sink enabled for its level.
type fanout struct {
	sinks []slog.Handler
}

// Fanout combines sinks into one handler. Nil sinks are ignored.
func Fanout(sinks ...slog.Handler) slog.Handler {
	f := &fanout{sinks: make([]slog.Handler, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range f.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes r to every enabled sink. A failing sink does not stop the
// others; their errors are joined.
func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range f.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (f *fanout) each(fn func(slog.Handler) slog.Handler) *fanout {
	sinks := make([]slog.Handler, len(f.sinks))
	for i, s := range f.sinks {
		sinks[i] = fn(s)
	}
	return &fanout{sinks: sinks}
}

// sourced appends the attributes of an AttrSource to every record.
type sourced struct {
	inner  slog.Handler
	source AttrSource
}

// WithAttrSource wraps inner so each record also carries source's attributes.
// A nil source returns inner unchanged.
func WithAttrSource(inner slog.Handler, source AttrSource) slog.Handler {
	if source == nil {
		return inner
	}
	return &sourced{inner: inner, source: source}
}

func (h *sourced) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *sourced) Handle(ctx context.Context, r slog.Record) error {
	if attrs := h.source(); len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *sourced) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sourced{inner: h.inner.WithAttrs(attrs), source: h.source}
}

func (h *sourced) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &sourced{inner: h.inner.WithGroup(name), source: h.source}
}
