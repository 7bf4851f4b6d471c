package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// zlHandler emits slog records through a zerolog logger. Attrs bound with
// WithAttrs are folded into a child zerolog logger up front, so Handle
// only deals with the record's own attrs.
type zlHandler struct {
	zl *zerolog.Logger
}

// NewSlog bridges the zerolog root into a slog.Logger so components can take
// the standard structured interface.
func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&zlHandler{zl: zl})
}

func (h *zlHandler) Enabled(_ context.Context, _ slog.Level) bool {
	// zerolog's global level does the filtering
	return true
}

func zlLevel(l slog.Level) zerolog.Level {
	switch {
	case l >= slog.LevelError:
		return zerolog.ErrorLevel
	case l >= slog.LevelWarn:
		return zerolog.WarnLevel
	case l >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

func (h *zlHandler) Handle(ctx context.Context, r slog.Record) error {
	ev := FromContext(ctx, h.zl).WithLevel(zlLevel(r.Level))
	r.Attrs(func(a slog.Attr) bool {
		ev = addAttr(ev, a)
		return true
	})
	ev.Msg(r.Message)
	return nil
}

func (h *zlHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	w := h.zl.With()
	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		switch a.Value.Kind() {
		case slog.KindString:
			w = w.Str(a.Key, a.Value.String())
		case slog.KindInt64:
			w = w.Int64(a.Key, a.Value.Int64())
		case slog.KindFloat64:
			w = w.Float64(a.Key, a.Value.Float64())
		case slog.KindBool:
			w = w.Bool(a.Key, a.Value.Bool())
		default:
			w = w.Interface(a.Key, a.Value.Any())
		}
	}
	child := w.Logger()
	return &zlHandler{zl: &child}
}

func (h *zlHandler) WithGroup(_ string) slog.Handler { return h }

func addAttr(ev *zerolog.Event, a slog.Attr) *zerolog.Event {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		return ev.Str(a.Key, a.Value.String())
	case slog.KindInt64:
		return ev.Int64(a.Key, a.Value.Int64())
	case slog.KindFloat64:
		return ev.Float64(a.Key, a.Value.Float64())
	case slog.KindBool:
		return ev.Bool(a.Key, a.Value.Bool())
	default:
		return ev.Interface(a.Key, a.Value.Any())
	}
}
