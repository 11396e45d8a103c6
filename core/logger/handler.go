package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

// newHandler builds the slog handler for format writing to w.
func newHandler(w io.Writer, format logFormat, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	var inner slog.Handler
	if format == formatJSON {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return &contextHandler{inner: inner}
}

// contextHandler adds the update identifiers stored in the record's context
// and tags records without a component as "app".
type contextHandler struct {
	inner        slog.Handler
	hasComponent bool
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	var seen map[string]bool
	r.Attrs(func(a slog.Attr) bool {
		if seen == nil {
			seen = make(map[string]bool, 4)
		}
		seen[a.Key] = true
		return true
	})
	extra := make([]slog.Attr, 0, 6)
	if !h.hasComponent && !seen["component"] {
		extra = append(extra, slog.String("component", "app"))
	}
	for _, a := range metaFrom(ctx).attrs() {
		if !seen[a.Key] {
			extra = append(extra, a)
		}
	}
	if len(extra) > 0 {
		r = r.Clone()
		r.AddAttrs(extra...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	for _, a := range attrs {
		if a.Key == "component" {
			clone.hasComponent = true
		}
	}
	clone.inner = h.inner.WithAttrs(attrs)
	return &clone
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	return &clone
}

// replaceAttr formats time in UTC milliseconds, drops an empty message and
// reports durations as integer milliseconds under a *_ms key.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey:
			return slog.String("ts", a.Value.Time().UTC().Format(timeFormatMillis))
		case slog.MessageKey:
			if a.Value.String() == "" {
				return slog.Attr{}
			}
		}
	}
	if a.Value.Kind() == slog.KindDuration {
		return slog.Int64(durationKey(a.Key), RoundMS(a.Value.Duration()).Milliseconds())
	}
	return a
}

// durationKey makes the unit explicit: duration -> duration_ms, x -> x_ms.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

// RoundMS rounds d to the nearest millisecond; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins up to limit values and reports whether any were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}
