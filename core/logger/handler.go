package logger

import (
	"cmp"
	"context"
	"log/slog"
	"strings"
	"time"
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

type encoding int

const (
	encJSON encoding = iota
	encKV
)

// lineHandler renders records as one flat line each (JSON object or
// key=value pairs) with a stable key order, and enriches them with the Meta
// carried by the context.
type lineHandler struct {
	level  slog.Leveler
	out    *lineWriter
	enc    encoding
	order  []string
	attrs  []slog.Attr
	prefix string
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	f := make(fields, 16)
	f["ts"] = r.Time.UTC().Truncate(time.Millisecond).Format(tsLayout)
	f["level"] = r.Level.String()
	for _, a := range h.attrs {
		f.add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(h.prefix, a)
		return true
	})
	MetaFrom(ctx).fill(f)

	if rid := f.str("rid"); rid != "" {
		if short := compactRID(rid); short != rid {
			f["rid"] = short
			if h.enc == encJSON {
				f.setDefault("rid_full", rid)
			}
		}
	}
	f.setDefault("event", cmp.Or(r.Message, "unknown"))
	f.setDefault("component", "app")
	f.normalize()

	buf := make([]byte, 0, 256)
	if h.enc == encKV {
		return h.out.write(f.appendKV(buf, h.order))
	}
	line, err := f.appendJSON(buf, h.order)
	if err != nil {
		return err
	}
	return h.out.write(line)
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a = slog.Group(h.prefix, a)
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	next := *h
	if h.prefix != "" {
		name = h.prefix + "." + name
	}
	next.prefix = name
	return &next
}

