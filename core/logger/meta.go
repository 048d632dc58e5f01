package logger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type ctxKey struct{}

// Meta identifies the update a log line belongs to. Every line written with a
// context carrying Meta inherits its non-zero fields unless the call sets them.
type Meta struct {
	RID      string
	UpdateID int
	ChatID   int64
	UserID   int64
	Handler  string
	TraceID  string
}

// UpdateMeta builds Meta for a Telegram update, deriving the rid from its ids.
func UpdateMeta(updateID int, chatID, userID int64) Meta {
	return Meta{
		RID:      fmt.Sprintf("%d:%d:%d", updateID, chatID, userID),
		UpdateID: updateID,
		ChatID:   chatID,
		UserID:   userID,
	}
}

// WithMeta merges m into the Meta already carried by ctx.
func WithMeta(ctx context.Context, m Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	cur := MetaFrom(ctx)
	if m.RID != "" {
		cur.RID = m.RID
	}
	if m.UpdateID != 0 {
		cur.UpdateID = m.UpdateID
	}
	if m.ChatID != 0 {
		cur.ChatID = m.ChatID
	}
	if m.UserID != 0 {
		cur.UserID = m.UserID
	}
	if m.Handler != "" {
		cur.Handler = m.Handler
	}
	if m.TraceID != "" {
		cur.TraceID = m.TraceID
	}
	return context.WithValue(ctx, ctxKey{}, cur)
}

// MetaFrom returns the Meta carried by ctx, or the zero value.
func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(ctxKey{}).(Meta)
	return m
}

func (m Meta) fill(f fields) {
	f.setDefault("rid", m.RID)
	f.setDefault("trace_id", m.TraceID)
	f.setDefault("handler", m.Handler)
	if m.UpdateID != 0 {
		f.setDefault("update_id", int64(m.UpdateID))
	}
	if m.ChatID != 0 {
		f.setDefault("chat_id", m.ChatID)
	}
	if m.UserID != 0 {
		f.setDefault("user_id", m.UserID)
	}
}

// compactRID rewrites "update:chat:user" into dot-separated base36 segments.
// Anything else comes back unchanged.
func compactRID(rid string) string {
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}

// Clip drops control and format runes (keeping tab and newline) and cuts the
// result to at most max runes. User supplied text goes through it before
// landing in a log line.
func Clip(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(min(len(s), max*4))
	n := 0
	for _, r := range s {
		if r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r)) {
			continue
		}
		if n == max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
