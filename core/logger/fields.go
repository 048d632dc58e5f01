package logger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// fields is one log line before encoding. Later writes win.
type fields map[string]any

func (f fields) setDefault(key string, v any) {
	if s, ok := v.(string); ok && s == "" {
		return
	}
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// add flattens attr (groups become dotted prefixes) into f.
func (f fields) add(prefix string, attr slog.Attr) {
	key := attr.Key
	if prefix != "" {
		if key == "" {
			key = prefix
		} else {
			key = prefix + "." + key
		}
	}
	v := attr.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := plainValue(key, v); ok {
		f[k] = val
	} else {
		delete(f, k)
	}
}

// plainValue converts v to something both encoders print directly. Durations
// are rendered in milliseconds and their key gains an _ms suffix.
func plainValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		s := strings.TrimSpace(v.String())
		return key, s, s != ""
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return millisKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return millisKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		s := x.String()
		return key, s, s != ""
	default:
		return key, fmt.Sprint(x), true
	}
}

func millisKey(key string) string {
	switch {
	case key == "duration", key == "took":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// keys lists known keys in order first, then the rest alphabetically.
func (f fields) keys(order []string) []string {
	out := make([]string, 0, len(f))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := f[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(f)-len(out))
	for k := range f {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func (f fields) appendJSON(dst []byte, order []string) ([]byte, error) {
	dst = append(dst, '{')
	for i, k := range f.keys(order) {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendQuote(dst, k)
		dst = append(dst, ':')
		raw, err := json.Marshal(f[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		dst = append(dst, raw...)
	}
	return append(dst, '}', '\n'), nil
}

func (f fields) appendKV(dst []byte, order []string) []byte {
	for i, k := range f.keys(order) {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = append(dst, k...)
		dst = append(dst, '=')
		s := f.str(k)
		if strings.IndexFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) >= 0 {
			dst = strconv.AppendQuote(dst, s)
		} else {
			dst = append(dst, s...)
		}
	}
	return append(dst, '\n')
}

// defaultKeyOrder puts identity and correlation first, then the domain keys
// the bot logs most.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "trace_id",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"outcome", "duration_ms",
	"flow", "state", "experiment_id", "predictor", "mode", "exit_code", "size", "pdi",
	"rows", "file", "messages", "kb", "count",
	"action", "endpoint", "cb_key", "payload", "username",
	"listen", "http_code", "db", "host", "port",
	"err", "err_code", "cause", "retryable", "attempt", "attempts", "backoff_ms",
}

// outcomes outside this set are dropped.
var knownOutcome = []string{"ok", "fail", "cancelled", "rate_limited"}

func (f fields) normalize() {
	if s := strings.ToLower(f.str("status")); s != "" {
		if s == "error" {
			s = "fail"
		}
		f["status"] = s
	}
	if o := strings.ToLower(f.str("outcome")); o != "" {
		if slices.Contains(knownOutcome, o) {
			f["outcome"] = o
		} else {
			delete(f, "outcome")
		}
	}
}

// Took returns the time elapsed since start, rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to the nearest millisecond; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether any were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	limit = max(limit, 0)
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}
