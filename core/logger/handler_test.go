package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, enc encoding) (*slog.Logger, func() string) {
	t.Helper()
	var buf bytes.Buffer
	w := newLineWriter(8, &buf)
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	h := &lineHandler{level: lvl, out: w, enc: enc, order: defaultKeyOrder}
	return slog.New(h), func() string {
		require.NoError(t, w.close())
		return buf.String()
	}
}

func TestKVLineKeepsLeadingOrder(t *testing.T) {
	log, done := capture(t, encKV)
	ctx := WithMeta(context.Background(), UpdateMeta(42, 9, 7))

	log.With("component", "dialog").LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "flow.start"),
		slog.Duration("duration", 1500*time.Millisecond),
		slog.String("status", "OK"),
	)

	line := strings.TrimSpace(done())
	ts, rest, ok := strings.Cut(line, " ")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(ts, "ts="))
	assert.Equal(t,
		"level=INFO component=dialog event=flow.start status=ok rid=16.9.7 update_id=42 user_id=7 chat_id=9 duration_ms=1500",
		rest)
}

func TestJSONLineCarriesFullRID(t *testing.T) {
	log, done := capture(t, encJSON)
	ctx := WithMeta(context.Background(), UpdateMeta(11, 22, 33))

	log.With("component", "service.test").LogAttrs(ctx, slog.LevelError, "service.failed",
		slog.Any("err", assert.AnError),
		slog.String("err_code", "TEST_FAIL"),
	)

	line := done()
	assert.True(t, strings.HasPrefix(line, `{"ts":"`))
	assert.True(t, strings.HasSuffix(line, "}\n"))
	assert.Less(t, strings.Index(line, `"level"`), strings.Index(line, `"component"`))
	assert.Less(t, strings.Index(line, `"event"`), strings.Index(line, `"rid"`))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, "ERROR", got["level"])
	assert.Equal(t, "service.failed", got["event"])
	assert.Equal(t, "b.m.x", got["rid"])
	assert.Equal(t, "11:22:33", got["rid_full"])
	assert.Equal(t, float64(33), got["user_id"])
	assert.Equal(t, assert.AnError.Error(), got["err"])
}

func TestRecordAttrsWinOverMeta(t *testing.T) {
	log, done := capture(t, encKV)
	ctx := WithMeta(context.Background(), Meta{Handler: "start", RID: "custom"})

	log.LogAttrs(ctx, slog.LevelInfo, "x", slog.String("handler", "history"))

	line := done()
	assert.Contains(t, line, " handler=history")
	assert.Contains(t, line, " rid=custom")
	assert.Contains(t, line, " component=app")
}

func TestGroupsBecomeDottedKeys(t *testing.T) {
	log, done := capture(t, encKV)

	log.WithGroup("db").With("host", "pg").Info("", "port", 5432)

	line := done()
	assert.Contains(t, line, " event=unknown")
	assert.Contains(t, line, " db.host=pg")
	assert.Contains(t, line, " db.port=5432")
}

func TestEnumerationsNormalized(t *testing.T) {
	log, done := capture(t, encKV)

	log.Info("a", "status", "ERROR", "outcome", "sideways")
	log.Info("b", "outcome", "Cancelled", "note", `say "hi"`)

	lines := strings.Split(strings.TrimSpace(done()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], " status=fail")
	assert.NotContains(t, lines[0], "outcome")
	assert.Contains(t, lines[1], " outcome=cancelled")
	assert.Contains(t, lines[1], ` note="say \"hi\""`)
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	w := newLineWriter(1, &buf)
	h := &lineHandler{level: slog.LevelWarn, out: w, enc: encKV, order: defaultKeyOrder}
	log := slog.New(h)

	log.Info("dropped")
	log.Warn("kept")
	require.NoError(t, w.close())

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "event=kept")
}

func TestWithMetaMerges(t *testing.T) {
	ctx := WithMeta(context.Background(), UpdateMeta(1, 2, 3))
	ctx = WithMeta(ctx, Meta{Handler: "plot"})

	m := MetaFrom(ctx)
	assert.Equal(t, "1:2:3", m.RID)
	assert.Equal(t, int64(3), m.UserID)
	assert.Equal(t, "plot", m.Handler)
	assert.Equal(t, Meta{}, MetaFrom(context.Background()))
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "16.9.7", compactRID("42:9:7"))
	assert.Equal(t, "rid-1", compactRID("rid-1"))
	assert.Equal(t, "1:x:2", compactRID("1:x:2"))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc\td", Clip("a\x00b\u200bc\td\x7f", 10))
	assert.Equal(t, "hé", Clip("héllo", 2))
	assert.Empty(t, Clip("anything", 0))
}

func TestWriterCloseDrainsQueue(t *testing.T) {
	var buf bytes.Buffer
	w := newLineWriter(4, &buf)
	for i := 0; i < 20; i++ {
		require.NoError(t, w.write([]byte("line\n")))
	}
	require.NoError(t, w.flush())
	require.NoError(t, w.close())

	assert.Equal(t, 20, strings.Count(buf.String(), "line\n"))
	assert.ErrorIs(t, w.write([]byte("late\n")), errWriterClosed)
	assert.NoError(t, w.flush())
}

func TestSummarizeStrings(t *testing.T) {
	s, cut := SummarizeStrings([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b", s)
	assert.True(t, cut)

	s, cut = SummarizeStrings([]string{"a"}, 5)
	assert.Equal(t, "a", s)
	assert.False(t, cut)
}
