package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/synthbot/core/telegram"
)

type fakeContext struct {
	tele.Context
	user      *tele.User
	text      string
	cb        *tele.Callback
	store     map[string]any
	responded bool
}

func newFake(userID int64, text string) *fakeContext {
	return &fakeContext{user: &tele.User{ID: userID}, text: text, store: map[string]any{}}
}

func (f *fakeContext) Update() tele.Update { return tele.Update{ID: 1} }
func (f *fakeContext) Chat() *tele.Chat { return &tele.Chat{ID: f.user.ID} }
func (f *fakeContext) Sender() *tele.User { return f.user }
func (f *fakeContext) Text() string { return f.text }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }
func (f *fakeContext) Get(key string) any { return f.store[key] }
func (f *fakeContext) Set(key string, v any) { f.store[key] = v }

func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.responded = true
	return nil
}

// calls records which handler served an update.
type calls []string

func (cs *calls) handler(name string) tele.HandlerFunc {
	return func(tele.Context) error {
		*cs = append(*cs, name)
		return nil
	}
}

func testRegistry(t *testing.T, cs *calls) *tg.Registry {
	t.Helper()
	reg := tg.NewRegistry()
	require.NoError(t, reg.Register(tg.Command{Name: "/history", Description: "history", Handler: cs.handler("history"), Aliases: []string{"history"}}))
	require.NoError(t, reg.Register(tg.Command{Name: "/backup", Description: "backup", Handler: cs.handler("backup"), AdminOnly: true}))
	require.NoError(t, reg.HandleCallback("plot", cs.handler("plot")))
	return reg
}

func route(t *testing.T, routes []tg.Route, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %v", endpoint)
	return nil
}

func TestCommandRoutesGuardAdminCommands(t *testing.T) {
	var cs calls
	reg := testRegistry(t, &cs)
	routes := CommandRoutes(reg, CommandRouteOptions{
		IsAdmin:       func(id int64) bool { return id == 1 },
		OnAdminReject: cs.handler("rejected"),
	})
	require.Len(t, routes, 2)

	require.NoError(t, route(t, routes, "/backup")(newFake(2, "/backup")))
	require.NoError(t, route(t, routes, "/backup")(newFake(1, "/backup")))
	require.NoError(t, route(t, routes, "/history")(newFake(2, "/history")))
	assert.Equal(t, calls{"rejected", "backup", "history"}, cs)

	assert.Nil(t, CommandRoutes(nil, CommandRouteOptions{}))
}

func TestCallbackRouteDispatch(t *testing.T) {
	var cs calls
	reg := testRegistry(t, &cs)
	h := CallbackRoute(reg, CallbackOptions{NotFound: cs.handler("stale")}).Handler

	known := newFake(2, "")
	known.cb = &tele.Callback{Unique: "plot", Data: "ph"}
	require.NoError(t, h(known))
	assert.True(t, known.responded)

	stale := newFake(2, "")
	stale.cb = &tele.Callback{Data: "\fgone|1"}
	require.NoError(t, h(stale))

	require.NoError(t, h(newFake(2, "")))
	assert.Equal(t, calls{"plot", "stale"}, cs)
}

type fakeDialog struct {
	open map[int64]bool
	cs   *calls
}

func (d fakeDialog) InProgress(id int64) bool { return d.open[id] }
func (d fakeDialog) HandleText(tele.Context) error { *d.cs = append(*d.cs, "dialog"); return nil }

func TestTextRoutesOrder(t *testing.T) {
	var cs calls
	reg := testRegistry(t, &cs)
	dlg := fakeDialog{open: map[int64]bool{5: true}, cs: &cs}
	routes := TextRoutes(dlg, reg, TextOptions{
		UnknownText:     cs.handler("unknown"),
		UnknownDocument: cs.handler("document"),
	})
	onText := route(t, routes, tele.OnText)

	require.NoError(t, onText(newFake(5, "history")))
	require.NoError(t, onText(newFake(6, "history")))
	require.NoError(t, onText(newFake(6, "backup")))
	require.NoError(t, onText(newFake(6, "hello")))
	require.NoError(t, route(t, routes, tele.OnDocument)(newFake(6, "")))

	assert.Equal(t, calls{"dialog", "history", "unknown", "unknown", "document"}, cs)
}

func TestTextRoutesWithoutFallbacks(t *testing.T) {
	routes := TextRoutes(nil, nil, TextOptions{})
	assert.NoError(t, route(t, routes, tele.OnText)(newFake(1, "hi")))
	assert.NoError(t, route(t, routes, tele.OnDocument)(newFake(1, "")))
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string { return "model missing" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrap: %w", codedErr{}), "MODEL_MISSING"},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), "TG_TIMEOUT"},
		{fmt.Errorf("outer: %w", &plainErr{}), "PLAINERR"},
		{errors.New("bare"), "ERRORSTRING"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errorCode(tc.err), tc.err.Error())
	}
}

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "history", handlerName(" /History "))
	assert.Equal(t, "callback.plot_ph", handlerName("callback.plot ph"))
	assert.Equal(t, "unknown", handlerName(""))
}
