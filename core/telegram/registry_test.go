package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Command{Name: "/start", Description: "Start", Handler: noop}))
	require.NoError(t, reg.Register(Command{Name: "/history", Description: "History", Handler: noop, Aliases: []string{"hist"}}))
	require.NoError(t, reg.Register(Command{Name: "/backup", Description: "Backup", Handler: noop, AdminOnly: true}))
	require.NoError(t, reg.Register(Command{Name: "/debug", Description: "Debug", Handler: noop, Hidden: true}))

	assert.Error(t, reg.Register(Command{Name: "/start", Description: "again", Handler: noop}))
	assert.Error(t, reg.Register(Command{Name: "start", Description: "x", Handler: noop}))
	assert.Error(t, reg.Register(Command{Name: "/x", Description: "x"}))
	assert.Error(t, reg.Register(Command{Name: "/y", Handler: noop}))

	var names []string
	for _, c := range reg.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"/start", "/history", "/backup", "/debug"}, names)
	assert.Equal(t, []tele.Command{
		{Text: "start", Description: "Start"},
		{Text: "history", Description: "History"},
	}, reg.Menu())

	for _, text := range []string{"/history", "history", " hist "} {
		c, ok := reg.Lookup(text)
		require.True(t, ok, text)
		assert.Equal(t, "/history", c.Name)
	}
	_, ok := reg.Lookup("predict")
	assert.False(t, ok)
	_, ok = reg.Lookup("")
	assert.False(t, ok)
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.HandleCallback("plot", noop))
	require.NoError(t, reg.HandleCallback("dlg_cancel", noop))
	assert.Error(t, reg.HandleCallback("plot", noop))
	assert.Error(t, reg.HandleCallback("", noop))
	assert.Error(t, reg.HandleCallback("x", nil))

	_, ok := reg.Callback("plot")
	assert.True(t, ok)
	_, ok = reg.Callback("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"dlg_cancel", "plot"}, reg.CallbackKeys())
}
