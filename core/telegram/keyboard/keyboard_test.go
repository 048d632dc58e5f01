package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid(t *testing.T) {
	buttons := []Button{
		{Text: "Eu", Unique: "plot", Data: "eu"},
		{Text: "pH", Unique: "plot", Data: "ph"},
		{Text: "Time", Unique: "plot", Data: "time"},
	}

	m := Grid(2, buttons...)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	require.Len(t, m.InlineKeyboard[1], 1)
	last := m.InlineKeyboard[1][0]
	assert.Equal(t, "Time", last.Text)
	assert.Equal(t, "plot", last.Unique)
	assert.Equal(t, "time", last.Data)

	assert.Len(t, Grid(0, buttons...).InlineKeyboard, 3)
	assert.Empty(t, Grid(3).InlineKeyboard)
}

func TestCancel(t *testing.T) {
	m := Cancel("dlg_cancel")
	require.Len(t, m.InlineKeyboard, 1)
	btn := m.InlineKeyboard[0][0]
	assert.Equal(t, CancelText, btn.Text)
	assert.Equal(t, "dlg_cancel", btn.Unique)
	assert.Equal(t, "cancel", btn.Data)
}
