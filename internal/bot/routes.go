package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/m3rciful/synthbot/core/telegram"
	tghelpers "github.com/m3rciful/synthbot/core/telegram/helpers"
)

// Callback keys.
const (
	cbDialogCancel = "dlg_cancel"
	cbPlot         = "plot"
	cbWhitelistDel = "wl_del"
	cbModelMode    = "model_mode"
)

// Register adds every command and callback to reg.
func (h *Handlers) Register(reg *coretelegram.Registry) error {
	h.registry = reg

	user := []struct {
		name, desc string
		fn         handlerFunc
	}{
		{"/start", "Start the bot", h.start},
		{"/help", "List commands and the parameter format", h.help},
		{"/predict", "Predict size and PdI from synthesis parameters", h.predict},
		{"/add_result", "Enter measured size and PdI: /add_result <id>", h.addResult},
		{"/history", "Show recent experiments: /history [count]", h.history},
		{"/plot", "Plot size against a parameter: /plot [param] [reference id]", h.plot},
		{"/plot_correlation", "Plot measured against predicted size", h.plotCorrelation},
		{"/export_csv", "Export experiments as CSV: /export_csv [since]", h.exportCSV},
		{"/export_xlsx", "Export experiments as XLSX: /export_xlsx [since]", h.exportXLSX},
		{"/cancel", "Cancel the current dialog", h.cancel},
	}
	for _, c := range user {
		if err := reg.Register(coretelegram.Command{Name: c.name, Description: c.desc, Handler: h.wrap(c.fn)}); err != nil {
			return err
		}
	}

	admin := []struct {
		name, desc string
		fn         handlerFunc
	}{
		{"/whitelist", "List whitelisted users", h.whitelistList},
		{"/whitelist_add", "Whitelist a user: /whitelist_add <user id> [note]", h.whitelistAdd},
		{"/whitelist_del", "Remove a user: /whitelist_del <user id>", h.whitelistDel},
		{"/model", "Show the predictor configuration", h.model},
		{"/model_mode", "Switch predictor: /model_mode <process|formula>", h.modelMode},
		{"/model_test", "Run the predictor without saving: /model_test <params>", h.modelTest},
		{"/backup", "Create a database backup", h.backupCreate},
		{"/backups", "List database backups", h.backupList},
		{"/restore", "Restore a backup: /restore <name>", h.restore},
	}
	for _, c := range admin {
		cmd := coretelegram.Command{Name: c.name, Description: c.desc, Handler: h.wrap(c.fn), AdminOnly: true}
		if err := reg.Register(cmd); err != nil {
			return err
		}
	}

	cbs := map[string]handlerFunc{
		cbDialogCancel: h.cancel,
		cbPlot:         h.plotChoice,
		cbWhitelistDel: h.adminOnly(h.whitelistDelButton),
		cbModelMode:    h.adminOnly(h.modelModeButton),
	}
	for key, fn := range cbs {
		if err := reg.HandleCallback(key, h.wrap(fn)); err != nil {
			return err
		}
	}
	return nil
}

// InProgress implements router.Dialog.
func (h *Handlers) InProgress(userID int64) bool {
	return h.dialog.InProgress(userID)
}

// HandleText implements router.Dialog.
func (h *Handlers) HandleText(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return h.text(tghelpers.BuildContext(c), c.Sender().ID, c.Text(), newTeleChat(c))
}

func (h *Handlers) text(ctx context.Context, userID int64, text string, out chat) error {
	handled, err := h.dialog.HandleText(ctx, userID, text, out)
	if err != nil || handled {
		return err
	}
	// The session ended between the routing check and the handler.
	return out.Reply(ctx, msgUnknownText, nil)
}

func (h *Handlers) replyWith(text string) tele.HandlerFunc {
	return h.wrap(func(ctx context.Context, req request) error {
		return req.Out.Reply(ctx, text, nil)
	})
}

// UnknownText answers text outside any dialog.
func (h *Handlers) UnknownText() tele.HandlerFunc { return h.replyWith(msgUnknownText) }

// UnknownDocument answers file uploads.
func (h *Handlers) UnknownDocument() tele.HandlerFunc { return h.replyWith(msgUnknownDocument) }

// UnknownCallback answers stale buttons.
func (h *Handlers) UnknownCallback() tele.HandlerFunc { return h.replyWith(msgUnknownCallback) }

// AdminOnly answers non-admins calling admin commands.
func (h *Handlers) AdminOnly() tele.HandlerFunc { return h.replyWith(msgAdminOnly) }

// RateLimited answers users sending too fast.
func (h *Handlers) RateLimited() tele.HandlerFunc { return h.replyWith(msgRateLimited) }

// Unauthorized answers users who are not whitelisted.
func (h *Handlers) Unauthorized() tele.HandlerFunc {
	return h.wrap(func(ctx context.Context, req request) error {
		return req.Out.Reply(ctx, fmt.Sprintf(msgUnauthorized, req.UserID), nil)
	})
}
