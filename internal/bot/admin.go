package bot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/synthbot/core/logger"
	"github.com/m3rciful/synthbot/core/telegram/keyboard"
	"github.com/m3rciful/synthbot/internal/access"
	"github.com/m3rciful/synthbot/internal/backup"
	"github.com/m3rciful/synthbot/internal/params"
	"github.com/m3rciful/synthbot/internal/predictor"
)

func (h *Handlers) whitelistList(ctx context.Context, req request) error {
	entries, err := h.whitelist.List(ctx)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	if len(entries) == 0 {
		text := msgWhitelistEmpty
		if !h.whitelistEnabled {
			text += "\n" + msgWhitelistDisabled
		}
		return req.Out.Reply(ctx, text, nil)
	}
	return req.Out.ReplyMD(ctx, formatWhitelist(entries, h.whitelistEnabled), whitelistKeyboard(entries))
}

func (h *Handlers) whitelistAdd(ctx context.Context, req request) error {
	if len(req.Args) == 0 {
		return req.Out.Reply(ctx, msgWhitelistAddUsage, nil)
	}
	id, ok := parseUserID(req.Args[0])
	if !ok {
		return req.Out.Reply(ctx, msgWhitelistAddUsage, nil)
	}
	note := strings.Join(req.Args[1:], " ")

	err := h.whitelist.Add(ctx, id, req.UserID, note)
	switch {
	case errors.Is(err, access.ErrAlreadyListed):
		return req.Out.Reply(ctx, fmt.Sprintf(msgWhitelistDuplicate, id), nil)
	case err != nil:
		return h.fail(ctx, req, err)
	}
	return req.Out.Reply(ctx, fmt.Sprintf(msgWhitelistAdded, id), nil)
}

func (h *Handlers) whitelistDel(ctx context.Context, req request) error {
	if len(req.Args) == 0 {
		return req.Out.Reply(ctx, msgWhitelistDelUsage, nil)
	}
	id, ok := parseUserID(req.Args[0])
	if !ok {
		return req.Out.Reply(ctx, msgWhitelistDelUsage, nil)
	}
	return h.removeFromWhitelist(ctx, req, id)
}

// whitelistDelButton handles the remove button under /whitelist.
func (h *Handlers) whitelistDelButton(ctx context.Context, req request) error {
	id, ok := parseUserID(req.Payload)
	if !ok {
		return req.Out.Reply(ctx, msgUnknownCallback, nil)
	}
	return h.removeFromWhitelist(ctx, req, id)
}

func (h *Handlers) removeFromWhitelist(ctx context.Context, req request, id int64) error {
	err := h.whitelist.Remove(ctx, id)
	switch {
	case errors.Is(err, access.ErrNotListed):
		return req.Out.Reply(ctx, fmt.Sprintf(msgWhitelistMissing, id), nil)
	case err != nil:
		return h.fail(ctx, req, err)
	}
	return req.Out.Reply(ctx, fmt.Sprintf(msgWhitelistRemoved, id), nil)
}

func (h *Handlers) model(ctx context.Context, req request) error {
	text := formatModel(h.models.Mode(), h.modelInfo.Command, h.modelInfo.Timeout)
	return req.Out.Reply(ctx, text, modelKeyboard())
}

func (h *Handlers) modelMode(ctx context.Context, req request) error {
	if len(req.Args) == 0 {
		return req.Out.Reply(ctx, msgModelModeUsage, nil)
	}
	return h.switchMode(ctx, req, req.Args[0])
}

// modelModeButton handles the mode buttons under /model.
func (h *Handlers) modelModeButton(ctx context.Context, req request) error {
	return h.switchMode(ctx, req, req.Payload)
}

func (h *Handlers) switchMode(ctx context.Context, req request, raw string) error {
	mode, err := predictor.ParseMode(raw)
	if err != nil {
		return req.Out.Reply(ctx, msgModelModeUsage, nil)
	}
	prev := h.models.Mode()
	if err := h.models.SetMode(mode); err != nil {
		return h.fail(ctx, req, err)
	}
	logger.Info(ctx, "service.predictor", "predictor.mode",
		slog.String("status", "ok"),
		slog.String("mode", string(mode)),
		slog.String("previous", string(prev)),
		slog.Int64("user_id", req.UserID),
	)
	return req.Out.Reply(ctx, fmt.Sprintf(msgModelModeSet, mode), nil)
}

func (h *Handlers) modelTest(ctx context.Context, req request) error {
	if len(req.Args) == 0 {
		return req.Out.Reply(ctx, msgModelTestUsage, nil)
	}
	rec, err := params.Parse(req.Args)
	if err != nil {
		return req.Out.Reply(ctx, "Invalid input: "+err.Error(), nil)
	}
	start := time.Now()
	res, err := h.models.Predict(ctx, rec)
	if err != nil {
		return req.Out.Reply(ctx, formatModelError(err), nil)
	}
	return req.Out.Reply(ctx, formatModelTest(rec, res, h.models.Mode(), time.Since(start)), nil)
}

func (h *Handlers) backupCreate(ctx context.Context, req request) error {
	bk, err := h.backups.Create(ctx)
	if err != nil {
		if rerr := req.Out.Reply(ctx, fmt.Sprintf(msgBackupFailed, err), nil); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return req.Out.Reply(ctx, formatBackupCreated(bk), nil)
}

func (h *Handlers) backupList(ctx context.Context, req request) error {
	list, err := h.backups.List()
	if err != nil {
		return h.fail(ctx, req, err)
	}
	if len(list) == 0 {
		return req.Out.Reply(ctx, msgBackupNone, nil)
	}
	return replyLong(ctx, req.Out, formatBackups(list))
}

func (h *Handlers) restore(ctx context.Context, req request) error {
	if len(req.Args) == 0 {
		return req.Out.Reply(ctx, msgRestoreUsage, nil)
	}
	name := req.Args[0]
	if _, err := req.Out.Send(ctx, fmt.Sprintf(msgRestoreStarted, name)); err != nil {
		return err
	}
	err := h.backups.Restore(ctx, name)
	switch {
	case errors.Is(err, backup.ErrInvalidName):
		return req.Out.Reply(ctx, fmt.Sprintf(msgRestoreInvalid, name), nil)
	case errors.Is(err, fs.ErrNotExist):
		return req.Out.Reply(ctx, fmt.Sprintf(msgRestoreMissing, name), nil)
	case err != nil:
		if rerr := req.Out.Reply(ctx, fmt.Sprintf(msgRestoreFailed, err), nil); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return req.Out.Reply(ctx, fmt.Sprintf(msgRestoreDone, name), nil)
}

func parseUserID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func whitelistKeyboard(entries []access.Entry) *tele.ReplyMarkup {
	buttons := make([]keyboard.Button, len(entries))
	for i, e := range entries {
		buttons[i] = keyboard.Button{
			Text:   fmt.Sprintf("Remove %d", e.UserID),
			Unique: cbWhitelistDel,
			Data:   strconv.FormatInt(e.UserID, 10),
		}
	}
	return keyboard.Grid(2, buttons...)
}

func modelKeyboard() *tele.ReplyMarkup {
	return keyboard.Grid(2,
		keyboard.Button{Text: "Process", Unique: cbModelMode, Data: string(predictor.ModeProcess)},
		keyboard.Button{Text: "Formula", Unique: cbModelMode, Data: string(predictor.ModeFormula)},
	)
}
