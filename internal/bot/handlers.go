package bot

import (
	"context"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/m3rciful/synthbot/core/telegram"
	"github.com/m3rciful/synthbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/synthbot/core/telegram/helpers"
	"github.com/m3rciful/synthbot/internal/access"
	"github.com/m3rciful/synthbot/internal/backup"
	"github.com/m3rciful/synthbot/internal/dialog"
	"github.com/m3rciful/synthbot/internal/experiments"
	"github.com/m3rciful/synthbot/internal/params"
	"github.com/m3rciful/synthbot/internal/predictor"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

type conversation interface {
	InProgress(userID int64) bool
	StartPrediction(ctx context.Context, userID int64, r dialog.Responder) error
	StartResultEntry(ctx context.Context, userID int64, experimentID string, r dialog.Responder) error
	Cancel(ctx context.Context, userID int64, r dialog.Responder) error
	HandleText(ctx context.Context, userID int64, text string, r dialog.Responder) (bool, error)
}

type whitelistStore interface {
	Add(ctx context.Context, userID, addedBy int64, note string) error
	Remove(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]access.Entry, error)
}

type modelControl interface {
	Mode() predictor.Mode
	SetMode(m predictor.Mode) error
	Predict(ctx context.Context, rec params.Record) (predictor.Result, error)
}

type backupService interface {
	Create(ctx context.Context) (backup.Backup, error)
	List() ([]backup.Backup, error)
	Restore(ctx context.Context, name string) error
}

// ModelInfo describes the configured process predictor for /model.
type ModelInfo struct {
	Command string
	Timeout time.Duration
}

// Options wires Handlers to the domain services.
type Options struct {
	Dialog           conversation
	Experiments      experiments.Repository
	Whitelist        whitelistStore
	WhitelistEnabled bool
	Models           modelControl
	ModelInfo        ModelInfo
	Backups          backupService
	IsAdmin          func(userID int64) bool
	ExportMaxRows    int
}

// Handlers implements every command, callback and text route of the bot.
type Handlers struct {
	dialog           conversation
	repo             experiments.Repository
	whitelist        whitelistStore
	whitelistEnabled bool
	models           modelControl
	modelInfo        ModelInfo
	backups          backupService
	isAdmin          func(int64) bool
	exportMaxRows    int
	registry         *coretelegram.Registry
	now              func() time.Time
}

// NewHandlers constructs Handlers.
func NewHandlers(opts Options) *Handlers {
	isAdmin := opts.IsAdmin
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &Handlers{
		dialog:           opts.Dialog,
		repo:             opts.Experiments,
		whitelist:        opts.Whitelist,
		whitelistEnabled: opts.WhitelistEnabled,
		models:           opts.Models,
		modelInfo:        opts.ModelInfo,
		backups:          opts.Backups,
		isAdmin:          isAdmin,
		exportMaxRows:    opts.ExportMaxRows,
		now:              time.Now,
	}
}

// request is one inbound update reduced to what handlers need.
type request struct {
	UserID  int64
	Args    []string
	Payload string
	Out     chat
}

type handlerFunc func(ctx context.Context, req request) error

func (h *Handlers) wrap(fn handlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		user := c.Sender()
		if user == nil {
			return nil
		}
		req := request{UserID: user.ID, Out: newTeleChat(c)}
		if c.Callback() != nil {
			req.Payload = callbacks.CallbackPayload(c)
		} else {
			req.Args = c.Args()
		}
		return fn(tghelpers.BuildContext(c), req)
	}
}

// adminOnly guards callbacks; commands are guarded by the router.
func (h *Handlers) adminOnly(fn handlerFunc) handlerFunc {
	return func(ctx context.Context, req request) error {
		if !h.isAdmin(req.UserID) {
			return req.Out.Reply(ctx, msgAdminOnly, nil)
		}
		return fn(ctx, req)
	}
}

// replyLong sends text split at blank lines into messages under the Telegram limit.
func replyLong(ctx context.Context, out chat, text string) error {
	for _, part := range splitMessage(text, maxMessageLen) {
		if err := out.Reply(ctx, part, nil); err != nil {
			return err
		}
	}
	return nil
}

func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var (
		parts []string
		cur   strings.Builder
	)
	for _, block := range strings.SplitAfter(text, "\n\n") {
		if cur.Len() > 0 && cur.Len()+len(block) > limit {
			parts = append(parts, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
		for len(block) > limit {
			parts = append(parts, block[:limit])
			block = block[limit:]
		}
		cur.WriteString(block)
	}
	if cur.Len() > 0 {
		parts = append(parts, strings.TrimRight(cur.String(), "\n"))
	}
	return parts
}
