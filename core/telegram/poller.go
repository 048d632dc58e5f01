package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/synthbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// allowedUpdates are the update types the bot handles; Telegram drops the rest
// server side.
var allowedUpdates = []string{"message", "callback_query"}

// newPoller picks the update source from cfg: a webhook listener when
// run_mode is webhook, long polling otherwise.
func newPoller(cfg *coreconfig.Config) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(cfg.Telegram.RunMode), coreconfig.RunModeWebhook) {
		wh := cfg.Webhook
		return &tele.Webhook{
			Listen:         net.JoinHostPort(wh.Listen, strconv.Itoa(wh.Port)),
			SecretToken:    wh.SecretToken,
			AllowedUpdates: allowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: wh.URL},
		}
	}
	timeout := defaultLongPollTimeout
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		timeout = time.Duration(s) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout, AllowedUpdates: allowedUpdates}
}
