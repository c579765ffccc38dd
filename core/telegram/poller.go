package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/newsmarket/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

func longPollTimeout(tc coreconfig.TelegramConfig) time.Duration {
	if tc.LongPollTimeoutSeconds <= 0 {
		return defaultLongPollTimeout
	}
	return time.Duration(tc.LongPollTimeoutSeconds) * time.Second
}

// BuildPoller returns a webhook listener when run_mode is webhook and a long poller otherwise.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(cfg.Telegram.RunMode), coreconfig.RunModeWebhook) {
		wh := cfg.Webhook
		return &tele.Webhook{
			Listen:      net.JoinHostPort(wh.Listen, strconv.Itoa(wh.Port)),
			SecretToken: wh.SecretToken,
			Endpoint:    &tele.WebhookEndpoint{PublicURL: wh.URL},
		}
	}
	return &tele.LongPoller{Timeout: longPollTimeout(cfg.Telegram)}
}
