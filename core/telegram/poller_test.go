package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/newsmarket/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongpoll(t *testing.T) {
	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: "longpoll"}}
	lp, ok := BuildPoller(cfg).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)

	cfg = &coreconfig.Config{Telegram: coreconfig.TelegramConfig{LongPollTimeoutSeconds: 25}}
	lp = BuildPoller(cfg).(*tele.LongPoller)
	assert.Equal(t, 25*time.Second, lp.Timeout)
}

func TestBuildPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{RunMode: " Webhook "},
		Webhook:  coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com/hook", SecretToken: "s3"},
	}
	wh, ok := BuildPoller(cfg).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "s3", wh.SecretToken)
	assert.Equal(t, "https://bot.example.com/hook", wh.Endpoint.PublicURL)
}
