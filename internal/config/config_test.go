package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
telegram:
  token: file-token
  run_mode: longpoll
database:
  host: localhost
  name: newsmarket
  user: bot
bot:
  username: "@NewsMarketBot"
state:
  storage: SQLite
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app?sslmode=disable")
	t.Setenv("BOT_REPORT_THRESHOLD", "5")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, "secret", cfg.AI.APIKey)
	assert.Equal(t, "postgres://u:p@db:5432/app?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "NewsMarketBot", cfg.Bot.Username)
	assert.Equal(t, 5, cfg.Bot.ReportThreshold)
	assert.Equal(t, 72*time.Hour, cfg.Bot.NewsTTL())
	assert.Equal(t, 45*time.Second, cfg.AI.Timeout())
	assert.Equal(t, StateSQLite, cfg.State.Storage)
	assert.Equal(t, "data/fsm.db", cfg.State.SQLitePath)
	assert.Equal(t, "cancel", cfg.Bot.CancelWord)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]string{
		"no username": "telegram: {token: t}\ndatabase: {url: 'postgres://x/y'}\n",
		"no database": "telegram: {token: t}\nbot: {username: b}\n",
		"bad state":   "telegram: {token: t}\ndatabase: {url: 'postgres://x/y'}\nbot: {username: b}\nstate: {storage: redis}\n",
		"no token":    "database: {url: 'postgres://x/y'}\nbot: {username: b}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
