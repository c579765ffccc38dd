package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDefaultsToLongpoll(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: " Polling "}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]*Config{
		"nil":          nil,
		"no token":     {},
		"bad mode":     {Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}},
		"webhook url":  {Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}},
		"webhook port": {Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}, Webhook: WebhookConfig{URL: "https://x", Listen: "0.0.0.0"}},
		"exclude":      {Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"edited"}}},
		"rotation":     {Telegram: TelegramConfig{Token: "t"}, Logging: LoggingConfig{MaxBackups: -1}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if err := Normalize(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNormalizeLowercasesExclusions(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback", "INLINE_QUERY"}},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback || cfg.RateLimit.ExcludeUpdates[1] != UpdateInlineQuery {
		t.Fatalf("unexpected exclusions: %v", cfg.RateLimit.ExcludeUpdates)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("telegram:\n  token: from-file\n  run_mode: longpoll\nlogging:\n  level: info\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}
