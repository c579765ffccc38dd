// Package config holds the application configuration: the reusable core
// sections plus database, AI, bot, health, state and sender settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/newsmarket/core/config"
	coredatabase "github.com/m3rciful/newsmarket/core/database"
)

// AIConfig configures the generative text client.
type AIConfig struct {
	APIKey         string `yaml:"api_key" envconfig:"API_KEY"`
	Model          string `yaml:"model" envconfig:"MODEL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"TIMEOUT_SECONDS"`
	MaxConcurrent  int    `yaml:"max_concurrent" envconfig:"MAX_CONCURRENT"`
	// Language is passed to every prompt template as {{.lang}}.
	Language string `yaml:"language" envconfig:"LANGUAGE"`
}

// Timeout returns the per-call deadline.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BotConfig holds product settings of the bot itself.
type BotConfig struct {
	Username        string `yaml:"username" envconfig:"USERNAME"`
	CancelWord      string `yaml:"cancel_word" envconfig:"CANCEL_WORD"`
	NewsTTLHours    int    `yaml:"news_ttl_hours" envconfig:"NEWS_TTL_HOURS"`
	ReportThreshold int    `yaml:"report_threshold" envconfig:"REPORT_THRESHOLD"`
	PageSize        int    `yaml:"page_size" envconfig:"PAGE_SIZE"`
	Currency        string `yaml:"currency" envconfig:"CURRENCY"`
}

// NewsTTL returns how long published news stays in feeds.
func (c BotConfig) NewsTTL() time.Duration {
	return time.Duration(c.NewsTTLHours) * time.Hour
}

// HealthConfig configures the HTTP health endpoint.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"LISTEN"`
}

// StateConfig selects the conversation state backend.
type StateConfig struct {
	Storage    string `yaml:"storage" envconfig:"STORAGE"`
	SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	TTLMinutes int    `yaml:"ttl_minutes" envconfig:"TTL_MINUTES"`
}

// SenderConfig tunes the outbound message dispatcher.
type SenderConfig struct {
	Workers    int `yaml:"workers" envconfig:"WORKERS"`
	QueueSize  int `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
	MaxRetries int `yaml:"max_retries" envconfig:"MAX_RETRIES"`
}

// State storage backends.
const (
	StateMemory = "memory"
	StateSQLite = "sqlite"
)

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database" envconfig:"DATABASE"`
	AI       AIConfig            `yaml:"ai" envconfig:"GEMINI"`
	Bot      BotConfig           `yaml:"bot" envconfig:"BOT"`
	Health   HealthConfig        `yaml:"health" envconfig:"HEALTH"`
	State    StateConfig         `yaml:"state" envconfig:"STATE"`
	Sender   SenderConfig        `yaml:"sender" envconfig:"SENDER"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads the YAML file at path, applies env overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and validates app sections after the core ones.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.0-flash"
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 45
	}
	if c.AI.MaxConcurrent <= 0 {
		c.AI.MaxConcurrent = 4
	}
	if c.AI.Language == "" {
		c.AI.Language = "English"
	}

	c.Bot.Username = strings.TrimPrefix(strings.TrimSpace(c.Bot.Username), "@")
	if c.Bot.Username == "" {
		return fmt.Errorf("bot.username is required for deep links")
	}
	if strings.TrimSpace(c.Bot.CancelWord) == "" {
		c.Bot.CancelWord = "cancel"
	}
	if c.Bot.NewsTTLHours <= 0 {
		c.Bot.NewsTTLHours = 72
	}
	if c.Bot.ReportThreshold <= 0 {
		c.Bot.ReportThreshold = 3
	}
	if c.Bot.PageSize <= 0 || c.Bot.PageSize > 50 {
		c.Bot.PageSize = 5
	}
	if c.Bot.Currency == "" {
		c.Bot.Currency = "EUR"
	}

	switch s := strings.ToLower(strings.TrimSpace(c.State.Storage)); s {
	case "", StateMemory:
		c.State.Storage = StateMemory
	case StateSQLite:
		c.State.Storage = s
		if c.State.SQLitePath == "" {
			c.State.SQLitePath = "data/fsm.db"
		}
	default:
		return fmt.Errorf("invalid state.storage %q; allowed: memory, sqlite", c.State.Storage)
	}
	if c.State.TTLMinutes < 0 {
		return fmt.Errorf("state.ttl_minutes must be >= 0")
	}
	if c.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender.max_retries must be >= 0")
	}
	return nil
}
