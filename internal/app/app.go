// Package app wires configuration, storage, services and the bot into a runnable application.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/newsmarket/core/bootstrap"
	"github.com/m3rciful/newsmarket/core/buildinfo"
	corecmd "github.com/m3rciful/newsmarket/core/cmd"
	"github.com/m3rciful/newsmarket/core/logger"
	tg "github.com/m3rciful/newsmarket/core/telegram"
	"github.com/m3rciful/newsmarket/core/telegram/sender"
	"github.com/m3rciful/newsmarket/core/telegram/state"
	"github.com/m3rciful/newsmarket/internal/ai"
	"github.com/m3rciful/newsmarket/internal/bot"
	"github.com/m3rciful/newsmarket/internal/config"
	"github.com/m3rciful/newsmarket/internal/health"
	"github.com/m3rciful/newsmarket/internal/service/market"
	"github.com/m3rciful/newsmarket/internal/service/news"
	"github.com/m3rciful/newsmarket/internal/service/users"
	"github.com/m3rciful/newsmarket/internal/storage/postgres"

	tele "gopkg.in/telebot.v4"
)

const component = "app"

var (
	_ corecmd.TelegramApp = (*App)(nil)
	_ corecmd.ServiceApp  = (*App)(nil)
	_ corecmd.Closer      = (*App)(nil)
)

// App owns every long-lived component of a running bot.
type App struct {
	cfg     *config.Config
	infra   *bootstrap.Result
	store   *postgres.Store
	stateDB *sql.DB
	bot     *bot.Bot
}

// Options tweak New for tests and the migrate command.
type Options struct {
	// SkipMigrations leaves the schema to a separate `migrate` run.
	SkipMigrations bool
}

// LoadConfig adapts config.Load to the runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	return config.Load(path)
}

// Bootstrap returns a runner hook building the App from a loaded config.
func Bootstrap(opts Options) func(corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	return func(c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
		cfg, ok := c.(*config.Config)
		if !ok {
			return nil, fmt.Errorf("app: unexpected config type %T", c)
		}
		a, err := New(context.Background(), cfg, opts)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

// New initialises logging and the database, then builds services and the bot.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:         cfg.CoreConfig(),
		Database:       cfg.Database,
		SkipMigrations: opts.SkipMigrations,
	})
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, infra: infra, store: postgres.New(infra.DB)}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	logger.Info(ctx, component, "app.built",
		slog.String("version", buildinfo.String()),
		slog.String("state", cfg.State.Storage),
		slog.Bool("ai", cfg.AI.APIKey != ""),
	)
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	aiSvc, err := NewAI(ctx, cfg.AI)
	if err != nil {
		return err
	}

	userSvc := users.New(a.store, cfg.Bot.Username)
	newsSvc := news.New(a.store, aiSvc, news.Options{
		TTL:             cfg.Bot.NewsTTL(),
		ReportThreshold: cfg.Bot.ReportThreshold,
	})
	notifier := bot.NewNotifier(userSvc, cfg.Bot.Currency)
	marketSvc := market.New(a.store, market.Options{
		Currency: cfg.Bot.Currency,
		PageSize: cfg.Bot.PageSize,
		Notifier: notifier,
	})

	fsm, err := a.stateManager()
	if err != nil {
		return err
	}

	a.bot, err = bot.New(bot.Deps{
		Users:      userSvc,
		News:       newsSvc,
		Market:     marketSvc,
		AI:         aiSvc,
		FSM:        fsm,
		Notifier:   notifier,
		AdminID:    cfg.Telegram.AdminID,
		CancelWord: cfg.Bot.CancelWord,
	})
	return err
}

// NewAI builds the prompt service on a Gemini client bounded to MaxConcurrent calls.
// Without an API key the service answers every prompt with ai.ErrUnavailable.
func NewAI(ctx context.Context, cfg config.AIConfig) (*ai.Service, error) {
	catalog, err := ai.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	client, err := ai.NewGenAIClient(ctx, ai.ClientOptions{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout(),
		HTTPClient: tg.BuildHTTPClient(tg.HTTPOptions{
			Timeout:         cfg.Timeout() + 5*time.Second,
			ResponseTimeout: cfg.Timeout(),
			RetryAttempts:   2,
		}),
	})
	if err != nil {
		return nil, err
	}
	return ai.NewService(ai.NewLimited(client, cfg.MaxConcurrent), catalog, cfg.Language), nil
}

func (a *App) stateManager() (state.Manager, error) {
	if a.cfg.State.Storage != config.StateSQLite {
		return state.NewMemoryManager(), nil
	}
	db, err := state.OpenSQLite(a.cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	a.stateDB = db
	return state.NewSQLiteManager(db, state.SQLiteOptions{
		TTL: time.Duration(a.cfg.State.TTLMinutes) * time.Minute,
	})
}

// TelegramRunOptions implements corecmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:   core,
		Registry: a.bot.Registry(),
		DispatcherOptions: sender.Options{
			Workers:    a.cfg.Sender.Workers,
			QueueSize:  a.cfg.Sender.QueueSize,
			MaxRetries: a.cfg.Sender.MaxRetries,
		},
		Middlewares: tg.DefaultMiddlewares(core, onRateLimited),
		Routes:      a.bot.Routes(),
		OnStart:     a.bot.OnStart,
	}, nil
}

// onRateLimited answers throttled button taps so the client stops spinning; throttled messages are dropped.
func onRateLimited(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&tele.CallbackResponse{Text: "Too fast, please slow down."})
}

// SideServices implements corecmd.ServiceApp; the health server runs when configured.
func (a *App) SideServices() []corecmd.SideService {
	if a.cfg.Health.Listen == "" {
		return nil
	}
	srv := health.New(health.Options{
		Listen:  a.cfg.Health.Listen,
		Version: buildinfo.Version,
		DB:      a.store,
	})
	return []corecmd.SideService{srv.Run}
}

// Close releases the state database and the Postgres pool.
func (a *App) Close() error {
	var errs []error
	if a.stateDB != nil {
		errs = append(errs, a.stateDB.Close())
	}
	errs = append(errs, a.infra.Close())
	return errors.Join(errs...)
}
