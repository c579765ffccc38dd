// Package bootstrap brings up the shared infrastructure every bot needs
// before its own wiring runs: logging, the database pool and the schema.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/newsmarket/core/config"
	coredatabase "github.com/m3rciful/newsmarket/core/database"
	"github.com/m3rciful/newsmarket/core/logger"
)

var errNoConfig = errors.New("bootstrap: nil config provided")

// Options select the config and, for tests, replace individual steps.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// SkipMigrations leaves the schema to a separate `migrate` run.
	SkipMigrations bool

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Result owns the infrastructure created by Run.
type Result struct {
	DB *sqlx.DB
}

// Close releases the database pool. It is safe on a nil Result.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initialises logging, opens the database and migrates it unless
// SkipMigrations is set. On failure nothing is left open.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errNoConfig
	}
	opts.defaults()
	start := time.Now()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if !opts.SkipMigrations {
		if err := opts.Migrate(opts.Database); err != nil {
			return nil, errors.Join(fmt.Errorf("bootstrap: migrations failed: %w", err), db.Close())
		}
	}
	logger.Info(context.Background(), "app", "bootstrap.ready",
		slog.Bool("migrations_skipped", opts.SkipMigrations),
		slog.Duration("duration", time.Since(start)),
	)
	return &Result{DB: db}, nil
}
