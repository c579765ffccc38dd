// Package postgres implements the repositories on PostgreSQL via sqlx and lib/pq.
// Multi-row state changes run in one transaction and use guarded updates
// (UPDATE ... WHERE status = expected); zero affected rows maps to domain.ErrConflict.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/newsmarket/core/logger"
	"github.com/m3rciful/newsmarket/internal/domain"
)

const uniqueViolation = "23505"

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Store bundles all repositories over one connection pool.
type Store struct {
	db *sqlx.DB
	q  queryer
}

// New wraps an open pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

// Ping checks connectivity for the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn with a Store bound to a transaction. Nested calls reuse the outer transaction.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *Store) error) error {
	if _, nested := s.q.(*sqlx.Tx); nested {
		return fn(s)
	}
	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		logger.Debug(ctx, "db", "tx.rollback",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	logger.Debug(ctx, "db", "tx.commit",
		slog.String("op", op),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound and wraps everything else with op.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// guarded executes an UPDATE that must affect exactly one row.
func guarded(ctx context.Context, q queryer, op, query string, args ...interface{}) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return nil
}
