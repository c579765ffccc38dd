package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/m3rciful/newsmarket/internal/domain"
)

type userRow struct {
	ID           int64          `db:"id"`
	TelegramID   int64          `db:"telegram_id"`
	Username     sql.NullString `db:"username"`
	FirstName    string         `db:"first_name"`
	LanguageCode sql.NullString `db:"language_code"`
	InviterID    sql.NullInt64  `db:"inviter_id"`
	Level        string         `db:"level"`
	Badges       pq.StringArray `db:"badges"`
	CreatedAt    time.Time      `db:"created_at"`
	LastActive   time.Time      `db:"last_active"`
}

func (r userRow) toDomain() domain.User {
	u := domain.User{
		ID:           r.ID,
		TelegramID:   r.TelegramID,
		Username:     r.Username.String,
		FirstName:    r.FirstName,
		LanguageCode: r.LanguageCode.String,
		Level:        domain.Level(r.Level),
		Badges:       []string(r.Badges),
		CreatedAt:    r.CreatedAt,
		LastActive:   r.LastActive,
	}
	if r.InviterID.Valid {
		id := r.InviterID.Int64
		u.InviterID = &id
	}
	return u
}

const userColumns = `id, telegram_id, username, first_name, language_code, inviter_id, level, badges, created_at, last_active`

// Registration is the outcome of RegisterUser.
type Registration struct {
	User    domain.User
	Created bool
	// InviterID is set when an unused invite code was redeemed by a new user.
	InviterID int64
}

// RegisterUser upserts the Telegram profile and redeems inviteCode for new users.
// Existing users keep their inviter; a code is redeemed at most once.
func (s *Store) RegisterUser(ctx context.Context, tg domain.TelegramUser, inviteCode string) (Registration, error) {
	var out Registration
	err := s.withTx(ctx, "register user", func(tx *Store) error {
		var invite *domain.Invite
		if inviteCode != "" {
			var inv domain.Invite
			err := tx.q.GetContext(ctx, &inv, `
				SELECT i.id, i.user_id, i.invite_code, i.invited_user_id, i.created_at, i.accepted_at
				FROM invites i JOIN users u ON u.id = i.user_id
				WHERE i.invite_code = $1 AND i.accepted_at IS NULL AND u.telegram_id <> $2
				FOR UPDATE OF i`, inviteCode, tg.ID)
			switch {
			case err == nil:
				invite = &inv
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("register user: invite lookup: %w", err)
			}
		}

		var inviterID sql.NullInt64
		if invite != nil {
			inviterID = sql.NullInt64{Int64: invite.UserID, Valid: true}
		}
		var row struct {
			userRow
			Inserted bool `db:"inserted"`
		}
		err := tx.q.GetContext(ctx, &row, `
			INSERT INTO users (telegram_id, username, first_name, language_code, inviter_id, last_active)
			VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, NOW())
			ON CONFLICT (telegram_id) DO UPDATE SET
				username = EXCLUDED.username,
				first_name = EXCLUDED.first_name,
				language_code = COALESCE(EXCLUDED.language_code, users.language_code),
				last_active = NOW()
			RETURNING `+userColumns+`, (xmax = 0) AS inserted`,
			tg.ID, tg.Username, tg.FirstName, tg.LanguageCode, inviterID)
		if err != nil {
			return fmt.Errorf("register user: upsert: %w", err)
		}
		out.User = row.userRow.toDomain()
		out.Created = row.Inserted

		if _, err := tx.q.ExecContext(ctx,
			`INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, out.User.ID); err != nil {
			return fmt.Errorf("register user: stats: %w", err)
		}

		if invite == nil || !out.Created {
			return nil
		}
		if err := guarded(ctx, tx.q, "register user: accept invite", `
			UPDATE invites SET accepted_at = NOW(), invited_user_id = $1
			WHERE id = $2 AND accepted_at IS NULL`, out.User.ID, invite.ID); err != nil {
			return err
		}
		if _, err := tx.q.ExecContext(ctx,
			`UPDATE user_stats SET invited = invited + 1 WHERE user_id = $1`, invite.UserID); err != nil {
			return fmt.Errorf("register user: inviter stats: %w", err)
		}
		out.InviterID = invite.UserID
		return nil
	})
	return out, err
}

// UserByTelegramID loads a registered user.
func (s *Store) UserByTelegramID(ctx context.Context, tgID int64) (domain.User, error) {
	var row userRow
	if err := s.q.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, tgID); err != nil {
		return domain.User{}, notFound("user by telegram id", err)
	}
	return row.toDomain(), nil
}

// UserByID loads a user by primary key.
func (s *Store) UserByID(ctx context.Context, id int64) (domain.User, error) {
	var row userRow
	if err := s.q.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return domain.User{}, notFound("user by id", err)
	}
	return row.toDomain(), nil
}

// Stats returns the engagement counters of a user.
func (s *Store) Stats(ctx context.Context, userID int64) (domain.UserStats, error) {
	var st domain.UserStats
	err := s.q.GetContext(ctx, &st, `
		SELECT user_id, viewed, liked_count, disliked_count, saved, comments, invited
		FROM user_stats WHERE user_id = $1`, userID)
	if err != nil {
		return domain.UserStats{}, notFound("user stats", err)
	}
	return st, nil
}

// Counter names a user_stats column that IncrementStat may touch.
type Counter string

const (
	CounterViewed   Counter = "viewed"
	CounterLiked    Counter = "liked_count"
	CounterDisliked Counter = "disliked_count"
	CounterSaved    Counter = "saved"
	CounterComments Counter = "comments"
)

// IncrementStat bumps one counter and the activity timestamp.
func (s *Store) IncrementStat(ctx context.Context, userID int64, c Counter) error {
	switch c {
	case CounterViewed, CounterLiked, CounterDisliked, CounterSaved, CounterComments:
	default:
		return fmt.Errorf("increment stat: unknown counter %q", c)
	}
	q := fmt.Sprintf(`UPDATE user_stats SET %[1]s = %[1]s + 1, last_active = NOW() WHERE user_id = $1`, c)
	if _, err := s.q.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("increment %s: %w", c, err)
	}
	return nil
}

// SetLevel stores the computed level and badges.
func (s *Store) SetLevel(ctx context.Context, userID int64, level domain.Level, badges []string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE users SET level = $2, badges = $3 WHERE id = $1`,
		userID, string(level), pq.StringArray(badges))
	if err != nil {
		return fmt.Errorf("set level: %w", err)
	}
	return nil
}

// CreateInvite stores a new invite code; a clashing code yields domain.ErrDuplicate.
func (s *Store) CreateInvite(ctx context.Context, userID int64, code string) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO invites (user_id, invite_code) VALUES ($1, $2)`, userID, code)
	if isUniqueViolation(err, "") {
		return fmt.Errorf("create invite: %w", domain.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

// AddFeedback stores a feedback message.
func (s *Store) AddFeedback(ctx context.Context, userID int64, message string) (int64, error) {
	var id int64
	err := s.q.GetContext(ctx, &id, `INSERT INTO feedback (user_id, message) VALUES ($1, $2) RETURNING id`, userID, message)
	if err != nil {
		return 0, fmt.Errorf("add feedback: %w", err)
	}
	return id, nil
}
