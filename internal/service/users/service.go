// Package users registers Telegram users, builds profiles and manages invites and feedback.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/m3rciful/newsmarket/core/logger"
	"github.com/m3rciful/newsmarket/internal/domain"
	"github.com/m3rciful/newsmarket/internal/storage/postgres"
)

const (
	component = "service.users"

	inviteCodeLen    = 8
	inviteAttempts   = 3
	feedbackMaxRunes = 2000
)

// Repository is the storage the service needs. *postgres.Store satisfies it.
type Repository interface {
	RegisterUser(ctx context.Context, tg domain.TelegramUser, inviteCode string) (postgres.Registration, error)
	UserByTelegramID(ctx context.Context, tgID int64) (domain.User, error)
	UserByID(ctx context.Context, id int64) (domain.User, error)
	Stats(ctx context.Context, userID int64) (domain.UserStats, error)
	SetLevel(ctx context.Context, userID int64, level domain.Level, badges []string) error
	CreateInvite(ctx context.Context, userID int64, code string) error
	AddFeedback(ctx context.Context, userID int64, message string) (int64, error)
	SellerRating(ctx context.Context, sellerID int64) (domain.SellerRating, error)
}

// Service implements user operations.
type Service struct {
	repo        Repository
	botUsername string
	newCode     func() string
}

// New builds a Service. botUsername is used for invite links.
func New(repo Repository, botUsername string) *Service {
	return &Service{
		repo:        repo,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		newCode:     func() string { return uuid.NewString()[:inviteCodeLen] },
	}
}

// Register upserts the sender and redeems payload as an invite code when it is one.
func (s *Service) Register(ctx context.Context, tg domain.TelegramUser, payload string) (postgres.Registration, error) {
	code := strings.TrimSpace(payload)
	if !looksLikeInvite(code) {
		code = ""
	}
	reg, err := s.repo.RegisterUser(ctx, tg, code)
	if err != nil {
		return postgres.Registration{}, fmt.Errorf("register: %w", err)
	}
	if reg.Created {
		logger.Info(ctx, component, "user.registered",
			slog.Int64("user_id", reg.User.ID),
			slog.Bool("invited", reg.InviterID != 0),
		)
	}
	if reg.InviterID != 0 {
		if _, err := s.RefreshLevel(ctx, reg.InviterID); err != nil {
			logger.Warn(ctx, component, "level.refresh.fail",
				slog.Int64("user_id", reg.InviterID),
				slog.String("err", err.Error()),
			)
		}
	}
	return reg, nil
}

func looksLikeInvite(code string) bool {
	if len(code) != inviteCodeLen {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// Resolve maps a Telegram id to the stored user.
func (s *Service) Resolve(ctx context.Context, tgID int64) (domain.User, error) {
	u, err := s.repo.UserByTelegramID(ctx, tgID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrNotRegistered
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve user: %w", err)
	}
	return u, nil
}

// GetUserByTelegramID is Resolve under the name the Telegram helpers look for.
func (s *Service) GetUserByTelegramID(ctx context.Context, tgID int64) (domain.User, error) {
	return s.Resolve(ctx, tgID)
}

// UserByID loads a user by internal id.
func (s *Service) UserByID(ctx context.Context, id int64) (domain.User, error) {
	return s.repo.UserByID(ctx, id)
}

// Profile returns the user with counters and seller rating.
func (s *Service) Profile(ctx context.Context, tgID int64) (domain.Profile, error) {
	u, err := s.Resolve(ctx, tgID)
	if err != nil {
		return domain.Profile{}, err
	}
	st, err := s.repo.Stats(ctx, u.ID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile: %w", err)
	}
	rating, err := s.repo.SellerRating(ctx, u.ID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile: %w", err)
	}
	return domain.Profile{User: u, Stats: st, Rating: rating}, nil
}

// CreateInvite stores a fresh invite code and returns the deep link.
func (s *Service) CreateInvite(ctx context.Context, userID int64) (string, error) {
	for i := 0; i < inviteAttempts; i++ {
		code := s.newCode()
		err := s.repo.CreateInvite(ctx, userID, code)
		if errors.Is(err, domain.ErrDuplicate) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create invite: %w", err)
		}
		return s.Link(code), nil
	}
	return "", fmt.Errorf("create invite: %w", domain.ErrConflict)
}

// Link builds a t.me deep link carrying payload.
func (s *Service) Link(payload string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, payload)
}

// Feedback stores a message for the operators.
func (s *Service) Feedback(ctx context.Context, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Invalid("feedback", "must not be empty")
	}
	if utf8.RuneCountInString(text) > feedbackMaxRunes {
		return domain.Invalid("feedback", "must be at most 2000 characters")
	}
	id, err := s.repo.AddFeedback(ctx, userID, text)
	if err != nil {
		return fmt.Errorf("feedback: %w", err)
	}
	logger.Info(ctx, component, "feedback.saved", slog.Int64("feedback_id", id), slog.Int64("user_id", userID))
	return nil
}

// RefreshLevel recomputes level and badges from the current counters and stores them when changed.
func (s *Service) RefreshLevel(ctx context.Context, userID int64) (domain.Level, error) {
	u, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("refresh level: %w", err)
	}
	st, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("refresh level: %w", err)
	}
	level := domain.ComputeLevel(st)
	badges := domain.AwardBadges(u.Badges, st)
	if level == u.Level && len(badges) == len(u.Badges) {
		return level, nil
	}
	if err := s.repo.SetLevel(ctx, userID, level, badges); err != nil {
		return "", fmt.Errorf("refresh level: %w", err)
	}
	logger.Info(ctx, component, "level.updated",
		slog.Int64("user_id", userID),
		slog.String("level", string(level)),
		slog.Int("badges", len(badges)),
	)
	return level, nil
}
