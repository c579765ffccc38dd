package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/newsmarket/core/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestParseFlexibleDate(t *testing.T) {
	for _, in := range []string{"2025-03-09", "2025-3-9 14:30", "09.03.2025", "9.3.2025 08:00"} {
		got, ok := ParseFlexibleDate(in)
		require.True(t, ok, in)
		assert.Equal(t, 2025, got.Year(), in)
		assert.Equal(t, time.March, got.Month(), in)
		assert.Equal(t, 9, got.Day(), in)
	}
	_, ok := ParseFlexibleDate("tomorrow")
	assert.False(t, ok)
	_, ok = ParseFlexibleDateUnix(" ")
	assert.False(t, ok)
}

func TestParseDurationOrDate(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	got, ok := ParseExpiry("48h", now)
	require.True(t, ok)
	assert.Equal(t, now.Add(48*time.Hour), got)

	got, ok = ParseExpiry("3d", now)
	require.True(t, ok)
	assert.Equal(t, now.Add(72*time.Hour), got)

	_, ok = ParseExpiry("-2h", now)
	assert.False(t, ok)

	_, ok = ParseExpiry("2024-12-31", now)
	assert.False(t, ok, "past dates are rejected")
}

func TestBuildContextCachesMetadata(t *testing.T) {
	c := tele.NewContext(nil, tele.Update{
		ID:      77,
		Message: &tele.Message{Sender: &tele.User{ID: 5}, Chat: &tele.Chat{ID: 6}},
	})
	ctx := BuildContext(c)
	assert.Equal(t, int64(5), logger.UserIDFrom(ctx))
	assert.Equal(t, int64(6), logger.ChatIDFrom(ctx))

	again, ok := ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, ctx, again)
}

type userSvc struct{ err error }

func (u userSvc) GetUserByTelegramID(_ context.Context, id int64) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	return "user", nil
}

func TestCurrentUser(t *testing.T) {
	got, err := CurrentUser[string](context.Background(), userSvc{}, 1)
	require.NoError(t, err)
	assert.Equal(t, "user", got)

	boom := errors.New("missing")
	_, err = CurrentUser[string](context.Background(), userSvc{err: boom}, 1)
	assert.ErrorIs(t, err, boom)
}
