package helpers

import "context"

// UserLookup finds the application user behind a Telegram account.
type UserLookup[T any] interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (T, error)
}

// CurrentUser resolves telegramID through users. A nil lookup yields the zero value.
func CurrentUser[T any](ctx context.Context, users UserLookup[T], telegramID int64) (T, error) {
	if users == nil {
		var zero T
		return zero, nil
	}
	return users.GetUserByTelegramID(ctx, telegramID)
}
