package domain

import "time"

// User is a registered Telegram user.
type User struct {
	ID           int64
	TelegramID   int64
	Username     string
	FirstName    string
	LanguageCode string
	InviterID    *int64
	Level        Level
	Badges       []string
	CreatedAt    time.Time
	LastActive   time.Time
}

// UserStats are the engagement counters shown in the profile.
type UserStats struct {
	UserID   int64 `db:"user_id"`
	Viewed   int   `db:"viewed"`
	Liked    int   `db:"liked_count"`
	Disliked int   `db:"disliked_count"`
	Saved    int   `db:"saved"`
	Comments int   `db:"comments"`
	Invited  int   `db:"invited"`
}

// Profile joins a user with their stats and marketplace rating.
type Profile struct {
	User   User
	Stats  UserStats
	Rating SellerRating
}

// Invite is a referral code created by a user.
type Invite struct {
	ID            int64      `db:"id"`
	UserID        int64      `db:"user_id"`
	Code          string     `db:"invite_code"`
	InvitedUserID *int64     `db:"invited_user_id"`
	CreatedAt     time.Time  `db:"created_at"`
	AcceptedAt    *time.Time `db:"accepted_at"`
}

// Feedback is a free-form message from a user to the operators.
type Feedback struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

// TelegramUser is the subset of the sender profile stored on registration.
type TelegramUser struct {
	ID           int64
	Username     string
	FirstName    string
	LanguageCode string
}
