package domain

import (
	"strings"
	"time"
)

// ModerationStatus gates visibility of news and sources.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

var moderationTransitions = map[ModerationStatus][]ModerationStatus{
	ModerationPending:  {ModerationApproved, ModerationRejected},
	ModerationApproved: {ModerationPending, ModerationRejected},
	ModerationRejected: {ModerationApproved},
}

// CanTransition reports whether moderation may move from s to to.
// Approved news returns to pending when reports pile up.
func (s ModerationStatus) CanTransition(to ModerationStatus) bool {
	return contains(moderationTransitions[s], to)
}

// Valid reports whether s is a known status.
func (s ModerationStatus) Valid() bool {
	_, ok := moderationTransitions[s]
	return ok
}

// MediaPhoto marks news carrying a Telegram photo file id.
const MediaPhoto = "photo"

// News is one aggregated item.
type News struct {
	ID          int64            `db:"id"`
	Title       string           `db:"title"`
	Content     string           `db:"content"`
	Link        *string          `db:"link"`
	Source      string           `db:"source"`
	FileID      *string          `db:"file_id"`
	MediaType   *string          `db:"media_type"`
	Status      ModerationStatus `db:"moderation_status"`
	PublishedAt time.Time        `db:"published_at"`
	ExpiresAt   time.Time        `db:"expires_at"`
}

// HasPhoto reports whether the card should be sent as a photo.
func (n News) HasPhoto() bool {
	return n.FileID != nil && *n.FileID != "" && n.MediaType != nil && *n.MediaType == MediaPhoto
}

// TrendingItem is a news title with its view count inside the trending window.
type TrendingItem struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
	Views int    `db:"views"`
}

// BookmarkItem is a saved news title.
type BookmarkItem struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
}

// Comment is a user remark on a news item.
type Comment struct {
	ID        int64     `db:"id"`
	NewsID    int64     `db:"news_id"`
	UserID    int64     `db:"user_id"`
	Author    string    `db:"author"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// Report is a complaint about a news item.
type Report struct {
	ID        int64     `db:"id"`
	NewsID    int64     `db:"news_id"`
	UserID    int64     `db:"user_id"`
	Reason    string    `db:"reason"`
	Resolved  bool      `db:"resolved"`
	CreatedAt time.Time `db:"created_at"`
}

// SourceType classifies a user-suggested source.
type SourceType string

const (
	SourceTelegram SourceType = "telegram"
	SourceRSS      SourceType = "rss"
	SourceWebsite  SourceType = "website"
)

// ClassifySource applies the substring rules: t.me wins, then rss or .xml, else website.
func ClassifySource(link string) SourceType {
	l := strings.ToLower(link)
	switch {
	case strings.Contains(l, "t.me"):
		return SourceTelegram
	case strings.Contains(l, "rss"), strings.Contains(l, ".xml"):
		return SourceRSS
	}
	return SourceWebsite
}

// Source is a suggested news origin awaiting moderation.
type Source struct {
	ID        int64            `db:"id"`
	Link      string           `db:"link"`
	Type      SourceType       `db:"type"`
	AddedBy   *int64           `db:"added_by_user_id"`
	Status    ModerationStatus `db:"moderation_status"`
	CreatedAt time.Time        `db:"created_at"`
}

// Stats is the admin overview.
type Stats struct {
	Users           int `db:"users"`
	ActiveToday     int `db:"active_today"`
	News            int `db:"news"`
	PendingNews     int `db:"pending_news"`
	PendingSources  int `db:"pending_sources"`
	ActiveListings  int `db:"active_listings"`
	PendingListings int `db:"pending_listings"`
	OpenDeals       int `db:"open_deals"`
	Feedback        int `db:"feedback"`
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
