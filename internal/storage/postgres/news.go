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

const newsColumns = `id, title, content, link, source, file_id, media_type, moderation_status, published_at, expires_at`

// NextUnseen returns the newest approved, unexpired news the user has not viewed whose
// title or content contains any of the user's lowercased keywords as a plain substring.
// No keywords match everything.
func (s *Store) NextUnseen(ctx context.Context, userID int64, now time.Time) (domain.News, error) {
	var n domain.News
	err := s.q.GetContext(ctx, &n, `
		WITH kw AS (
			SELECT COALESCE((SELECT keywords FROM filters WHERE user_id = $1), '{}'::text[]) AS k
		)
		SELECT `+newsColumns+` FROM news, kw
		WHERE moderation_status = 'approved'
		  AND expires_at > $2
		  AND NOT EXISTS (SELECT 1 FROM user_news_views v WHERE v.user_id = $1 AND v.news_id = news.id)
		  AND (COALESCE(array_length(kw.k, 1), 0) = 0
		       OR EXISTS (SELECT 1 FROM unnest(kw.k) AS x
		                  WHERE strpos(lower(content), x) > 0 OR strpos(lower(title), x) > 0))
		ORDER BY published_at DESC, id DESC
		LIMIT 1`, userID, now)
	if err != nil {
		return domain.News{}, notFound("next unseen news", err)
	}
	return n, nil
}

// MarkViewed records a view and bumps the viewed counter on the first view only.
func (s *Store) MarkViewed(ctx context.Context, userID, newsID int64) (bool, error) {
	var first bool
	err := s.withTx(ctx, "mark viewed", func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `
			INSERT INTO user_news_views (user_id, news_id, viewed) VALUES ($1, $2, TRUE)
			ON CONFLICT (user_id, news_id) DO NOTHING`, userID, newsID)
		if err != nil {
			return fmt.Errorf("mark viewed: %w", err)
		}
		n, _ := res.RowsAffected()
		if first = n > 0; !first {
			return nil
		}
		return tx.IncrementStat(ctx, userID, CounterViewed)
	})
	return first, err
}

// NewsByID loads a news item regardless of moderation status.
func (s *Store) NewsByID(ctx context.Context, id int64) (domain.News, error) {
	var n domain.News
	if err := s.q.GetContext(ctx, &n, `SELECT `+newsColumns+` FROM news WHERE id = $1`, id); err != nil {
		return domain.News{}, notFound("news by id", err)
	}
	return n, nil
}

// InsertNews stores a news item and returns its id.
func (s *Store) InsertNews(ctx context.Context, n domain.News) (int64, error) {
	var id int64
	err := s.q.GetContext(ctx, &id, `
		INSERT INTO news (title, content, link, source, file_id, media_type, moderation_status, published_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		n.Title, n.Content, n.Link, n.Source, n.FileID, n.MediaType, string(n.Status), n.PublishedAt, n.ExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("insert news: %w", err)
	}
	return id, nil
}

// AddBookmark saves news for a user; it reports false when it was already saved.
func (s *Store) AddBookmark(ctx context.Context, userID, newsID int64) (bool, error) {
	var added bool
	err := s.withTx(ctx, "add bookmark", func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `
			INSERT INTO bookmarks (user_id, news_id) VALUES ($1, $2)
			ON CONFLICT (user_id, news_id) DO NOTHING`, userID, newsID)
		if err != nil {
			return fmt.Errorf("add bookmark: %w", err)
		}
		n, _ := res.RowsAffected()
		if added = n > 0; !added {
			return nil
		}
		return tx.IncrementStat(ctx, userID, CounterSaved)
	})
	return added, err
}

// Bookmarks lists saved news, newest first.
func (s *Store) Bookmarks(ctx context.Context, userID int64, limit int) ([]domain.BookmarkItem, error) {
	var items []domain.BookmarkItem
	err := s.q.SelectContext(ctx, &items, `
		SELECT n.id, n.title FROM news n JOIN bookmarks b ON n.id = b.news_id
		WHERE b.user_id = $1 ORDER BY b.created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("bookmarks: %w", err)
	}
	return items, nil
}

// Trending ranks approved news still live at now by views recorded since the given moment.
func (s *Store) Trending(ctx context.Context, since, now time.Time, limit int) ([]domain.TrendingItem, error) {
	var items []domain.TrendingItem
	err := s.q.SelectContext(ctx, &items, `
		SELECT n.id, n.title, COUNT(v.id) AS views
		FROM news n JOIN user_news_views v ON n.id = v.news_id
		WHERE v.first_viewed_at > $1 AND n.moderation_status = 'approved' AND n.expires_at > $2
		GROUP BY n.id, n.title ORDER BY views DESC, n.id DESC LIMIT $3`, since, now, limit)
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}
	return items, nil
}

// Summary returns a cached AI summary; ok is false on a miss.
func (s *Store) Summary(ctx context.Context, newsID int64) (string, bool, error) {
	var text string
	err := s.q.GetContext(ctx, &text, `SELECT summary FROM summaries WHERE news_id = $1`, newsID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("summary: %w", err)
	}
	return text, true, nil
}

// SaveSummary caches a summary; the first writer wins.
func (s *Store) SaveSummary(ctx context.Context, newsID int64, text string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO summaries (news_id, summary) VALUES ($1, $2)
		ON CONFLICT (news_id) DO NOTHING`, newsID, text)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// Keywords returns the user's feed filter.
func (s *Store) Keywords(ctx context.Context, userID int64) ([]string, error) {
	var kw pq.StringArray
	err := s.q.GetContext(ctx, &kw, `SELECT keywords FROM filters WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}
	return []string(kw), nil
}

// SetKeywords replaces the user's feed filter.
func (s *Store) SetKeywords(ctx context.Context, userID int64, keywords []string) error {
	if keywords == nil {
		keywords = []string{}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO filters (user_id, keywords, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET keywords = EXCLUDED.keywords, updated_at = NOW()`,
		userID, pq.StringArray(keywords))
	if err != nil {
		return fmt.Errorf("set keywords: %w", err)
	}
	return nil
}

// AddComment stores a comment and bumps the author's counter.
func (s *Store) AddComment(ctx context.Context, userID, newsID int64, content string) (int64, error) {
	var id int64
	err := s.withTx(ctx, "add comment", func(tx *Store) error {
		if err := tx.q.GetContext(ctx, &id, `
			INSERT INTO comments (news_id, user_id, content) VALUES ($1, $2, $3) RETURNING id`,
			newsID, userID, content); err != nil {
			return fmt.Errorf("add comment: %w", err)
		}
		return tx.IncrementStat(ctx, userID, CounterComments)
	})
	return id, err
}

// Comments returns the latest comments of a news item with author names.
func (s *Store) Comments(ctx context.Context, newsID int64, limit int) ([]domain.Comment, error) {
	var list []domain.Comment
	err := s.q.SelectContext(ctx, &list, `
		SELECT c.id, c.news_id, c.user_id, COALESCE(NULLIF(u.first_name, ''), u.username, '?') AS author,
		       c.content, c.created_at
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.news_id = $1 ORDER BY c.created_at DESC, c.id DESC LIMIT $2`, newsID, limit)
	if err != nil {
		return nil, fmt.Errorf("comments: %w", err)
	}
	return list, nil
}

// AddReport stores a complaint and returns the number of open reports on the news.
// A second report by the same user yields domain.ErrDuplicate.
func (s *Store) AddReport(ctx context.Context, userID, newsID int64, reason string) (int, error) {
	var open int
	err := s.withTx(ctx, "add report", func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `
			INSERT INTO reports (news_id, user_id, reason) VALUES ($1, $2, $3)
			ON CONFLICT (news_id, user_id) DO NOTHING`, newsID, userID, reason)
		if err != nil {
			return fmt.Errorf("add report: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("add report: %w", domain.ErrDuplicate)
		}
		return tx.q.GetContext(ctx, &open,
			`SELECT COUNT(*) FROM reports WHERE news_id = $1 AND NOT resolved`, newsID)
	})
	return open, err
}

// SetNewsStatus moves news from one moderation status to another.
// Approval resolves open reports in the same transaction.
func (s *Store) SetNewsStatus(ctx context.Context, id int64, from, to domain.ModerationStatus) error {
	return s.withTx(ctx, "set news status", func(tx *Store) error {
		if err := guarded(ctx, tx.q, "set news status", `
			UPDATE news SET moderation_status = $3 WHERE id = $1 AND moderation_status = $2`,
			id, string(from), string(to)); err != nil {
			return err
		}
		if to != domain.ModerationApproved {
			return nil
		}
		_, err := tx.q.ExecContext(ctx, `UPDATE reports SET resolved = TRUE WHERE news_id = $1 AND NOT resolved`, id)
		if err != nil {
			return fmt.Errorf("resolve reports: %w", err)
		}
		return nil
	})
}

// PendingNews lists news awaiting moderation, oldest first.
func (s *Store) PendingNews(ctx context.Context, limit int) ([]domain.News, error) {
	var list []domain.News
	err := s.q.SelectContext(ctx, &list, `
		SELECT `+newsColumns+` FROM news WHERE moderation_status = 'pending'
		ORDER BY published_at ASC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending news: %w", err)
	}
	return list, nil
}

// AddSource stores a suggested source; a known link reports false.
func (s *Store) AddSource(ctx context.Context, userID int64, link string, typ domain.SourceType) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO sources (link, type, added_by_user_id) VALUES ($1, $2, $3)
		ON CONFLICT (link) DO NOTHING`, link, string(typ), userID)
	if err != nil {
		return false, fmt.Errorf("add source: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PendingSources lists sources awaiting moderation.
func (s *Store) PendingSources(ctx context.Context, limit int) ([]domain.Source, error) {
	var list []domain.Source
	err := s.q.SelectContext(ctx, &list, `
		SELECT id, link, type, added_by_user_id, moderation_status, created_at
		FROM sources WHERE moderation_status = 'pending' ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending sources: %w", err)
	}
	return list, nil
}

// SetSourceStatus moves a source between moderation statuses.
func (s *Store) SetSourceStatus(ctx context.Context, id int64, from, to domain.ModerationStatus) error {
	return guarded(ctx, s.q, "set source status", `
		UPDATE sources SET moderation_status = $3 WHERE id = $1 AND moderation_status = $2`,
		id, string(from), string(to))
}

// Overview returns the admin counters.
func (s *Store) Overview(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	err := s.q.GetContext(ctx, &st, `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM users WHERE last_active > NOW() - INTERVAL '24 hours') AS active_today,
			(SELECT COUNT(*) FROM news) AS news,
			(SELECT COUNT(*) FROM news WHERE moderation_status = 'pending') AS pending_news,
			(SELECT COUNT(*) FROM sources WHERE moderation_status = 'pending') AS pending_sources,
			(SELECT COUNT(*) FROM listings WHERE status = 'active') AS active_listings,
			(SELECT COUNT(*) FROM listings WHERE status = 'pending') AS pending_listings,
			(SELECT COUNT(*) FROM deals WHERE status IN ('requested', 'confirmed')) AS open_deals,
			(SELECT COUNT(*) FROM feedback) AS feedback`)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("overview: %w", err)
	}
	return st, nil
}
