// Package news serves the personal feed, engagement actions, AI summaries,
// keyword filters, comments, reports and moderation.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/m3rciful/newsmarket/core/logger"
	"github.com/m3rciful/newsmarket/core/telegram/format"
	"github.com/m3rciful/newsmarket/internal/domain"
	"github.com/m3rciful/newsmarket/internal/storage/postgres"
)

const component = "service.news"

// Limits applied to user input and list sizes.
const (
	MaxKeywords      = 20
	KeywordMaxRunes  = 64
	CommentMaxRunes  = 1000
	ReasonMaxRunes   = 500
	LinkMaxRunes     = 500
	BookmarksLimit   = 20
	CommentsLimit    = 10
	TrendingLimit    = 5
	TrendingWindow   = 24 * time.Hour
	ModerationLimit  = 10
	DefaultTTL       = 72 * time.Hour
	DefaultThreshold = 3
)

// Repository is the storage the service needs. *postgres.Store satisfies it.
type Repository interface {
	NextUnseen(ctx context.Context, userID int64, now time.Time) (domain.News, error)
	MarkViewed(ctx context.Context, userID, newsID int64) (bool, error)
	NewsByID(ctx context.Context, id int64) (domain.News, error)
	InsertNews(ctx context.Context, n domain.News) (int64, error)
	IncrementStat(ctx context.Context, userID int64, c postgres.Counter) error
	AddBookmark(ctx context.Context, userID, newsID int64) (bool, error)
	Bookmarks(ctx context.Context, userID int64, limit int) ([]domain.BookmarkItem, error)
	Trending(ctx context.Context, since, now time.Time, limit int) ([]domain.TrendingItem, error)
	Summary(ctx context.Context, newsID int64) (string, bool, error)
	SaveSummary(ctx context.Context, newsID int64, text string) error
	Keywords(ctx context.Context, userID int64) ([]string, error)
	SetKeywords(ctx context.Context, userID int64, keywords []string) error
	AddComment(ctx context.Context, userID, newsID int64, content string) (int64, error)
	Comments(ctx context.Context, newsID int64, limit int) ([]domain.Comment, error)
	AddReport(ctx context.Context, userID, newsID int64, reason string) (int, error)
	SetNewsStatus(ctx context.Context, id int64, from, to domain.ModerationStatus) error
	PendingNews(ctx context.Context, limit int) ([]domain.News, error)
	AddSource(ctx context.Context, userID int64, link string, typ domain.SourceType) (bool, error)
	PendingSources(ctx context.Context, limit int) ([]domain.Source, error)
	SetSourceStatus(ctx context.Context, id int64, from, to domain.ModerationStatus) error
	Overview(ctx context.Context) (domain.Stats, error)
}

// Summarizer produces a short summary of a news text.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string) (string, error)
}

// Options tunes the service.
type Options struct {
	// TTL is how long published news stays in the feed.
	TTL time.Duration
	// ReportThreshold open reports send approved news back to moderation.
	ReportThreshold int
	Now             func() time.Time
}

// Service implements the news operations.
type Service struct {
	repo      Repository
	summarize Summarizer
	opts      Options
	lower     cases.Caser
	inflight  singleflight.Group
}

// New builds a Service; zero options take defaults.
func New(repo Repository, summarizer Summarizer, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ReportThreshold <= 0 {
		opts.ReportThreshold = DefaultThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: repo, summarize: summarizer, opts: opts, lower: cases.Lower(language.Und)}
}

// NextForUser returns the next unseen item of the personal feed and marks it viewed.
func (s *Service) NextForUser(ctx context.Context, userID int64) (domain.News, error) {
	n, err := s.repo.NextUnseen(ctx, userID, s.opts.Now())
	if err != nil {
		return domain.News{}, err
	}
	first, err := s.repo.MarkViewed(ctx, userID, n.ID)
	if err != nil {
		return domain.News{}, fmt.Errorf("next news: %w", err)
	}
	logger.Debug(ctx, component, "feed.next",
		slog.Int64("user_id", userID),
		slog.Int64("news_id", n.ID),
		slog.Bool("first_view", first),
	)
	return n, nil
}

// Get returns approved, unexpired news for deep links.
func (s *Service) Get(ctx context.Context, newsID int64) (domain.News, error) {
	n, err := s.repo.NewsByID(ctx, newsID)
	if err != nil {
		return domain.News{}, err
	}
	if n.Status != domain.ModerationApproved || !n.ExpiresAt.After(s.opts.Now()) {
		return domain.News{}, fmt.Errorf("news %d: %w", newsID, domain.ErrNotFound)
	}
	return n, nil
}

// Like counts a positive reaction.
func (s *Service) Like(ctx context.Context, userID int64) error {
	return s.repo.IncrementStat(ctx, userID, postgres.CounterLiked)
}

// Dislike counts a negative reaction.
func (s *Service) Dislike(ctx context.Context, userID int64) error {
	return s.repo.IncrementStat(ctx, userID, postgres.CounterDisliked)
}

// Save bookmarks news; added is false when it was already saved.
func (s *Service) Save(ctx context.Context, userID, newsID int64) (bool, error) {
	added, err := s.repo.AddBookmark(ctx, userID, newsID)
	if err != nil {
		return false, fmt.Errorf("save: %w", err)
	}
	return added, nil
}

// Bookmarks lists the user's latest saved news.
func (s *Service) Bookmarks(ctx context.Context, userID int64) ([]domain.BookmarkItem, error) {
	return s.repo.Bookmarks(ctx, userID, BookmarksLimit)
}

// Trending lists the most viewed unexpired news of the last day.
func (s *Service) Trending(ctx context.Context) ([]domain.TrendingItem, error) {
	now := s.opts.Now()
	return s.repo.Trending(ctx, now.Add(-TrendingWindow), now, TrendingLimit)
}

// Summary returns the cached AI summary or generates and caches a new one.
// Concurrent calls for the same news share one generation.
func (s *Service) Summary(ctx context.Context, newsID int64) (string, error) {
	if text, ok, err := s.repo.Summary(ctx, newsID); err != nil {
		return "", err
	} else if ok {
		return text, nil
	}
	v, err, shared := s.inflight.Do(strconv.FormatInt(newsID, 10), func() (interface{}, error) {
		// Detached so one caller leaving does not fail the others.
		ctx := context.WithoutCancel(ctx)
		n, err := s.repo.NewsByID(ctx, newsID)
		if err != nil {
			return "", err
		}
		text, err := s.summarize.Summarize(ctx, n.Title, n.Content)
		if err != nil {
			return "", err
		}
		if err := s.repo.SaveSummary(ctx, newsID, text); err != nil {
			logger.Warn(ctx, component, "summary.cache.fail",
				slog.Int64("news_id", newsID),
				slog.String("err", err.Error()),
			)
		}
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	logger.Debug(ctx, component, "summary.generated", slog.Int64("news_id", newsID), slog.Bool("shared", shared))
	return v.(string), nil
}

// Keywords returns the user's feed filter.
func (s *Service) Keywords(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.Keywords(ctx, userID)
}

// NormalizeKeyword collapses spaces in kw, lowercases it and validates its length.
func (s *Service) NormalizeKeyword(kw string) (string, error) {
	kw = s.lower.String(strings.Join(strings.Fields(kw), " "))
	if kw == "" {
		return "", domain.Invalid("keyword", "must not be empty")
	}
	if utf8.RuneCountInString(kw) > KeywordMaxRunes {
		return "", domain.Invalid("keyword", "must be at most 64 characters")
	}
	return kw, nil
}

// AddKeyword appends kw to the filter; adding a known keyword is a no-op.
func (s *Service) AddKeyword(ctx context.Context, userID int64, kw string) ([]string, error) {
	kw, err := s.NormalizeKeyword(kw)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.Keywords(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, k := range list {
		if k == kw {
			return list, nil
		}
	}
	if len(list) >= MaxKeywords {
		return nil, domain.Invalid("keyword", "at most 20 keywords")
	}
	list = append(list, kw)
	if err := s.repo.SetKeywords(ctx, userID, list); err != nil {
		return nil, err
	}
	return list, nil
}

// RemoveKeyword drops kw from the filter.
func (s *Service) RemoveKeyword(ctx context.Context, userID int64, kw string) ([]string, error) {
	kw, err := s.NormalizeKeyword(kw)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.Keywords(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, k := range list {
		if k != kw {
			out = append(out, k)
		}
	}
	if err := s.repo.SetKeywords(ctx, userID, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearKeywords empties the filter so the feed shows everything.
func (s *Service) ClearKeywords(ctx context.Context, userID int64) error {
	return s.repo.SetKeywords(ctx, userID, nil)
}

// AddComment stores a comment on approved news.
func (s *Service) AddComment(ctx context.Context, userID, newsID int64, text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, domain.Invalid("comment", "must not be empty")
	}
	if utf8.RuneCountInString(text) > CommentMaxRunes {
		return 0, domain.Invalid("comment", "must be at most 1000 characters")
	}
	if _, err := s.Get(ctx, newsID); err != nil {
		return 0, err
	}
	id, err := s.repo.AddComment(ctx, userID, newsID, text)
	if err != nil {
		return 0, fmt.Errorf("comment: %w", err)
	}
	return id, nil
}

// Comments lists the latest comments of news.
func (s *Service) Comments(ctx context.Context, newsID int64) ([]domain.Comment, error) {
	return s.repo.Comments(ctx, newsID, CommentsLimit)
}

// Report files a complaint. hidden is true when it pushed the news back to moderation.
func (s *Service) Report(ctx context.Context, userID, newsID int64, reason string) (hidden bool, err error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, domain.Invalid("reason", "must not be empty")
	}
	if utf8.RuneCountInString(reason) > ReasonMaxRunes {
		return false, domain.Invalid("reason", "must be at most 500 characters")
	}
	open, err := s.repo.AddReport(ctx, userID, newsID, reason)
	if err != nil {
		return false, err
	}
	if open < s.opts.ReportThreshold {
		return false, nil
	}
	err = s.repo.SetNewsStatus(ctx, newsID, domain.ModerationApproved, domain.ModerationPending)
	if errors.Is(err, domain.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("report: %w", err)
	}
	logger.Info(ctx, component, "news.hidden", slog.Int64("news_id", newsID), slog.Int("reports", open))
	return true, nil
}

// AddSource classifies and stores a suggested source. added is false for a known link.
func (s *Service) AddSource(ctx context.Context, userID int64, link string) (domain.SourceType, bool, error) {
	link = strings.TrimSpace(link)
	if link == "" || strings.ContainsAny(link, " \t\n") || !strings.Contains(link, ".") {
		return "", false, domain.Invalid("link", "must be a link")
	}
	if utf8.RuneCountInString(link) > LinkMaxRunes {
		return "", false, domain.Invalid("link", "must be at most 500 characters")
	}
	typ := domain.ClassifySource(link)
	added, err := s.repo.AddSource(ctx, userID, link, typ)
	if err != nil {
		return "", false, fmt.Errorf("add source: %w", err)
	}
	return typ, added, nil
}

// PendingNews lists the moderation queue.
func (s *Service) PendingNews(ctx context.Context) ([]domain.News, error) {
	return s.repo.PendingNews(ctx, ModerationLimit)
}

// Moderate moves news to the given status.
func (s *Service) Moderate(ctx context.Context, newsID int64, to domain.ModerationStatus) error {
	n, err := s.repo.NewsByID(ctx, newsID)
	if err != nil {
		return err
	}
	if !n.Status.CanTransition(to) {
		return fmt.Errorf("moderate news %d %s->%s: %w", newsID, n.Status, to, domain.ErrInvalidTransition)
	}
	if err := s.repo.SetNewsStatus(ctx, newsID, n.Status, to); err != nil {
		return err
	}
	logger.Info(ctx, component, "news.moderated", slog.Int64("news_id", newsID), slog.String("status", string(to)))
	return nil
}

// PendingSources lists suggested sources awaiting review.
func (s *Service) PendingSources(ctx context.Context) ([]domain.Source, error) {
	return s.repo.PendingSources(ctx, ModerationLimit)
}

// ModerateSource approves or rejects a pending source.
func (s *Service) ModerateSource(ctx context.Context, sourceID int64, to domain.ModerationStatus) error {
	if !domain.ModerationPending.CanTransition(to) {
		return fmt.Errorf("moderate source: %w", domain.ErrInvalidTransition)
	}
	return s.repo.SetSourceStatus(ctx, sourceID, domain.ModerationPending, to)
}

// Draft is admin input for Publish.
type Draft struct {
	Title     string
	Content   string
	Link      string
	Source    string
	FileID    string
	MediaType string
}

// ParseDraft splits "title|content|link|source"; link and source are optional.
func ParseDraft(text string) (Draft, error) {
	parts := strings.SplitN(text, "|", 4)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Draft{}, domain.Invalid("news", "expected title|content|link|source")
	}
	d := Draft{Title: parts[0], Content: parts[1]}
	if len(parts) > 2 {
		d.Link = parts[2]
	}
	if len(parts) > 3 {
		d.Source = parts[3]
	}
	return d, nil
}

// Publish stores approved news visible until now+TTL.
func (s *Service) Publish(ctx context.Context, d Draft) (int64, error) {
	if strings.TrimSpace(d.Title) == "" {
		return 0, domain.Invalid("title", "must not be empty")
	}
	now := s.opts.Now()
	n := domain.News{
		Title:       strings.TrimSpace(d.Title),
		Content:     strings.TrimSpace(d.Content),
		Link:        format.NilIfEmpty(strings.TrimSpace(d.Link)),
		Source:      d.Source,
		FileID:      format.NilIfEmpty(strings.TrimSpace(d.FileID)),
		MediaType:   format.NilIfEmpty(strings.TrimSpace(d.MediaType)),
		Status:      domain.ModerationApproved,
		PublishedAt: now,
		ExpiresAt:   now.Add(s.opts.TTL),
	}
	id, err := s.repo.InsertNews(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("publish: %w", err)
	}
	logger.Info(ctx, component, "news.published", slog.Int64("news_id", id))
	return id, nil
}

// Stats returns the admin overview.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	return s.repo.Overview(ctx)
}
