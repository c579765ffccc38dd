package news

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/newsmarket/internal/domain"
	"github.com/m3rciful/newsmarket/internal/storage/postgres"
)

type fakeRepo struct {
	mu        sync.Mutex
	news      map[int64]domain.News
	views     map[[2]int64]bool
	bookmarks map[[2]int64]bool
	summaries map[int64]string
	keywords  map[int64][]string
	reports   map[int64]map[int64]bool
	sources   map[string]bool
	counters  map[postgres.Counter]int
	comments  []string

	trendingSince time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		news:      map[int64]domain.News{},
		views:     map[[2]int64]bool{},
		bookmarks: map[[2]int64]bool{},
		summaries: map[int64]string{},
		keywords:  map[int64][]string{},
		reports:   map[int64]map[int64]bool{},
		sources:   map[string]bool{},
		counters:  map[postgres.Counter]int{},
	}
}

func (f *fakeRepo) NextUnseen(_ context.Context, userID int64, now time.Time) (domain.News, error) {
	var best domain.News
	for _, n := range f.news {
		if n.Status != domain.ModerationApproved || !n.ExpiresAt.After(now) || f.views[[2]int64{userID, n.ID}] {
			continue
		}
		if best.ID == 0 || n.PublishedAt.After(best.PublishedAt) {
			best = n
		}
	}
	if best.ID == 0 {
		return domain.News{}, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeRepo) MarkViewed(_ context.Context, userID, newsID int64) (bool, error) {
	k := [2]int64{userID, newsID}
	if f.views[k] {
		return false, nil
	}
	f.views[k] = true
	f.counters[postgres.CounterViewed]++
	return true, nil
}

func (f *fakeRepo) NewsByID(_ context.Context, id int64) (domain.News, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.news[id]
	if !ok {
		return domain.News{}, domain.ErrNotFound
	}
	return n, nil
}

func (f *fakeRepo) InsertNews(_ context.Context, n domain.News) (int64, error) {
	n.ID = int64(len(f.news) + 1)
	f.news[n.ID] = n
	return n.ID, nil
}

func (f *fakeRepo) IncrementStat(_ context.Context, _ int64, c postgres.Counter) error {
	f.counters[c]++
	return nil
}

func (f *fakeRepo) AddBookmark(_ context.Context, userID, newsID int64) (bool, error) {
	k := [2]int64{userID, newsID}
	if f.bookmarks[k] {
		return false, nil
	}
	f.bookmarks[k] = true
	f.counters[postgres.CounterSaved]++
	return true, nil
}

func (f *fakeRepo) Bookmarks(context.Context, int64, int) ([]domain.BookmarkItem, error) {
	return nil, nil
}

func (f *fakeRepo) Trending(_ context.Context, since, now time.Time, limit int) ([]domain.TrendingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trendingSince = since
	var items []domain.TrendingItem
	for _, n := range f.news {
		if n.Status == domain.ModerationApproved && n.ExpiresAt.After(now) && len(items) < limit {
			items = append(items, domain.TrendingItem{ID: n.ID, Title: n.Title})
		}
	}
	return items, nil
}

func (f *fakeRepo) Summary(_ context.Context, newsID int64) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[newsID]
	return s, ok, nil
}

func (f *fakeRepo) SaveSummary(_ context.Context, newsID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[newsID] = text
	return nil
}

func (f *fakeRepo) Keywords(_ context.Context, userID int64) ([]string, error) {
	return append([]string(nil), f.keywords[userID]...), nil
}

func (f *fakeRepo) SetKeywords(_ context.Context, userID int64, kw []string) error {
	f.keywords[userID] = append([]string(nil), kw...)
	return nil
}

func (f *fakeRepo) AddComment(_ context.Context, _, _ int64, content string) (int64, error) {
	f.comments = append(f.comments, content)
	return int64(len(f.comments)), nil
}

func (f *fakeRepo) Comments(context.Context, int64, int) ([]domain.Comment, error) {
	return nil, nil
}

func (f *fakeRepo) AddReport(_ context.Context, userID, newsID int64, _ string) (int, error) {
	if f.reports[newsID] == nil {
		f.reports[newsID] = map[int64]bool{}
	}
	if f.reports[newsID][userID] {
		return 0, domain.ErrDuplicate
	}
	f.reports[newsID][userID] = true
	return len(f.reports[newsID]), nil
}

func (f *fakeRepo) SetNewsStatus(_ context.Context, id int64, from, to domain.ModerationStatus) error {
	n, ok := f.news[id]
	if !ok || n.Status != from {
		return domain.ErrConflict
	}
	n.Status = to
	f.news[id] = n
	return nil
}

func (f *fakeRepo) PendingNews(context.Context, int) ([]domain.News, error) { return nil, nil }

func (f *fakeRepo) AddSource(_ context.Context, _ int64, link string, _ domain.SourceType) (bool, error) {
	if f.sources[link] {
		return false, nil
	}
	f.sources[link] = true
	return true, nil
}

func (f *fakeRepo) PendingSources(context.Context, int) ([]domain.Source, error) { return nil, nil }

func (f *fakeRepo) SetSourceStatus(context.Context, int64, domain.ModerationStatus, domain.ModerationStatus) error {
	return nil
}

func (f *fakeRepo) Overview(context.Context) (domain.Stats, error) { return domain.Stats{}, nil }

type fakeSummarizer struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (f *fakeSummarizer) Summarize(_ context.Context, title, _ string) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", f.err
	}
	return "summary of " + title, nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(repo *fakeRepo, sum Summarizer) *Service {
	return New(repo, sum, Options{ReportThreshold: 2, Now: func() time.Time { return now }})
}

func TestPublishAndFeed(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clock := now
	svc := New(repo, nil, Options{Now: func() time.Time { return clock }})

	first, err := svc.Publish(ctx, Draft{Title: "Old", Content: "a"})
	require.NoError(t, err)
	clock = clock.Add(time.Minute)
	second, err := svc.Publish(ctx, Draft{Title: "New", Content: "b", Link: " https://x.io "})
	require.NoError(t, err)

	n := repo.news[second]
	require.NotNil(t, n.Link)
	assert.Equal(t, "https://x.io", *n.Link)
	assert.Nil(t, n.FileID)
	assert.Equal(t, clock.Add(DefaultTTL), n.ExpiresAt)

	got, err := svc.NextForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second, got.ID)
	got, err = svc.NextForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, got.ID)
	_, err = svc.NextForUser(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, repo.counters[postgres.CounterViewed])
}

func TestGetHidesUnapproved(t *testing.T) {
	repo := newFakeRepo()
	repo.news[1] = domain.News{ID: 1, Status: domain.ModerationPending}
	svc := newService(repo, nil)

	_, err := svc.Get(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetHidesExpired(t *testing.T) {
	repo := newFakeRepo()
	repo.news[1] = domain.News{ID: 1, Status: domain.ModerationApproved, ExpiresAt: now.Add(-24 * time.Hour)}
	repo.news[2] = domain.News{ID: 2, Status: domain.ModerationApproved, ExpiresAt: now}
	repo.news[3] = domain.News{ID: 3, Status: domain.ModerationApproved, ExpiresAt: now.Add(time.Minute)}
	svc := newService(repo, nil)

	for _, id := range []int64{1, 2} {
		_, err := svc.Get(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrNotFound, "news %d", id)
	}
	n, err := svc.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n.ID)
}

func TestTrendingSkipsExpired(t *testing.T) {
	repo := newFakeRepo()
	repo.news[1] = domain.News{ID: 1, Title: "old", Status: domain.ModerationApproved, ExpiresAt: now.Add(-time.Hour)}
	repo.news[2] = domain.News{ID: 2, Title: "live", Status: domain.ModerationApproved, ExpiresAt: now.Add(time.Hour)}
	svc := newService(repo, nil)

	items, err := svc.Trending(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff([]domain.TrendingItem{{ID: 2, Title: "live"}}, items); diff != "" {
		t.Fatalf("trending (-want +got):\n%s", diff)
	}
	assert.Equal(t, now.Add(-TrendingWindow), repo.trendingSince)
}

func TestSaveIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil)

	added, err := svc.Save(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = svc.Save(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, repo.counters[postgres.CounterSaved])
}

func TestSummaryCachesSuccessOnly(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.news[1] = domain.News{ID: 1, Title: "T", Status: domain.ModerationApproved}
	sum := &fakeSummarizer{err: errors.New("down")}
	svc := newService(repo, sum)

	_, err := svc.Summary(ctx, 1)
	require.Error(t, err)
	assert.Empty(t, repo.summaries)

	sum.err = nil
	text, err := svc.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "summary of T", text)

	text, err = svc.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "summary of T", text)
	assert.Equal(t, int32(2), sum.calls.Load())
}

func TestSummarySharesConcurrentCalls(t *testing.T) {
	repo := newFakeRepo()
	repo.news[1] = domain.News{ID: 1, Title: "T", Status: domain.ModerationApproved}
	sum := &fakeSummarizer{gate: make(chan struct{})}
	svc := newService(repo, sum)

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.Summary(context.Background(), 1)
		}(i)
	}
	require.Eventually(t, func() bool { return sum.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(sum.gate)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "summary of T", r)
	}
	assert.LessOrEqual(t, sum.calls.Load(), int32(2))
}

func TestNormalizeKeywordLowercases(t *testing.T) {
	svc := newService(newFakeRepo(), nil)
	tests := map[string]string{
		"  STRAßE ":      "straße",
		"ﬁnance":         "ﬁnance",
		"Open\t  Source": "open source",
		"100%_off":       "100%_off",
	}
	for in, want := range tests {
		got, err := svc.NormalizeKeyword(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestKeywords(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newService(repo, nil)

	list, err := svc.AddKeyword(ctx, 1, "  Golang  ")
	require.NoError(t, err)
	list, err = svc.AddKeyword(ctx, 1, "GOLANG")
	require.NoError(t, err)
	list, err = svc.AddKeyword(ctx, 1, "Open   Source")
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"golang", "open source"}, list); diff != "" {
		t.Fatalf("keywords (-want +got):\n%s", diff)
	}

	list, err = svc.RemoveKeyword(ctx, 1, "golang")
	require.NoError(t, err)
	assert.Equal(t, []string{"open source"}, list)

	_, err = svc.AddKeyword(ctx, 1, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, svc.ClearKeywords(ctx, 1))
	for i := 0; i < MaxKeywords; i++ {
		_, err = svc.AddKeyword(ctx, 1, string(rune('a'+i)))
		require.NoError(t, err)
	}
	_, err = svc.AddKeyword(ctx, 1, "overflow")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAddCommentValidation(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.news[1] = domain.News{ID: 1, Status: domain.ModerationApproved, ExpiresAt: now.Add(time.Hour)}
	repo.news[2] = domain.News{ID: 2, Status: domain.ModerationApproved, ExpiresAt: now.Add(-24 * time.Hour)}
	svc := newService(repo, nil)

	_, err := svc.AddComment(ctx, 1, 2, "late")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.AddComment(ctx, 1, 1, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.AddComment(ctx, 1, 1, string(make([]rune, CommentMaxRunes+1)))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.AddComment(ctx, 1, 99, "hi")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.AddComment(ctx, 1, 1, " nice ")
	require.NoError(t, err)
	assert.Equal(t, []string{"nice"}, repo.comments)
}

func TestReportThresholdHidesNews(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.news[1] = domain.News{ID: 1, Status: domain.ModerationApproved}
	svc := newService(repo, nil)

	hidden, err := svc.Report(ctx, 1, 1, "spam")
	require.NoError(t, err)
	assert.False(t, hidden)

	_, err = svc.Report(ctx, 1, 1, "spam")
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	hidden, err = svc.Report(ctx, 2, 1, "fake")
	require.NoError(t, err)
	assert.True(t, hidden)
	assert.Equal(t, domain.ModerationPending, repo.news[1].Status)

	hidden, err = svc.Report(ctx, 3, 1, "fake")
	require.NoError(t, err)
	assert.False(t, hidden)
}

func TestModerate(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.news[1] = domain.News{ID: 1, Status: domain.ModerationRejected}
	svc := newService(repo, nil)

	err := svc.Moderate(ctx, 1, domain.ModerationPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.NoError(t, svc.Moderate(ctx, 1, domain.ModerationApproved))
	assert.Equal(t, domain.ModerationApproved, repo.news[1].Status)

	assert.ErrorIs(t, svc.ModerateSource(ctx, 1, domain.ModerationPending), domain.ErrInvalidTransition)
}

func TestAddSource(t *testing.T) {
	ctx := context.Background()
	svc := newService(newFakeRepo(), nil)

	typ, added, err := svc.AddSource(ctx, 1, "https://t.me/channel")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTelegram, typ)
	assert.True(t, added)

	_, added, err = svc.AddSource(ctx, 1, "https://t.me/channel")
	require.NoError(t, err)
	assert.False(t, added)

	_, _, err = svc.AddSource(ctx, 1, "not a link")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseDraft(t *testing.T) {
	d, err := ParseDraft("Title | Body | https://x.io | Wire")
	require.NoError(t, err)
	assert.Equal(t, Draft{Title: "Title", Content: "Body", Link: "https://x.io", Source: "Wire"}, d)

	d, err = ParseDraft("Title|Body")
	require.NoError(t, err)
	assert.Empty(t, d.Link)

	_, err = ParseDraft("only title")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
