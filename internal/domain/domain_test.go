package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySource(t *testing.T) {
	cases := map[string]SourceType{
		"https://t.me/technews":           SourceTelegram,
		"https://example.com/rss":         SourceRSS,
		"https://example.com/feed.xml":    SourceRSS,
		"https://t.me/s/channel/rss":      SourceTelegram,
		"https://news.example.com/latest": SourceWebsite,
		"HTTPS://EXAMPLE.COM/RSS":         SourceRSS,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClassifySource(in), in)
	}
}

func TestListingTransitions(t *testing.T) {
	allowed := []struct{ from, to ListingStatus }{
		{ListingPending, ListingActive},
		{ListingPending, ListingRejected},
		{ListingActive, ListingReserved},
		{ListingActive, ListingWithdrawn},
		{ListingReserved, ListingSold},
		{ListingReserved, ListingActive},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
	denied := []struct{ from, to ListingStatus }{
		{ListingPending, ListingSold},
		{ListingActive, ListingSold},
		{ListingSold, ListingActive},
		{ListingReserved, ListingWithdrawn},
		{ListingRejected, ListingActive},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, ListingSold.Final())
	assert.False(t, ListingActive.Final())
}

func TestDealAndOfferTransitions(t *testing.T) {
	assert.True(t, DealRequested.CanTransition(DealConfirmed))
	assert.True(t, DealConfirmed.CanTransition(DealCompleted))
	assert.True(t, DealConfirmed.CanTransition(DealCancelled))
	assert.False(t, DealRequested.CanTransition(DealCompleted))
	assert.False(t, DealCompleted.CanTransition(DealCancelled))
	assert.True(t, DealConfirmed.Live())
	assert.False(t, DealCancelled.Live())

	assert.True(t, OfferOpen.CanTransition(OfferAccepted))
	assert.False(t, OfferAccepted.CanTransition(OfferDeclined))

	assert.True(t, ModerationApproved.CanTransition(ModerationPending))
	assert.False(t, ModerationPending.CanTransition(ModerationPending))
	assert.False(t, ModerationStatus("bogus").Valid())
}

func TestListingDraftNormalize(t *testing.T) {
	d := ListingDraft{Title: "  Road bike  ", Description: " light ", Price: 25000}
	require.NoError(t, d.Normalize())
	assert.Equal(t, "Road bike", d.Title)
	assert.Equal(t, "light", d.Description)

	bad := []ListingDraft{
		{Title: "ab", Price: 1},
		{Title: strings.Repeat("x", 121), Price: 1},
		{Title: "Lamp", Description: strings.Repeat("d", 2001), Price: 1},
		{Title: "Lamp", Price: 0},
	}
	for _, b := range bad {
		err := b.Normalize()
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", b)
	}
}

func TestValidationError(t *testing.T) {
	err := Invalid("price", "must be positive")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrNotFound))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid_price", ve.Code())
	assert.ErrorIs(t, ValidateRating(6), ErrInvalidInput)
	assert.NoError(t, ValidateRating(5))
}

func TestComputeLevel(t *testing.T) {
	cases := []struct {
		stats UserStats
		want  Level
	}{
		{UserStats{}, LevelNewcomer},
		{UserStats{Viewed: 10}, LevelReader},
		{UserStats{Viewed: 50, Liked: 9}, LevelReader},
		{UserStats{Viewed: 50, Liked: 10}, LevelEnthusiast},
		{UserStats{Viewed: 200, Liked: 0, Saved: 20}, LevelExpert},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ComputeLevel(tc.stats), "%+v", tc.stats)
	}
}

func TestAwardBadges(t *testing.T) {
	got := AwardBadges([]string{BadgeAmbassador, BadgeAmbassador}, UserStats{Liked: 1, Saved: 10, Viewed: 5})
	want := []string{BadgeAmbassador, BadgeFirstLike, BadgeCollector}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("badges mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, AwardBadges(nil, UserStats{}))
}

func TestNewsHasPhoto(t *testing.T) {
	photo, id := MediaPhoto, "AgAD"
	assert.True(t, News{FileID: &id, MediaType: &photo}.HasPhoto())
	assert.False(t, News{FileID: &id}.HasPhoto())
	empty := ""
	assert.False(t, News{FileID: &empty, MediaType: &photo}.HasPhoto())
}

func TestDealParty(t *testing.T) {
	d := Deal{BuyerID: 1, SellerID: 2}
	assert.True(t, d.Party(1))
	assert.True(t, d.Party(2))
	assert.False(t, d.Party(3))
}
