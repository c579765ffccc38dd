package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/cases"

	"github.com/m3rciful/newsmarket/core/telegram/keyboard"
	"github.com/m3rciful/newsmarket/core/telegram/state"
	"github.com/m3rciful/newsmarket/internal/ai"
	"github.com/m3rciful/newsmarket/internal/domain"
	"github.com/m3rciful/newsmarket/internal/service/market"

	tele "gopkg.in/telebot.v4"
)

// callbackData mirrors how telebot serialises an inline data button.
func callbackData(btn tele.InlineButton) string {
	return "\f" + btn.Unique + "|" + btn.Data
}

func buttons(m *tele.ReplyMarkup) []tele.InlineButton {
	if m == nil {
		return nil
	}
	var out []tele.InlineButton
	for _, row := range m.InlineKeyboard {
		out = append(out, row...)
	}
	return out
}

func uniques(m *tele.ReplyMarkup) []string {
	var out []string
	for _, b := range buttons(m) {
		out = append(out, b.Unique)
	}
	return out
}

func TestParseNewsPayload(t *testing.T) {
	tests := []struct {
		in   string
		id   int64
		want bool
	}{
		{"news_42", 42, true},
		{" news_7 ", 7, true},
		{"news_0", 0, false},
		{"news_-3", 0, false},
		{"news_abc", 0, false},
		{"inv_ab12cd34", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		got, ok := parseNewsPayload(tc.in)
		assert.Equal(t, tc.want, ok, tc.in)
		assert.Equal(t, tc.id, got, tc.in)
	}
	got, ok := parseNewsPayload(newsPayload(99))
	require.True(t, ok)
	assert.Equal(t, int64(99), got)
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	// Ten-digit ids leave room for years of bigserial growth.
	const big = 9_999_999_999
	key := uuid.NewString()
	listing := domain.Listing{ID: big, SellerID: 1, Status: domain.ListingActive, Title: "Bike", Currency: "EUR"}
	prompts := []ai.Prompt{{Key: "key_facts", Title: "Key facts"}, {Key: "improve_listing", Title: "Improve"}}
	markups := map[string]*tele.ReplyMarkup{
		"news":        newsMarkup(domain.News{ID: big}),
		"buy_confirm": buyConfirmMarkup(big, key, big),
		"ai_news":     aiMenuMarkup(targetNews, big, prompts),
		"ai_listing":  aiMenuMarkup(targetListing, big, prompts),
		"rating":      ratingMarkup(big),
		"listing":     listingMarkup(listing, 2),
		"listings":    listingsMarkup([]domain.Listing{listing}, 1000, true),
		"offer":       offerMarkup(big),
		"deal":        dealMarkup(domain.Deal{ID: big, SellerID: 1, Status: domain.DealRequested}, 1, false),
		"moderation":  moderationMarkup(cbModNews, big, string(domain.ModerationApproved), string(domain.ModerationRejected)),
		"filters":     filtersMarkup([]string{"golang", "market"}),
	}
	for name, m := range markups {
		require.NotEmpty(t, buttons(m), name)
		for _, btn := range buttons(m) {
			if btn.URL != "" {
				continue
			}
			data := callbackData(btn)
			assert.LessOrEqual(t, len(data), maxCallbackData, "%s: %q", name, data)
		}
	}
}

func TestBuyConfirmKeyRoundTrips(t *testing.T) {
	key := uuid.NewString()
	m := buyConfirmMarkup(12, key, 0)
	btn := buttons(m)[0]
	require.Equal(t, cbMarketBuyOK, btn.Unique)
	parts := strings.Split(btn.Data, "|")
	require.Len(t, parts, 2)
	assert.Equal(t, "12", parts[0])
	parsed, err := uuid.Parse(parts[1])
	require.NoError(t, err)
	assert.Equal(t, key, parsed.String())

	withOffer := buyConfirmMarkup(12, key, 5)
	assert.True(t, strings.HasSuffix(buttons(withOffer)[0].Data, "|5"))
}

func TestIsCancelFoldsCase(t *testing.T) {
	b := &Bot{fold: cases.Fold(), cancelWord: cases.Fold().String("Cancel")}
	for _, s := range []string{"cancel", "CANCEL", " Cancel "} {
		assert.True(t, b.IsCancel(s), s)
	}
	for _, s := range []string{"", "cancelled", "/cancel now"} {
		assert.False(t, b.IsCancel(s), s)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err      error
		contains string
		expected bool
	}{
		{domain.Invalid("price", "must be positive"), "Price must be positive.", true},
		{fmt.Errorf("wrap: %w", domain.ErrNotFound), "not found", true},
		{domain.ErrConflict, "faster", true},
		{domain.ErrForbidden, "not allowed", true},
		{domain.ErrInvalidTransition, "no longer possible", true},
		{domain.ErrDuplicate, "Already", true},
		{domain.ErrNotRegistered, "/start", true},
		{fmt.Errorf("tmp: %w", errFlowLost), "expired", true},
		{ai.ErrUnavailable, "not available", true},
		{ai.ErrTimeout, "too long", false},
		{ai.ErrEmpty, "empty", false},
		{errors.New("db down"), msgGenericError, false},
	}
	for _, tc := range tests {
		msg, expected := userMessage(tc.err)
		assert.Contains(t, msg, tc.contains, tc.err.Error())
		assert.Equal(t, tc.expected, expected, tc.err.Error())
	}
}

func TestDealButtonsByRole(t *testing.T) {
	const seller, buyer = 1, 2
	deal := func(st domain.DealStatus) domain.Deal {
		return domain.Deal{ID: 9, SellerID: seller, BuyerID: buyer, Status: st}
	}
	keys := func(btns []keyboard.InlineBtn) []string {
		out := make([]string, 0, len(btns))
		for _, b := range btns {
			out = append(out, b.Unique)
		}
		return out
	}

	assert.Equal(t, []string{cbDealConfirm, cbDealCancel}, keys(dealButtons(deal(domain.DealRequested), seller, false)))
	assert.Equal(t, []string{cbDealCancel}, keys(dealButtons(deal(domain.DealRequested), buyer, false)))
	assert.Equal(t, []string{cbDealComplete, cbDealCancel}, keys(dealButtons(deal(domain.DealConfirmed), buyer, false)))
	assert.Equal(t, []string{cbDealCancel}, keys(dealButtons(deal(domain.DealConfirmed), seller, false)))
	assert.Equal(t, []string{cbDealReview}, keys(dealButtons(deal(domain.DealCompleted), buyer, false)))
	assert.Empty(t, dealButtons(deal(domain.DealCompleted), buyer, true))
	assert.Empty(t, dealButtons(deal(domain.DealCompleted), seller, false))
	assert.Empty(t, dealButtons(deal(domain.DealCancelled), buyer, false))
	assert.Nil(t, dealMarkup(deal(domain.DealCancelled), buyer, false))
}

func TestListingMarkupByViewer(t *testing.T) {
	l := domain.Listing{ID: 4, SellerID: 1, Status: domain.ListingActive}
	assert.Equal(t, []string{cbMarketOffers, cbMarketWithdraw, cbMarketAI}, uniques(listingMarkup(l, 1)))
	assert.Equal(t, []string{cbMarketBuy, cbMarketOffer, cbMarketAI}, uniques(listingMarkup(l, 2)))

	l.Status = domain.ListingReserved
	assert.Equal(t, []string{cbMarketAI}, uniques(listingMarkup(l, 1)))
	assert.Equal(t, []string{cbMarketAI}, uniques(listingMarkup(l, 2)))

	l.Status = domain.ListingPending
	assert.Equal(t, []string{cbMarketWithdraw, cbMarketAI}, uniques(listingMarkup(l, 1)))
}

func TestTextsEscapeHTML(t *testing.T) {
	n := domain.News{Title: "<b>x</b>", Content: "a & b", Source: "<src>"}
	card := newsCardText(n)
	assert.Contains(t, card, "&lt;b&gt;x&lt;/b&gt;")
	assert.Contains(t, card, "a &amp; b")
	assert.NotContains(t, card, "<src>")

	l := domain.Listing{Title: "<i>Lamp</i>", Description: "<script>", Price: 1999, Currency: "EUR", Status: domain.ListingActive}
	text := listingText(l, domain.SellerRating{})
	assert.Contains(t, text, "&lt;i&gt;Lamp&lt;/i&gt;")
	assert.Contains(t, text, "19.99 EUR")
	assert.Contains(t, text, "no reviews yet")
	assert.NotContains(t, text, "<script>")

	assert.Contains(t, welcomeText("<Ann>"), "&lt;Ann&gt;")
	assert.Contains(t, welcomeText(""), "there")
	assert.Contains(t, aiReplyText("T", strings.Repeat("x", aiReplyRunes+50)), "…")
}

func TestEventMessage(t *testing.T) {
	text, m := eventMessage(market.Event{Kind: market.EventOfferReceived, ListingID: 3, OfferID: 8, Price: 1500}, "EUR")
	assert.Contains(t, text, "15.00 EUR")
	assert.Equal(t, []string{cbOfferAccept, cbOfferDecline}, uniques(m))

	_, m = eventMessage(market.Event{Kind: market.EventOfferAccepted, ListingID: 3, OfferID: 8, Price: 1500}, "EUR")
	require.Len(t, buttons(m), 1)
	assert.Equal(t, cbMarketBuy, buttons(m)[0].Unique)
	assert.Equal(t, "3|8", buttons(m)[0].Data)

	_, m = eventMessage(market.Event{Kind: market.EventDealRequested, RecipientID: 5, DealID: 2}, "EUR")
	assert.Equal(t, []string{cbDealConfirm, cbDealCancel}, uniques(m))

	_, m = eventMessage(market.Event{Kind: market.EventDealConfirmed, RecipientID: 6, DealID: 2}, "EUR")
	assert.Equal(t, []string{cbDealComplete, cbDealCancel}, uniques(m))

	_, m = eventMessage(market.Event{Kind: market.EventListingApproved, ListingID: 3}, "EUR")
	assert.Equal(t, []string{cbMarketShow}, uniques(m))

	text, m = eventMessage(market.Event{Kind: market.EventReviewReceived, Rating: 4, DealID: 2}, "EUR")
	assert.Contains(t, text, "4-star")
	assert.Nil(t, m)
}

func TestNotifierDetachedDropsMessages(t *testing.T) {
	n := NewNotifier(nil, "EUR")
	assert.NotPanics(t, func() {
		n.Notify(t.Context(), market.Event{Kind: market.EventDealCancelled, RecipientID: 1})
	})
	var nilNotifier *Notifier
	assert.NotPanics(t, func() { nilNotifier.NotifyUser(t.Context(), 1, "x", nil) })
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestResetFlowDropsPreviousScratch(t *testing.T) {
	const uid = 42
	fsm := state.NewMemoryManager()
	fsm.SetState(uid, StateListingDescription)
	fsm.SetTemp(uid, tempTitle, "Bike")
	fsm.SetTemp(uid, tempNewsID, int64(7))

	resetFlow(fsm, uid, flowTemp{tempNewsID, int64(9)})

	assert.Equal(t, state.StateIdle, fsm.GetState(uid))
	_, ok := fsm.GetTempString(uid, tempTitle)
	assert.False(t, ok, "title of the abandoned listing must not leak")
	id, ok := fsm.GetTempInt64(uid, tempNewsID)
	require.True(t, ok)
	assert.Equal(t, int64(9), id)
}

func TestResetFlowFollowsTappedReviewDeal(t *testing.T) {
	const uid = 42
	fsm := state.NewMemoryManager()
	fsm.SetTemp(uid, tempDealID, int64(1))
	fsm.SetState(uid, StateReviewRating)

	// A rating button of another deal is tapped while the first review waits.
	resetFlow(fsm, uid, flowTemp{tempDealID, int64(2)})
	fsm.SetTemp(uid, tempRating, int64(5))
	fsm.SetState(uid, StateReviewText)

	id, ok := fsm.GetTempInt64(uid, tempDealID)
	require.True(t, ok)
	assert.Equal(t, int64(2), id)
	rating, _ := fsm.GetTempInt64(uid, tempRating)
	assert.Equal(t, int64(5), rating)
}

func TestResetFlowWithoutSession(t *testing.T) {
	fsm := state.NewMemoryManager()
	resetFlow(fsm, 7)
	assert.False(t, fsm.InProgress(7))
	_, ok := fsm.GetTemp(7, tempPromptKey)
	assert.False(t, ok)
}
