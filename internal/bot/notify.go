package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/newsmarket/core/logger"
	"github.com/m3rciful/newsmarket/core/telegram/callbacks"
	"github.com/m3rciful/newsmarket/core/telegram/format"
	"github.com/m3rciful/newsmarket/core/telegram/keyboard"
	"github.com/m3rciful/newsmarket/core/telegram/sender"
	"github.com/m3rciful/newsmarket/internal/domain"
	"github.com/m3rciful/newsmarket/internal/service/market"

	tele "gopkg.in/telebot.v4"
)

type userLookup interface {
	UserByID(ctx context.Context, id int64) (domain.User, error)
}

// Notifier delivers market events and other out-of-band messages through the
// outbound dispatcher. Until Attach is called, messages are dropped with a log line.
type Notifier struct {
	users    userLookup
	currency string

	mu   sync.RWMutex
	api  sender.API
	disp *sender.Dispatcher
}

var _ market.Notifier = (*Notifier)(nil)

// NewNotifier builds a detached notifier; currency formats event prices.
func NewNotifier(users userLookup, currency string) *Notifier {
	return &Notifier{users: users, currency: currency}
}

// Attach connects the notifier to the running bot.
func (n *Notifier) Attach(api sender.API, disp *sender.Dispatcher) {
	n.mu.Lock()
	n.api, n.disp = api, disp
	n.mu.Unlock()
}

// Notify implements market.Notifier.
func (n *Notifier) Notify(ctx context.Context, e market.Event) {
	text, markup := eventMessage(e, n.currency)
	n.NotifyUser(ctx, e.RecipientID, text, markup)
}

// NotifyUser sends an HTML message to the user with internal id userID.
func (n *Notifier) NotifyUser(ctx context.Context, userID int64, text string, markup *tele.ReplyMarkup) {
	if n == nil {
		return
	}
	n.mu.RLock()
	api, disp := n.api, n.disp
	n.mu.RUnlock()
	if api == nil || disp == nil {
		logger.Warn(ctx, component, "notify.detached", slog.Int64("user_id", userID))
		return
	}
	u, err := n.users.UserByID(ctx, userID)
	if err != nil {
		logger.Warn(ctx, component, "notify.user.fail", slog.Int64("user_id", userID), slog.String("err", err.Error()))
		return
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup}
	if err := disp.Notify(ctx, api, u.TelegramID, text, opts); err != nil {
		logger.Warn(ctx, component, "notify.enqueue.fail", slog.Int64("user_id", userID), slog.String("err", err.Error()))
	}
}

// eventMessage renders e for its recipient. markup is nil when there is nothing to tap.
func eventMessage(e market.Event, currency string) (string, *tele.ReplyMarkup) {
	price := format.Price(e.Price, currency)
	showListing := func(label string) *tele.ReplyMarkup {
		return keyboard.InlineButtonsRows([]keyboard.InlineBtn{{Text: label, Unique: cbMarketShow, Data: id(e.ListingID)}})
	}
	switch e.Kind {
	case market.EventOfferReceived:
		return fmt.Sprintf("📨 New offer of <b>%s</b> for listing #%d.", price, e.ListingID), offerMarkup(e.OfferID)
	case market.EventOfferAccepted:
		markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{{
			Text:   "🛍 Buy for " + price,
			Unique: cbMarketBuy,
			Data:   callbacks.Data(id(e.ListingID), id(e.OfferID)),
		}})
		return fmt.Sprintf("✅ Your offer of <b>%s</b> for listing #%d was accepted.", price, e.ListingID), markup
	case market.EventOfferDeclined:
		return fmt.Sprintf("❌ Your offer of <b>%s</b> for listing #%d was declined.", price, e.ListingID), nil
	case market.EventDealRequested:
		d := domain.Deal{ID: e.DealID, Status: domain.DealRequested, SellerID: e.RecipientID}
		return fmt.Sprintf("🛍 Someone wants to buy listing #%d for <b>%s</b>. Deal #%d.", e.ListingID, price, e.DealID),
			dealMarkup(d, e.RecipientID, false)
	case market.EventDealConfirmed:
		d := domain.Deal{ID: e.DealID, Status: domain.DealConfirmed, BuyerID: e.RecipientID}
		return fmt.Sprintf("✅ The seller confirmed deal #%d. Mark it received once you have the item.", e.DealID),
			dealMarkup(d, e.RecipientID, false)
	case market.EventDealCancelled:
		return fmt.Sprintf("🚫 Deal #%d for listing #%d was cancelled.", e.DealID, e.ListingID), nil
	case market.EventDealCompleted:
		return fmt.Sprintf("📦 Deal #%d is completed. You received <b>%s</b>.", e.DealID, price), nil
	case market.EventListingApproved:
		return fmt.Sprintf("🎉 Your listing #%d is live.", e.ListingID), showListing("👀 Open")
	case market.EventListingRejected:
		return fmt.Sprintf("Your listing #%d was rejected by moderators.", e.ListingID), nil
	case market.EventReviewReceived:
		return fmt.Sprintf("⭐ You got a %d-star review for deal #%d.", e.Rating, e.DealID), nil
	}
	return fmt.Sprintf("Update on listing #%d.", e.ListingID), nil
}
