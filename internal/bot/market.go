package bot

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/m3rciful/newsmarket/core/telegram/callbacks"
	"github.com/m3rciful/newsmarket/core/telegram/format"
	tghelpers "github.com/m3rciful/newsmarket/core/telegram/helpers"
	"github.com/m3rciful/newsmarket/core/telegram/keyboard"
	"github.com/m3rciful/newsmarket/internal/domain"
	"github.com/m3rciful/newsmarket/internal/service/market"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) onMarket(c tele.Context) error {
	return b.sendListings(c, 0, false)
}

func (b *Bot) onMarketPage(c tele.Context) error {
	page, err := strconv.Atoi(callbacks.CallbackPayload(c))
	if err != nil {
		return err
	}
	return b.sendListings(c, page, true)
}

func (b *Bot) sendListings(c tele.Context, page int, edit bool) error {
	list, more, err := b.market.Browse(tghelpers.BuildContext(c), page)
	if err != nil {
		return err
	}
	if len(list) == 0 && page == 0 {
		return tghelpers.SendHTML(c, msgNoListings)
	}
	text, markup := listingsHeader(page), listingsMarkup(list, page, more)
	if edit {
		return tghelpers.EditOrSendHTML(c, text, markup)
	}
	return tghelpers.SendHTML(c, text, markup)
}

func (b *Bot) onListingShow(c tele.Context) error {
	listingID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	ctx := tghelpers.BuildContext(c)
	l, err := b.market.Get(ctx, u.ID, listingID)
	if err != nil {
		return err
	}
	rating, err := b.market.SellerRating(ctx, l.SellerID)
	if err != nil {
		return err
	}
	return b.sendCard(c, format.DerefString(l.PhotoID, ""), listingText(l, rating), listingMarkup(l, u.ID))
}

// onBuy asks for confirmation. The confirm button carries a fresh request key,
// so tapping it twice opens one deal.
func (b *Bot) onBuy(c tele.Context) error {
	parts, err := callbacks.PayloadParts(c, "|")
	if err != nil {
		return err
	}
	listingID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return err
	}
	var offerID int64
	if len(parts) > 1 {
		if offerID, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
			return err
		}
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	ctx := tghelpers.BuildContext(c)
	l, err := b.market.Get(ctx, u.ID, listingID)
	if err != nil {
		return err
	}
	if l.SellerID == u.ID {
		return fmt.Errorf("buy own listing: %w", domain.ErrForbidden)
	}
	price := l.Price
	if offerID != 0 {
		o, err := b.market.Offer(ctx, u.ID, offerID)
		if err != nil {
			return err
		}
		price = o.Price
	}
	return tghelpers.SendHTML(c, buyConfirmText(l, price), buyConfirmMarkup(l.ID, b.market.NewRequestKey(), offerID))
}

func (b *Bot) onBuyConfirm(c tele.Context) error {
	parts, err := callbacks.PayloadParts(c, "|")
	if err != nil {
		return err
	}
	if len(parts) < 2 || len(parts) > 3 {
		return strconv.ErrSyntax
	}
	req := market.BuyRequest{RequestKey: parts[1]}
	if req.ListingID, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return err
	}
	if len(parts) == 3 {
		if req.OfferID, err = strconv.ParseInt(parts[2], 10, 64); err != nil {
			return err
		}
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	req.BuyerID = u.ID
	d, err := b.market.Buy(tghelpers.BuildContext(c), req)
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, msgDealRequested, dealMarkup(d, u.ID, false))
}

func (b *Bot) onOfferStart(c tele.Context) error {
	listingID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	return b.start(c, StateOfferPrice, msgAskOffer, flowTemp{tempListingID, listingID})
}

func (b *Bot) onOfferPrice(c tele.Context) error {
	text, _ := textInput(c)
	price, err := format.ParsePrice(text)
	if err != nil {
		return tghelpers.SendHTML(c, msgBadPrice, cancelMarkup())
	}
	listingID, err := b.tempInt64(c, tempListingID)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	if _, err := b.market.MakeOffer(tghelpers.BuildContext(c), u.ID, listingID, price); err != nil {
		return err
	}
	return b.done(c, msgOfferSent)
}

func (b *Bot) onWithdraw(c tele.Context) error {
	listingID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	if err := b.market.Withdraw(tghelpers.BuildContext(c), u.ID, listingID); err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, msgWithdrawn)
}

func (b *Bot) onOffers(c tele.Context) error {
	listingID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	ctx := tghelpers.BuildContext(c)
	l, err := b.market.Get(ctx, u.ID, listingID)
	if err != nil {
		return err
	}
	offers, err := b.market.Offers(ctx, u.ID, listingID)
	if err != nil {
		return err
	}
	if len(offers) == 0 {
		return tghelpers.SendHTML(c, msgNoOffers)
	}
	for _, o := range offers {
		if err := tghelpers.SendHTML(c, offerText(o, l.Currency), offerMarkup(o.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) onOfferAccept(c tele.Context) error  { return b.respondOffer(c, true) }
func (b *Bot) onOfferDecline(c tele.Context) error { return b.respondOffer(c, false) }

func (b *Bot) respondOffer(c tele.Context, accept bool) error {
	offerID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	if _, err := b.market.RespondOffer(tghelpers.BuildContext(c), u.ID, offerID, accept); err != nil {
		return err
	}
	if accept {
		return tghelpers.EditOrSendHTML(c, fmt.Sprintf("✅ Offer #%d accepted. The buyer can now buy at this price.", offerID))
	}
	return tghelpers.EditOrSendHTML(c, fmt.Sprintf("❌ Offer #%d declined.", offerID))
}

func (b *Bot) onSell(c tele.Context) error {
	if _, err := b.me(c); err != nil {
		return err
	}
	return b.start(c, StateListingTitle, msgAskTitle)
}

func (b *Bot) onListingTitle(c tele.Context) error {
	title, _ := textInput(c)
	if n := utf8.RuneCountInString(title); n < domain.TitleMin || n > domain.TitleMax {
		return tghelpers.SendHTML(c, msgAskTitle, cancelMarkup())
	}
	b.fsm.SetTemp(c.Sender().ID, tempTitle, title)
	return b.ask(c, StateListingDescription, msgAskDescription)
}

func (b *Bot) onListingDescription(c tele.Context) error {
	desc, ok := textInput(c)
	if !ok || utf8.RuneCountInString(desc) > domain.DescriptionMax {
		return tghelpers.SendHTML(c, msgAskDescription+" Up to 2000 characters.", cancelMarkup())
	}
	b.fsm.SetTemp(c.Sender().ID, tempDescription, desc)
	return b.ask(c, StateListingPrice, msgAskPrice)
}

func (b *Bot) onListingPrice(c tele.Context) error {
	text, _ := textInput(c)
	price, err := format.ParsePrice(text)
	if err != nil {
		return tghelpers.SendHTML(c, msgBadPrice, cancelMarkup())
	}
	uid := c.Sender().ID
	b.fsm.SetTemp(uid, tempPrice, price)
	b.fsm.SetState(uid, StateListingPhoto)
	return tghelpers.SendHTML(c, msgAskPhoto, sellPhotoMarkup())
}

func (b *Bot) onListingPhoto(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return tghelpers.SendHTML(c, msgAskPhoto, sellPhotoMarkup())
	}
	return b.createListing(c, msg.Photo.FileID)
}

func (b *Bot) onSellSkipPhoto(c tele.Context) error {
	if b.fsm.GetState(c.Sender().ID) != StateListingPhoto {
		return toast(c, "This step is already over.")
	}
	return b.createListing(c, "")
}

func (b *Bot) createListing(c tele.Context, photoID string) error {
	uid := c.Sender().ID
	title, okTitle := b.fsm.GetTempString(uid, tempTitle)
	desc, okDesc := b.fsm.GetTempString(uid, tempDescription)
	if !okTitle || !okDesc {
		return fmt.Errorf("listing draft: %w", errFlowLost)
	}
	price, err := b.tempInt64(c, tempPrice)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	_, err = b.market.CreateListing(tghelpers.BuildContext(c), u.ID, domain.ListingDraft{
		Title:       title,
		Description: desc,
		Price:       price,
		PhotoID:     photoID,
	})
	if err != nil {
		return err
	}
	return b.done(c, msgListingSent)
}

func (b *Bot) onMyListings(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	list, err := b.market.MyListings(tghelpers.BuildContext(c), u.ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return tghelpers.SendHTML(c, msgNoMyListings)
	}
	btns := make([]keyboard.InlineBtn, 0, len(list))
	for _, l := range list {
		btns = append(btns, keyboard.InlineBtn{Text: "#" + id(l.ID) + " " + format.Truncate(l.Title, 30), Unique: cbMarketShow, Data: id(l.ID)})
	}
	return tghelpers.SendHTML(c, myListingsText(list), keyboard.InlineButtonsNPerRow(btns, 1))
}

func (b *Bot) onMyDeals(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	deals, err := b.market.MyDeals(tghelpers.BuildContext(c), u.ID)
	if err != nil {
		return err
	}
	if len(deals) == 0 {
		return tghelpers.SendHTML(c, msgNoDeals)
	}
	for _, d := range deals {
		if err := tghelpers.SendHTML(c, dealText(d, u.ID), dealMarkup(d.Deal, u.ID, d.Reviewed)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) onDealConfirm(c tele.Context) error {
	return b.dealAction(c, b.market.ConfirmDeal, "✅ Deal #%d confirmed. Arrange the handover with the buyer.")
}

func (b *Bot) onDealCancel(c tele.Context) error {
	return b.dealAction(c, b.market.CancelDeal, "🚫 Deal #%d cancelled. The listing is available again.")
}

func (b *Bot) onDealComplete(c tele.Context) error {
	if err := b.dealAction(c, b.market.CompleteDeal, "📦 Deal #%d completed. Thank you!"); err != nil {
		return err
	}
	dealID, _ := callbacks.PayloadInt64(c)
	return b.startReview(c, dealID)
}

type dealFunc func(ctx context.Context, userID, dealID int64) (domain.Deal, error)

func (b *Bot) dealAction(c tele.Context, fn dealFunc, done string) error {
	dealID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	d, err := fn(tghelpers.BuildContext(c), u.ID, dealID)
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, fmt.Sprintf(done, d.ID), dealMarkup(d, u.ID, false))
}

func (b *Bot) onDealReview(c tele.Context) error {
	dealID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	return b.startReview(c, dealID)
}

func (b *Bot) startReview(c tele.Context, dealID int64) error {
	uid := c.Sender().ID
	resetFlow(b.fsm, uid, flowTemp{tempDealID, dealID})
	b.fsm.SetState(uid, StateReviewRating)
	return tghelpers.SendHTML(c, msgAskRating, ratingMarkup(dealID))
}

func (b *Bot) onDealRate(c tele.Context) error {
	dealID, rating, err := callbacks.PayloadTwoInt64(c, "|")
	if err != nil {
		return err
	}
	// The tapped button names the deal, whatever review was in progress.
	resetFlow(b.fsm, c.Sender().ID, flowTemp{tempDealID, dealID})
	return b.rate(c, int(rating))
}

// onReviewRating accepts a typed 1..5 instead of a button tap.
func (b *Bot) onReviewRating(c tele.Context) error {
	text, _ := textInput(c)
	rating, err := strconv.Atoi(text)
	if err != nil || domain.ValidateRating(rating) != nil {
		dealID, err := b.tempInt64(c, tempDealID)
		if err != nil {
			return err
		}
		return tghelpers.SendHTML(c, msgAskRating, ratingMarkup(dealID))
	}
	return b.rate(c, rating)
}

func (b *Bot) rate(c tele.Context, rating int) error {
	if err := domain.ValidateRating(rating); err != nil {
		return err
	}
	b.fsm.SetTemp(c.Sender().ID, tempRating, int64(rating))
	return b.ask(c, StateReviewText, msgAskReviewText)
}

func (b *Bot) onReviewText(c tele.Context) error {
	text, ok := textInput(c)
	if !ok {
		return tghelpers.SendHTML(c, msgAskReviewText, cancelMarkup())
	}
	if text == "-" {
		text = ""
	}
	dealID, err := b.tempInt64(c, tempDealID)
	if err != nil {
		return err
	}
	rating, err := b.tempInt64(c, tempRating)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	if err := b.market.Review(tghelpers.BuildContext(c), u.ID, dealID, int(rating), text); err != nil {
		return err
	}
	return b.done(c, msgReviewSaved)
}
