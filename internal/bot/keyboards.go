package bot

import (
	"strconv"
	"strings"

	"github.com/m3rciful/newsmarket/core/telegram/callbacks"
	"github.com/m3rciful/newsmarket/core/telegram/format"
	"github.com/m3rciful/newsmarket/core/telegram/keyboard"
	"github.com/m3rciful/newsmarket/internal/ai"
	"github.com/m3rciful/newsmarket/internal/domain"

	tele "gopkg.in/telebot.v4"
)

// Main menu buttons.
const (
	btnFeed      = "📰 Feed"
	btnTrending  = "🔥 Trending"
	btnFilters   = "🎯 Filters"
	btnBookmarks = "🔖 Bookmarks"
	btnProfile   = "👤 Profile"
	btnHelp      = "❓ Help"
	btnMarket    = "🛒 Market"
)

// Callback keys. Payloads follow after "|".
const (
	cbNewsLike    = "n_like"
	cbNewsDislike = "n_dislike"
	cbNewsSave    = "n_save"
	cbNewsNext    = "n_next"
	cbNewsSummary = "n_sum"
	cbNewsAI      = "n_ai"
	cbNewsComms   = "n_cmts"
	cbNewsComment = "n_cmt"
	cbNewsReport  = "n_rep"

	cbHelpFeedback = "h_feedback"
	cbHelpSource   = "h_source"
	cbHelpInvite   = "h_invite"

	cbFilterAdd   = "flt_add"
	cbFilterDel   = "flt_del"
	cbFilterClear = "flt_clear"

	cbAIRun = "ai_run"

	cbMarketPage     = "m_page"
	cbMarketShow     = "m_show"
	cbMarketBuy      = "m_buy"
	cbMarketBuyOK    = "m_buyok"
	cbMarketOffer    = "m_offer"
	cbMarketWithdraw = "m_withdraw"
	cbMarketOffers   = "m_offers"
	cbMarketAI       = "m_ai"

	cbOfferAccept  = "o_accept"
	cbOfferDecline = "o_decline"

	cbDealConfirm  = "d_confirm"
	cbDealCancel   = "d_cancel"
	cbDealComplete = "d_complete"
	cbDealReview   = "d_review"
	cbDealRate     = "d_rate"

	cbSellSkipPhoto = "sell_skip"

	cbModNews    = "mod_n"
	cbModSource  = "mod_s"
	cbModListing = "mod_l"

	cbFlowCancel = "flow_cancel"
)

// maxCallbackData is Telegram's limit for callback_data in bytes.
const maxCallbackData = 64

// AI prompt targets encoded in ai_run payloads.
const (
	targetNews    = "n"
	targetListing = "l"
	targetGeneral = "g"
)

func id(n int64) string { return strconv.FormatInt(n, 10) }

func mainMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{btnFeed, btnTrending},
		[]string{btnFilters, btnBookmarks},
		[]string{btnProfile, btnMarket},
		[]string{btnHelp},
	)
}

func cancelMarkup() *tele.ReplyMarkup {
	return keyboard.SingleCancelMarkup(cbFlowCancel)
}

func helpMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "✍️ Leave feedback", Unique: cbHelpFeedback}},
		[]keyboard.InlineBtn{{Text: "➕ Suggest a source", Unique: cbHelpSource}},
		[]keyboard.InlineBtn{{Text: "✉️ Invite a friend", Unique: cbHelpInvite}},
	)
}

func newsMarkup(n domain.News) *tele.ReplyMarkup {
	nid := id(n.ID)
	rows := [][]keyboard.InlineBtn{
		{
			{Text: "👍", Unique: cbNewsLike, Data: nid},
			{Text: "👎", Unique: cbNewsDislike, Data: nid},
			{Text: "🔖", Unique: cbNewsSave, Data: nid},
			{Text: "➡️", Unique: cbNewsNext, Data: nid},
		},
		{
			{Text: "📝 Summary (AI)", Unique: cbNewsSummary, Data: nid},
			{Text: "✨ AI tools", Unique: cbNewsAI, Data: nid},
		},
		{
			{Text: "💬 Comments", Unique: cbNewsComms, Data: nid},
			{Text: "✍️ Comment", Unique: cbNewsComment, Data: nid},
			{Text: "❗ Report", Unique: cbNewsReport, Data: nid},
		},
	}
	if link := format.DerefString(n.Link, ""); link != "" {
		rows = append(rows, []keyboard.InlineBtn{keyboard.URLBtn("🌐 Read in full", link)})
	}
	return keyboard.InlineButtonsRows(rows...)
}

// aiMenuMarkup lists prompts of one scope, two per row. targetID is the news or listing id, 0 for general prompts.
func aiMenuMarkup(target string, targetID int64, prompts []ai.Prompt) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(prompts))
	for _, p := range prompts {
		btns = append(btns, keyboard.InlineBtn{
			Text:   p.Title,
			Unique: cbAIRun,
			Data:   callbacks.Data(target, id(targetID), p.Key),
		})
	}
	return keyboard.InlineButtonsNPerRow(btns, 2)
}

func filtersMarkup(keywords []string) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(keywords))
	for i, kw := range keywords {
		btns = append(btns, keyboard.InlineBtn{Text: "✖️ " + kw, Unique: cbFilterDel, Data: strconv.Itoa(i)})
	}
	rows := [][]keyboard.InlineBtn{}
	for i := 0; i < len(btns); i += 3 {
		rows = append(rows, btns[i:min(i+3, len(btns))])
	}
	actions := []keyboard.InlineBtn{{Text: "➕ Add keyword", Unique: cbFilterAdd}}
	if len(keywords) > 0 {
		actions = append(actions, keyboard.InlineBtn{Text: "🗑 Clear all", Unique: cbFilterClear})
	}
	rows = append(rows, actions)
	return keyboard.InlineButtonsRows(rows...)
}

// listingsMarkup shows one button per listing plus a pager. Pager payloads are page numbers.
func listingsMarkup(list []domain.Listing, page int, more bool) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(list)+1)
	for _, l := range list {
		label := format.Truncate(l.Title, 40) + " · " + format.Price(l.Price, l.Currency)
		rows = append(rows, []keyboard.InlineBtn{{Text: label, Unique: cbMarketShow, Data: id(l.ID)}})
	}
	rows = append(rows, keyboard.PagerRow(cbMarketPage, page, 1, more))
	return keyboard.InlineButtonsRows(rows...)
}

func listingMarkup(l domain.Listing, viewerID int64) *tele.ReplyMarkup {
	lid := id(l.ID)
	if l.SellerID == viewerID {
		var rows [][]keyboard.InlineBtn
		if l.Status == domain.ListingActive {
			rows = append(rows, []keyboard.InlineBtn{{Text: "📨 Offers", Unique: cbMarketOffers, Data: lid}})
		}
		if l.Status.CanTransition(domain.ListingWithdrawn) {
			rows = append(rows, []keyboard.InlineBtn{{Text: "🗑 Withdraw", Unique: cbMarketWithdraw, Data: lid}})
		}
		rows = append(rows, []keyboard.InlineBtn{{Text: "✨ AI tools", Unique: cbMarketAI, Data: lid}})
		return keyboard.InlineButtonsRows(rows...)
	}
	if l.Status != domain.ListingActive {
		return keyboard.InlineButtonsRows([]keyboard.InlineBtn{{Text: "✨ AI tools", Unique: cbMarketAI, Data: lid}})
	}
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "🛍 Buy", Unique: cbMarketBuy, Data: lid},
			{Text: "💬 Make an offer", Unique: cbMarketOffer, Data: lid},
		},
		[]keyboard.InlineBtn{{Text: "✨ AI tools", Unique: cbMarketAI, Data: lid}},
	)
}

// compactKey drops the dashes of a uuid so buy payloads fit into callback data.
func compactKey(key string) string {
	return strings.ReplaceAll(key, "-", "")
}

// buyConfirmMarkup carries the request key so a repeated tap reuses the same deal.
func buyConfirmMarkup(listingID int64, key string, offerID int64) *tele.ReplyMarkup {
	payload := callbacks.Data(id(listingID), compactKey(key))
	if offerID != 0 {
		payload = callbacks.Data(payload, id(offerID))
	}
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Confirm purchase", Unique: cbMarketBuyOK, Data: payload},
		keyboard.CancelButton(cbFlowCancel),
	})
}

func offerMarkup(offerID int64) *tele.ReplyMarkup {
	oid := id(offerID)
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Accept", Unique: cbOfferAccept, Data: oid},
		{Text: "❌ Decline", Unique: cbOfferDecline, Data: oid},
	})
}

// dealButtons returns the actions viewerID can take on d; nil when there are none.
func dealButtons(d domain.Deal, viewerID int64, reviewed bool) []keyboard.InlineBtn {
	did := id(d.ID)
	var btns []keyboard.InlineBtn
	switch d.Status {
	case domain.DealRequested:
		if viewerID == d.SellerID {
			btns = append(btns, keyboard.InlineBtn{Text: "✅ Confirm", Unique: cbDealConfirm, Data: did})
		}
		btns = append(btns, keyboard.InlineBtn{Text: "🚫 Cancel", Unique: cbDealCancel, Data: did})
	case domain.DealConfirmed:
		if viewerID == d.BuyerID {
			btns = append(btns, keyboard.InlineBtn{Text: "📦 Received", Unique: cbDealComplete, Data: did})
		}
		btns = append(btns, keyboard.InlineBtn{Text: "🚫 Cancel", Unique: cbDealCancel, Data: did})
	case domain.DealCompleted:
		if viewerID == d.BuyerID && !reviewed {
			btns = append(btns, keyboard.InlineBtn{Text: "⭐ Review", Unique: cbDealReview, Data: did})
		}
	}
	return btns
}

func dealMarkup(d domain.Deal, viewerID int64, reviewed bool) *tele.ReplyMarkup {
	btns := dealButtons(d, viewerID, reviewed)
	if len(btns) == 0 {
		return nil
	}
	return keyboard.InlineButtonsRows(btns)
}

func ratingMarkup(dealID int64) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, domain.RatingMax)
	for r := domain.RatingMin; r <= domain.RatingMax; r++ {
		btns = append(btns, keyboard.InlineBtn{
			Text:   strings.Repeat("⭐", r),
			Unique: cbDealRate,
			Data:   callbacks.Data(id(dealID), strconv.Itoa(r)),
		})
	}
	rows := [][]keyboard.InlineBtn{btns[:3], btns[3:], {keyboard.CancelButton(cbFlowCancel)}}
	return keyboard.InlineButtonsRows(rows...)
}

func sellPhotoMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "⏭ Without photo", Unique: cbSellSkipPhoto},
		keyboard.CancelButton(cbFlowCancel),
	})
}

// moderationMarkup approves or rejects one queued item. approve and reject are the payload verbs.
func moderationMarkup(unique string, itemID int64, approve, reject string) *tele.ReplyMarkup {
	iid := id(itemID)
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Approve", Unique: unique, Data: callbacks.Data(iid, approve)},
		{Text: "❌ Reject", Unique: unique, Data: callbacks.Data(iid, reject)},
	})
}
