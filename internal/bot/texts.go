package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/newsmarket/core/telegram/format"
	"github.com/m3rciful/newsmarket/internal/domain"
)

// Telegram caps photo captions at 1024 characters; card bodies stay below that.
const (
	cardContentRunes = 700
	aiReplyRunes     = 3500
)

const (
	msgWelcome        = "Hi, <b>%s</b> 👋\n\nI am your personal AI news aggregator and a small marketplace.\nUse the buttons below to get started."
	msgNoNews         = "✅ No new items match your filters. Try changing the filters or check back later."
	msgNoTrending     = "Nothing is trending right now."
	msgNoBookmarks    = "You have no bookmarks yet. Tap 🔖 on a news card to save it."
	msgHelp           = "<b>How can I help?</b>\n\n/market browse listings\n/sell put an item up for sale\n/mylistings your listings\n/mydeals your deals\n/ai AI tools\n/cancel abort the current action"
	msgNothingCancel  = "There is nothing to cancel."
	msgCancelled      = "Cancelled."
	msgGenericError   = "⚠️ Something went wrong. Please try again."
	msgAskFeedback    = "Write your feedback in one message."
	msgFeedbackThanks = "🙏 Thank you, your feedback was sent."
	msgAskSource      = "Send a link to a Telegram channel, RSS feed or website."
	msgAskKeyword     = "Send a keyword. Only news containing one of your keywords will appear in the feed."
	msgAskComment     = "Write your comment (up to 1000 characters)."
	msgAskReason      = "Describe briefly what is wrong with this news."
	msgReported       = "Thank you, the report was sent to moderators."
	msgReportedHidden = "Thank you. The news was hidden until moderators review it."
	msgSummaryWait    = "⏳ Generating a summary..."
	msgAIWait         = "⏳ Working on it..."
	msgAskAIInput     = "Send the text to work with."
	msgNoComments     = "No comments yet. Be the first!"
	msgCommentSaved   = "💬 Comment added."

	msgAskTitle       = "What are you selling? Send a title (3 to 120 characters)."
	msgAskDescription = "Describe the item: condition, size, pickup or shipping."
	msgAskPrice       = "Send the price, for example 25 or 19.99."
	msgBadPrice       = "That does not look like a price. Send a positive number, for example 19.99."
	msgAskPhoto       = "Send one photo of the item or continue without it."
	msgListingSent    = "📬 Your listing was sent for moderation. You will be notified when it goes live."
	msgNoListings     = "There are no active listings yet. Use /sell to add one."
	msgNoMyListings   = "You have no listings. Use /sell to add one."
	msgNoDeals        = "You have no deals yet."
	msgNoOffers       = "No open offers."
	msgAskOffer       = "Send your price offer, for example 20 or 17.50."
	msgOfferSent      = "📨 Your offer was sent to the seller."
	msgWithdrawn      = "🗑 Listing withdrawn."
	msgAskRating      = "How was the deal? Pick a rating."
	msgAskReviewText  = "Add a few words about the seller, or send - to skip."
	msgReviewSaved    = "⭐ Thank you for the review."
	msgDealRequested  = "🛍 Purchase requested. The seller will confirm it soon."

	msgAdminOnly   = "This command is for administrators."
	msgQueueEmpty  = "✅ Moderation queues are empty."
	msgPublishHelp = "Usage: /publish title|content|link|source"
)

func welcomeText(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(msgWelcome, format.HTML(name))
}

func newsCardText(n domain.News) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", format.HTML(n.Title))
	if content := strings.TrimSpace(n.Content); content != "" {
		b.WriteString(format.HTML(format.Truncate(content, cardContentRunes)))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "<i>Source: %s</i>", format.HTML(n.Source))
	return b.String()
}

func trendingText(items []domain.TrendingItem, link func(payload string) string) string {
	var b strings.Builder
	b.WriteString("<b>🔥 Most viewed in the last 24 hours</b>\n")
	for _, it := range items {
		fmt.Fprintf(&b, "\n▫️ <a href=\"%s\">%s</a> (%d views)",
			format.HTML(link(newsPayload(it.ID))), format.HTML(it.Title), it.Views)
	}
	return b.String()
}

func bookmarksText(items []domain.BookmarkItem, link func(payload string) string) string {
	var b strings.Builder
	b.WriteString("<b>🔖 Your bookmarks</b>\n")
	for _, it := range items {
		fmt.Fprintf(&b, "\n▫️ <a href=\"%s\">%s</a>", format.HTML(link(newsPayload(it.ID))), format.HTML(it.Title))
	}
	return b.String()
}

func profileText(p domain.Profile) string {
	var b strings.Builder
	name := p.User.FirstName
	if name == "" {
		name = p.User.Username
	}
	fmt.Fprintf(&b, "<b>👤 %s</b>\n\n", format.HTML(name))
	fmt.Fprintf(&b, "Level: <b>%s</b>\n", format.HTML(string(p.User.Level)))
	fmt.Fprintf(&b, "Viewed: %d\nLiked: %d\nSaved: %d\nComments: %d\nInvited: %d\n",
		p.Stats.Viewed, p.Stats.Liked, p.Stats.Saved, p.Stats.Comments, p.Stats.Invited)
	if len(p.User.Badges) > 0 {
		fmt.Fprintf(&b, "Badges: %s\n", format.HTML(strings.Join(p.User.Badges, ", ")))
	}
	if p.Rating.Count > 0 {
		fmt.Fprintf(&b, "Seller rating: %s", ratingText(p.Rating))
	}
	return strings.TrimRight(b.String(), "\n")
}

func ratingText(r domain.SellerRating) string {
	if r.Count == 0 {
		return "no reviews yet"
	}
	return fmt.Sprintf("%.1f ⭐ (%d reviews)", r.Average, r.Count)
}

func filtersText(keywords []string) string {
	if len(keywords) == 0 {
		return "<b>🎯 Filters</b>\n\nNo keywords set, the feed shows everything."
	}
	return fmt.Sprintf("<b>🎯 Filters</b>\n\nThe feed shows news containing any of: <i>%s</i>\nTap a keyword to remove it.",
		format.HTML(strings.Join(keywords, ", ")))
}

func commentsText(list []domain.Comment) string {
	var b strings.Builder
	b.WriteString("<b>💬 Comments</b>\n")
	for _, cm := range list {
		fmt.Fprintf(&b, "\n<b>%s</b> <i>%s</i>\n%s\n",
			format.HTML(cm.Author), cm.CreatedAt.UTC().Format("02 Jan 15:04"), format.HTML(cm.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

func listingText(l domain.Listing, rating domain.SellerRating) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n%s\n\n", format.HTML(l.Title), format.Price(l.Price, l.Currency))
	if d := strings.TrimSpace(l.Description); d != "" {
		b.WriteString(format.HTML(format.Truncate(d, cardContentRunes)))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Seller: %s", ratingText(rating))
	if l.Status != domain.ListingActive {
		fmt.Fprintf(&b, "\nStatus: <i>%s</i>", l.Status)
	}
	return b.String()
}

func listingsHeader(page int) string {
	return fmt.Sprintf("<b>🛒 Market</b> · page %d", page+1)
}

func myListingsText(list []domain.Listing) string {
	var b strings.Builder
	b.WriteString("<b>📦 Your listings</b>\n")
	for _, l := range list {
		fmt.Fprintf(&b, "\n#%d %s · %s · <i>%s</i>", l.ID, format.HTML(l.Title), format.Price(l.Price, l.Currency), l.Status)
	}
	return b.String()
}

func dealText(d domain.DealView, viewerID int64) string {
	role := "buying"
	if viewerID == d.SellerID {
		role = "selling"
	}
	return fmt.Sprintf("<b>Deal #%d</b> · %s\n%s · %s · <i>%s</i>",
		d.ID, role, format.HTML(d.Title), format.Price(d.Price, d.Currency), d.Status)
}

func offerText(o domain.Offer, currency string) string {
	return fmt.Sprintf("Offer #%d: <b>%s</b> (%s)", o.ID, format.Price(o.Price, currency), o.CreatedAt.UTC().Format(time.DateOnly))
}

func buyConfirmText(l domain.Listing, price int64) string {
	return fmt.Sprintf("Buy <b>%s</b> for <b>%s</b>?", format.HTML(l.Title), format.Price(price, l.Currency))
}

func statsText(s domain.Stats) string {
	return fmt.Sprintf("<b>📊 Stats</b>\n\nUsers: %d (active today %d)\nNews: %d (pending %d)\nPending sources: %d\n"+
		"Listings: %d active, %d pending\nOpen deals: %d\nFeedback: %d",
		s.Users, s.ActiveToday, s.News, s.PendingNews, s.PendingSources,
		s.ActiveListings, s.PendingListings, s.OpenDeals, s.Feedback)
}

func pendingNewsText(n domain.News) string {
	return fmt.Sprintf("📰 <b>News #%d</b> [%s]\n%s\n\n%s",
		n.ID, n.Status, format.HTML(n.Title), format.HTML(format.Truncate(n.Content, 400)))
}

func pendingSourceText(s domain.Source) string {
	return fmt.Sprintf("🔗 <b>Source #%d</b> (%s)\n%s", s.ID, s.Type, format.HTML(s.Link))
}

func pendingListingText(l domain.Listing) string {
	return fmt.Sprintf("🛒 <b>Listing #%d</b> · %s\n%s\n\n%s",
		l.ID, format.Price(l.Price, l.Currency), format.HTML(l.Title), format.HTML(format.Truncate(l.Description, 400)))
}

func aiReplyText(title, body string) string {
	return fmt.Sprintf("<b>✨ %s</b>\n\n%s", format.HTML(title), format.HTML(format.Truncate(body, aiReplyRunes)))
}
