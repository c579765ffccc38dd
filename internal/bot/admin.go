package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/newsmarket/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/newsmarket/core/telegram/helpers"
	"github.com/m3rciful/newsmarket/internal/domain"
	"github.com/m3rciful/newsmarket/internal/service/news"

	tele "gopkg.in/telebot.v4"
)

// Listing moderation verbs in mod_l payloads.
const (
	verbApprove = "1"
	verbReject  = "0"
)

// onModerate prints every pending item with approve and reject buttons.
func (b *Bot) onModerate(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	pendingNews, err := b.news.PendingNews(ctx)
	if err != nil {
		return err
	}
	sources, err := b.news.PendingSources(ctx)
	if err != nil {
		return err
	}
	listings, err := b.market.PendingListings(ctx)
	if err != nil {
		return err
	}
	if len(pendingNews)+len(sources)+len(listings) == 0 {
		return tghelpers.SendHTML(c, msgQueueEmpty)
	}
	approved, rejected := string(domain.ModerationApproved), string(domain.ModerationRejected)
	for _, n := range pendingNews {
		if err := tghelpers.SendHTML(c, pendingNewsText(n), moderationMarkup(cbModNews, n.ID, approved, rejected)); err != nil {
			return err
		}
	}
	for _, s := range sources {
		if err := tghelpers.SendHTML(c, pendingSourceText(s), moderationMarkup(cbModSource, s.ID, approved, rejected)); err != nil {
			return err
		}
	}
	for _, l := range listings {
		if err := tghelpers.SendHTML(c, pendingListingText(l), moderationMarkup(cbModListing, l.ID, verbApprove, verbReject)); err != nil {
			return err
		}
	}
	return nil
}

func moderationPayload(c tele.Context) (int64, domain.ModerationStatus, error) {
	itemID, verb, err := callbacks.PayloadInt64AndString(c)
	if err != nil {
		return 0, "", err
	}
	to := domain.ModerationStatus(verb)
	if !to.Valid() || to == domain.ModerationPending {
		return 0, "", domain.Invalid("status", "must be approved or rejected")
	}
	return itemID, to, nil
}

func (b *Bot) onModNews(c tele.Context) error {
	newsID, to, err := moderationPayload(c)
	if err != nil {
		return err
	}
	if err := b.news.Moderate(tghelpers.BuildContext(c), newsID, to); err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, fmt.Sprintf("📰 News #%d %s.", newsID, to))
}

func (b *Bot) onModSource(c tele.Context) error {
	sourceID, to, err := moderationPayload(c)
	if err != nil {
		return err
	}
	if err := b.news.ModerateSource(tghelpers.BuildContext(c), sourceID, to); err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, fmt.Sprintf("🔗 Source #%d %s.", sourceID, to))
}

func (b *Bot) onModListing(c tele.Context) error {
	listingID, verb, err := callbacks.PayloadInt64AndString(c)
	if err != nil {
		return err
	}
	if verb != verbApprove && verb != verbReject {
		return domain.Invalid("verdict", "must be 1 or 0")
	}
	approve := verb == verbApprove
	if err := b.market.ModerateListing(tghelpers.BuildContext(c), listingID, approve); err != nil {
		return err
	}
	result := "rejected"
	if approve {
		result = "approved"
	}
	return tghelpers.EditOrSendHTML(c, fmt.Sprintf("🛒 Listing #%d %s.", listingID, result))
}

// onPublish adds approved news from "/publish title|content|link|source".
func (b *Bot) onPublish(c tele.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	text := strings.TrimSpace(msg.Payload)
	if text == "" {
		return tghelpers.SendHTML(c, msgPublishHelp)
	}
	d, err := news.ParseDraft(text)
	if err != nil {
		return err
	}
	newsID, err := b.news.Publish(tghelpers.BuildContext(c), d)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, fmt.Sprintf("✅ Published news #%d.", newsID))
}

func (b *Bot) onStats(c tele.Context) error {
	s, err := b.news.Stats(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, statsText(s))
}
