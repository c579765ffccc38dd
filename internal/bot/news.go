package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/newsmarket/core/logger"
	"github.com/m3rciful/newsmarket/core/telegram/callbacks"
	"github.com/m3rciful/newsmarket/core/telegram/format"
	tghelpers "github.com/m3rciful/newsmarket/core/telegram/helpers"
	"github.com/m3rciful/newsmarket/core/telegram/keyboard"
	"github.com/m3rciful/newsmarket/core/telegram/ui"
	"github.com/m3rciful/newsmarket/internal/domain"

	tele "gopkg.in/telebot.v4"
)

const newsPayloadPrefix = "news_"

// errFlowLost means a conversation step ran without the data earlier steps store.
var errFlowLost = errors.New("conversation data lost")

func newsPayload(newsID int64) string {
	return newsPayloadPrefix + id(newsID)
}

// parseNewsPayload recognises /start deep links of the form news_<id>.
func parseNewsPayload(payload string) (int64, bool) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(payload), newsPayloadPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// textInput returns the trimmed text of a conversation answer; ok is false when the user sent no text.
func textInput(c tele.Context) (string, bool) {
	if c.Message() == nil || c.Message().Photo != nil || c.Message().Document != nil {
		return "", false
	}
	t := strings.TrimSpace(c.Text())
	return t, t != ""
}

func (b *Bot) tempInt64(c tele.Context, key string) (int64, error) {
	v, ok := b.fsm.GetTempInt64(c.Sender().ID, key)
	if !ok {
		return 0, fmt.Errorf("%s: %w", key, errFlowLost)
	}
	return v, nil
}

func (b *Bot) onStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	payload := ""
	if c.Message() != nil {
		payload = strings.TrimSpace(c.Message().Payload)
	}
	reg, err := b.users.Register(ctx, telegramUser(c.Sender()), payload)
	if err != nil {
		return err
	}
	if reg.InviterID != 0 && b.notify != nil {
		b.notify.NotifyUser(ctx, reg.InviterID, "🎉 A friend joined with your invite link.", nil)
	}
	if err := tghelpers.SendHTML(c, welcomeText(c.Sender().FirstName), mainMenu()); err != nil {
		return err
	}
	if newsID, ok := parseNewsPayload(payload); ok {
		n, err := b.news.Get(ctx, newsID)
		if err != nil {
			return err
		}
		return b.sendNews(c, n)
	}
	return nil
}

func (b *Bot) onHelp(c tele.Context) error {
	return tghelpers.SendHTML(c, msgHelp, helpMarkup())
}

func (b *Bot) onFeed(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	n, err := b.news.NextForUser(tghelpers.BuildContext(c), u.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return tghelpers.SendHTML(c, msgNoNews, mainMenu())
	}
	if err != nil {
		return err
	}
	return b.sendNews(c, n)
}

func (b *Bot) sendNews(c tele.Context, n domain.News) error {
	var photo string
	if n.HasPhoto() {
		photo = *n.FileID
	}
	return b.sendCard(c, photo, newsCardText(n), newsMarkup(n))
}

// sendCard sends text as the caption of photoID when there is one, falling back
// to a plain message when Telegram rejects the file.
func (b *Bot) sendCard(c tele.Context, photoID, text string, markup *tele.ReplyMarkup) error {
	if photoID != "" {
		photo := &tele.Photo{File: tele.File{FileID: photoID}, Caption: text}
		err := c.Send(photo, &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup})
		if err == nil {
			return nil
		}
		logger.Warn(tghelpers.BuildContext(c), component, "card.photo.fail",
			slog.String("file_id", photoID),
			slog.String("err", err.Error()),
		)
	}
	return tghelpers.SendHTML(c, text, markup)
}

func (b *Bot) onNewsNext(c tele.Context) error {
	_ = c.Delete()
	return b.onFeed(c)
}

func (b *Bot) onNewsLike(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	if err := b.news.Like(tghelpers.BuildContext(c), u.ID); err != nil {
		return err
	}
	return toast(c, "❤️ Liked!")
}

func (b *Bot) onNewsDislike(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	if err := b.news.Dislike(tghelpers.BuildContext(c), u.ID); err != nil {
		return err
	}
	return toast(c, "💔 Noted.")
}

func (b *Bot) onNewsSave(c tele.Context) error {
	newsID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	added, err := b.news.Save(tghelpers.BuildContext(c), u.ID, newsID)
	if err != nil {
		return err
	}
	if !added {
		return toast(c, "Already in your bookmarks.")
	}
	return toast(c, "🔖 Saved to bookmarks!")
}

func (b *Bot) onNewsSummary(c tele.Context) error {
	newsID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	_ = toast(c, msgSummaryWait)
	text, err := b.news.Summary(tghelpers.BuildContext(c), newsID)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, aiReplyText("AI summary", text))
}

func (b *Bot) onNewsComments(c tele.Context) error {
	newsID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	list, err := b.news.Comments(tghelpers.BuildContext(c), newsID)
	if err != nil {
		return err
	}
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{{Text: "✍️ Comment", Unique: cbNewsComment, Data: id(newsID)}})
	if len(list) == 0 {
		return tghelpers.SendHTML(c, msgNoComments, markup)
	}
	return tghelpers.SendHTML(c, commentsText(list), markup)
}

func (b *Bot) onNewsComment(c tele.Context) error {
	newsID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	return b.start(c, StateCommentContent, msgAskComment, flowTemp{tempNewsID, newsID})
}

func (b *Bot) onCommentContent(c tele.Context) error {
	text, ok := textInput(c)
	if !ok {
		return tghelpers.SendHTML(c, msgAskComment, cancelMarkup())
	}
	newsID, err := b.tempInt64(c, tempNewsID)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	if _, err := b.news.AddComment(tghelpers.BuildContext(c), u.ID, newsID, text); err != nil {
		return err
	}
	return b.done(c, msgCommentSaved)
}

func (b *Bot) onNewsReport(c tele.Context) error {
	newsID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	return b.start(c, StateReportReason, msgAskReason, flowTemp{tempNewsID, newsID})
}

func (b *Bot) onReportReason(c tele.Context) error {
	reason, ok := textInput(c)
	if !ok {
		return tghelpers.SendHTML(c, msgAskReason, cancelMarkup())
	}
	newsID, err := b.tempInt64(c, tempNewsID)
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	hidden, err := b.news.Report(tghelpers.BuildContext(c), u.ID, newsID, reason)
	if err != nil {
		return err
	}
	if hidden {
		return b.done(c, msgReportedHidden)
	}
	return b.done(c, msgReported)
}

func (b *Bot) onTrending(c tele.Context) error {
	items, err := b.news.Trending(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return tghelpers.SendHTML(c, msgNoTrending)
	}
	return tghelpers.SendHTML(c, trendingText(items, b.users.Link))
}

func (b *Bot) onBookmarks(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	items, err := b.news.Bookmarks(tghelpers.BuildContext(c), u.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return tghelpers.SendHTML(c, msgNoBookmarks)
	}
	return tghelpers.SendHTML(c, bookmarksText(items, b.users.Link))
}

func (b *Bot) onProfile(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	ctx := tghelpers.BuildContext(c)
	if _, err := b.users.RefreshLevel(ctx, u.ID); err != nil {
		return err
	}
	p, err := b.users.Profile(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, profileText(p))
}

func (b *Bot) onInvite(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	link, err := b.users.CreateInvite(tghelpers.BuildContext(c), u.ID)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, fmt.Sprintf("✉️ Send this link to a friend:\n%s", format.HTML(link)))
}

func (b *Bot) onHelpFeedback(c tele.Context) error {
	return b.start(c, StateFeedbackMessage, msgAskFeedback)
}

func (b *Bot) onFeedbackMessage(c tele.Context) error {
	text, ok := textInput(c)
	if !ok {
		return tghelpers.SendHTML(c, msgAskFeedback, cancelMarkup())
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	if err := b.users.Feedback(tghelpers.BuildContext(c), u.ID, text); err != nil {
		return err
	}
	return b.done(c, msgFeedbackThanks)
}

func (b *Bot) onHelpSource(c tele.Context) error {
	return b.start(c, StateAddSourceLink, msgAskSource)
}

func (b *Bot) onSourceLink(c tele.Context) error {
	link, ok := textInput(c)
	if !ok {
		return tghelpers.SendHTML(c, msgAskSource, cancelMarkup())
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	typ, added, err := b.news.AddSource(tghelpers.BuildContext(c), u.ID, link)
	if err != nil {
		return err
	}
	if !added {
		return b.done(c, "This source has already been suggested. Thank you!")
	}
	return b.done(c, fmt.Sprintf("✅ Thank you! The %s source was sent for moderation.", typ))
}

func (b *Bot) onFilters(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	kws, err := b.news.Keywords(tghelpers.BuildContext(c), u.ID)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, filtersText(kws), filtersMarkup(kws))
}

func (b *Bot) onFilterAdd(c tele.Context) error {
	return b.start(c, StateFilterKeyword, msgAskKeyword)
}

func (b *Bot) onFilterKeyword(c tele.Context) error {
	kw, ok := textInput(c)
	if !ok {
		return tghelpers.SendHTML(c, msgAskKeyword, cancelMarkup())
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	kws, err := b.news.AddKeyword(tghelpers.BuildContext(c), u.ID, kw)
	if err != nil {
		return err
	}
	b.fsm.ClearState(c.Sender().ID)
	return tghelpers.SendHTML(c, filtersText(kws), filtersMarkup(kws))
}

func (b *Bot) onFilterDel(c tele.Context) error {
	idx, err := strconv.Atoi(callbacks.CallbackPayload(c))
	if err != nil {
		return err
	}
	u, err := b.me(c)
	if err != nil {
		return err
	}
	ctx := tghelpers.BuildContext(c)
	kws, err := b.news.Keywords(ctx, u.ID)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(kws) {
		return fmt.Errorf("keyword %d: %w", idx, domain.ErrNotFound)
	}
	kws, err = b.news.RemoveKeyword(ctx, u.ID, kws[idx])
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, filtersText(kws), filtersMarkup(kws))
}

func (b *Bot) onFilterClear(c tele.Context) error {
	u, err := b.me(c)
	if err != nil {
		return err
	}
	if err := b.news.ClearKeywords(tghelpers.BuildContext(c), u.ID); err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, filtersText(nil), filtersMarkup(nil))
}

// onInlineQuery offers today's trending news for sharing in any chat.
func (b *Bot) onInlineQuery(c tele.Context) error {
	items, err := b.news.Trending(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	q := b.fold.String(strings.TrimSpace(c.Query().Text))
	results := make(tele.Results, 0, len(items))
	for _, it := range items {
		if q != "" && !strings.Contains(b.fold.String(it.Title), q) {
			continue
		}
		link := b.users.Link(newsPayload(it.ID))
		body := fmt.Sprintf("<b>%s</b>\n<a href=\"%s\">Open in the bot</a>", format.HTML(it.Title), format.HTML(link))
		results = append(results, ui.NewArticleResult(id(it.ID), it.Title, fmt.Sprintf("%d views today", it.Views), body))
	}
	return c.Answer(&tele.QueryResponse{Results: results, CacheTime: 60})
}
