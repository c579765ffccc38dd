package bot

import (
	"fmt"
	"strconv"

	"github.com/m3rciful/newsmarket/core/telegram/callbacks"
	"github.com/m3rciful/newsmarket/core/telegram/format"
	tghelpers "github.com/m3rciful/newsmarket/core/telegram/helpers"
	"github.com/m3rciful/newsmarket/internal/ai"
	"github.com/m3rciful/newsmarket/internal/domain"

	tele "gopkg.in/telebot.v4"
)

var targetScopes = map[string]ai.Scope{
	targetNews:    ai.ScopeNews,
	targetListing: ai.ScopeMarket,
	targetGeneral: ai.ScopeGeneral,
}

func (b *Bot) onAITools(c tele.Context) error {
	return b.sendAIMenu(c, targetGeneral, 0, "✨ <b>AI tools</b>\nPick a tool, then send the text.")
}

func (b *Bot) onNewsAI(c tele.Context) error {
	newsID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	return b.sendAIMenu(c, targetNews, newsID, "✨ What should I do with this news?")
}

func (b *Bot) onListingAI(c tele.Context) error {
	listingID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	return b.sendAIMenu(c, targetListing, listingID, "✨ What should I do with this listing?")
}

func (b *Bot) sendAIMenu(c tele.Context, target string, targetID int64, title string) error {
	prompts := b.ai.Catalog().List(targetScopes[target])
	if len(prompts) == 0 {
		return fmt.Errorf("ai menu %s: %w", target, ai.ErrUnavailable)
	}
	return tghelpers.SendHTML(c, title, aiMenuMarkup(target, targetID, prompts))
}

// onAIRun runs a prompt picked from an AI menu. Payload: target|id|key.
func (b *Bot) onAIRun(c tele.Context) error {
	parts, err := callbacks.PayloadParts(c, "|")
	if err != nil {
		return err
	}
	if len(parts) != 3 {
		return strconv.ErrSyntax
	}
	target, key := parts[0], parts[2]
	targetID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return err
	}
	p, ok := b.ai.Catalog().Get(key)
	if !ok || p.Scope != targetScopes[target] {
		return fmt.Errorf("prompt %q for %q: %w", key, target, domain.ErrNotFound)
	}
	ctx := tghelpers.BuildContext(c)
	var input map[string]string
	switch target {
	case targetNews:
		n, err := b.news.Get(ctx, targetID)
		if err != nil {
			return err
		}
		input = map[string]string{"title": n.Title, "content": n.Content}
	case targetListing:
		u, err := b.me(c)
		if err != nil {
			return err
		}
		l, err := b.market.Get(ctx, u.ID, targetID)
		if err != nil {
			return err
		}
		input = map[string]string{
			"title":       l.Title,
			"description": l.Description,
			"price":       format.Price(l.Price, l.Currency),
		}
	default:
		return b.start(c, StateAIInput, msgAskAIInput, flowTemp{tempPromptKey, key})
	}
	_ = toast(c, msgAIWait)
	text, err := b.ai.Run(ctx, key, input)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, aiReplyText(p.Title, text))
}

func (b *Bot) onAIInput(c tele.Context) error {
	text, ok := textInput(c)
	if !ok || text == "" {
		return tghelpers.SendHTML(c, msgAskAIInput, cancelMarkup())
	}
	key, ok := b.fsm.GetTempString(c.Sender().ID, tempPromptKey)
	if !ok {
		return fmt.Errorf("ai input: %w", errFlowLost)
	}
	p, ok := b.ai.Catalog().Get(key)
	if !ok {
		return fmt.Errorf("prompt %q: %w", key, domain.ErrNotFound)
	}
	if err := tghelpers.SendText(c, msgAIWait); err != nil {
		return err
	}
	answer, err := b.ai.Run(tghelpers.BuildContext(c), key, map[string]string{"text": text})
	if err != nil {
		return err
	}
	return b.done(c, aiReplyText(p.Title, answer))
}
