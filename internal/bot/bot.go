// Package bot turns the news, market and AI services into Telegram handlers:
// menus, inline cards, conversation steps and admin moderation.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/m3rciful/newsmarket/core/logger"
	tg "github.com/m3rciful/newsmarket/core/telegram"
	"github.com/m3rciful/newsmarket/core/telegram/commands"
	tghelpers "github.com/m3rciful/newsmarket/core/telegram/helpers"
	"github.com/m3rciful/newsmarket/core/telegram/middleware"
	"github.com/m3rciful/newsmarket/core/telegram/router"
	"github.com/m3rciful/newsmarket/core/telegram/state"
	"github.com/m3rciful/newsmarket/core/telegram/ui"
	"github.com/m3rciful/newsmarket/internal/ai"
	"github.com/m3rciful/newsmarket/internal/domain"
	"github.com/m3rciful/newsmarket/internal/service/market"
	"github.com/m3rciful/newsmarket/internal/service/news"
	"github.com/m3rciful/newsmarket/internal/service/users"

	tele "gopkg.in/telebot.v4"
)

const component = "bot"

var _ ui.FallbackProvider = (*Bot)(nil)

// Deps are the collaborators of Bot. All services and FSM are required.
type Deps struct {
	Users  *users.Service
	News   *news.Service
	Market *market.Service
	AI     *ai.Service
	FSM    state.Manager

	// Notifier, when set, is attached to the bot API on start.
	Notifier *Notifier

	AdminID int64
	// CancelWord aborts a conversation when sent as plain text, compared case-insensitively.
	CancelWord string
}

// Bot owns the registry and the handlers bound to it.
type Bot struct {
	users  *users.Service
	news   *news.Service
	market *market.Service
	ai     *ai.Service
	fsm    state.Manager
	notify *Notifier
	admin  middleware.AdminOptions

	fold       cases.Caser
	cancelWord string

	reg *tg.Registry
}

// New validates deps and registers every command, button, callback and conversation step.
func New(d Deps) (*Bot, error) {
	if d.Users == nil || d.News == nil || d.Market == nil || d.AI == nil || d.FSM == nil {
		return nil, errors.New("bot: missing dependency")
	}
	fold := cases.Fold()
	b := &Bot{
		users:  d.Users,
		news:   d.News,
		market: d.Market,
		ai:     d.AI,
		fsm:    d.FSM,
		notify: d.Notifier,
		admin: middleware.AdminOptions{
			AdminID:  d.AdminID,
			OnReject: func(c tele.Context) error { return tghelpers.SendText(c, msgAdminOnly) },
		},
		fold:       fold,
		cancelWord: fold.String(strings.TrimSpace(d.CancelWord)),
		reg:        tg.NewRegistry(),
	}
	if b.cancelWord == "" {
		b.cancelWord = "cancel"
	}
	b.registerCommands()
	b.registerButtons()
	if err := b.registerCallbacks(); err != nil {
		return nil, err
	}
	b.registerStates()
	b.reg.SetCallbackNotFound(b.UnknownCallback())
	return b, nil
}

// Registry exposes the populated registry to the runtime.
func (b *Bot) Registry() *tg.Registry { return b.reg }

// Routes returns every route the bot handles.
func (b *Bot) Routes() []tg.Route {
	routes := router.CommandRoutes(b.reg, router.CommandRouteOptions{
		AdminID:       b.admin.AdminID,
		OnAdminReject: b.admin.OnReject,
		FSM:           b.fsm,
	})
	routes = append(routes, router.CallbackRoute(b.reg, router.CallbackOptions{NotFound: b.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(b.fsm, b.reg, router.TextOptions{
		IsCancel:        b.IsCancel,
		OnCancel:        b.onCancel,
		UnknownText:     b.UnknownText(),
		UnknownDocument: b.UnknownDocument(),
		UnexpectedPhoto: b.UnexpectedPhoto(),
	})...)
	routes = append(routes, tg.Route{
		Endpoint: tele.OnQuery,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(b.onInlineQuery)),
	})
	return routes
}

// IsCancel reports whether text is the cancel word, ignoring case.
func (b *Bot) IsCancel(text string) bool {
	return b.fold.String(strings.TrimSpace(text)) == b.cancelWord
}

type command struct {
	name    string
	desc    string
	handler tele.HandlerFunc
	admin   bool
	hidden  bool
	aliases []string
}

func (b *Bot) registerCommands() {
	for _, cmd := range []command{
		{name: "/start", desc: "Start the bot", handler: b.onStart},
		{name: "/help", desc: "What I can do", handler: b.onHelp},
		{name: "/cancel", desc: "Abort the current action", handler: b.onCancel},
		{name: "/feed", desc: "Next news from your feed", handler: b.onFeed, aliases: []string{"news"}},
		{name: "/trending", desc: "Most viewed news today", handler: b.onTrending},
		{name: "/bookmarks", desc: "Saved news", handler: b.onBookmarks},
		{name: "/filters", desc: "Feed keywords", handler: b.onFilters},
		{name: "/profile", desc: "Your level and stats", handler: b.onProfile, aliases: []string{"me"}},
		{name: "/invite", desc: "Invite a friend", handler: b.onInvite, hidden: true},
		{name: "/market", desc: "Browse listings", handler: b.onMarket},
		{name: "/sell", desc: "Sell an item", handler: b.onSell},
		{name: "/mylistings", desc: "Your listings", handler: b.onMyListings},
		{name: "/mydeals", desc: "Your deals", handler: b.onMyDeals},
		{name: "/ai", desc: "AI text tools", handler: b.onAITools},
		{name: "/moderate", desc: "Moderation queues", handler: b.onModerate, admin: true},
		{name: "/publish", desc: "Publish news: title|content|link|source", handler: b.onPublish, admin: true},
		{name: "/stats", desc: "Bot statistics", handler: b.onStats, admin: true},
	} {
		b.reg.RegisterCommand(cmd.name, commands.Command{
			Handler:     b.guard(cmd.handler),
			Description: cmd.desc,
			AdminOnly:   cmd.admin,
			Hidden:      cmd.hidden,
			Aliases:     cmd.aliases,
		})
	}
}

func (b *Bot) registerButtons() {
	for text, h := range map[string]tele.HandlerFunc{
		btnFeed:      b.onFeed,
		btnTrending:  b.onTrending,
		btnFilters:   b.onFilters,
		btnBookmarks: b.onBookmarks,
		btnProfile:   b.onProfile,
		btnHelp:      b.onHelp,
		btnMarket:    b.onMarket,
	} {
		b.reg.RegisterButton(text, b.guard(h))
	}
}

func (b *Bot) registerCallbacks() error {
	handlers := map[string]tele.HandlerFunc{
		cbNewsLike:    b.onNewsLike,
		cbNewsDislike: b.onNewsDislike,
		cbNewsSave:    b.onNewsSave,
		cbNewsNext:    b.onNewsNext,
		cbNewsSummary: b.onNewsSummary,
		cbNewsAI:      b.onNewsAI,
		cbNewsComms:   b.onNewsComments,
		cbNewsComment: b.onNewsComment,
		cbNewsReport:  b.onNewsReport,

		cbHelpFeedback: b.onHelpFeedback,
		cbHelpSource:   b.onHelpSource,
		cbHelpInvite:   b.onInvite,

		cbFilterAdd:   b.onFilterAdd,
		cbFilterDel:   b.onFilterDel,
		cbFilterClear: b.onFilterClear,

		cbAIRun: b.onAIRun,

		cbMarketPage:     b.onMarketPage,
		cbMarketShow:     b.onListingShow,
		cbMarketBuy:      b.onBuy,
		cbMarketBuyOK:    b.onBuyConfirm,
		cbMarketOffer:    b.onOfferStart,
		cbMarketWithdraw: b.onWithdraw,
		cbMarketOffers:   b.onOffers,
		cbMarketAI:       b.onListingAI,

		cbOfferAccept:  b.onOfferAccept,
		cbOfferDecline: b.onOfferDecline,

		cbDealConfirm:  b.onDealConfirm,
		cbDealCancel:   b.onDealCancel,
		cbDealComplete: b.onDealComplete,
		cbDealReview:   b.onDealReview,
		cbDealRate:     b.onDealRate,

		cbSellSkipPhoto: b.onSellSkipPhoto,

		cbFlowCancel: b.onFlowCancel,
	}
	adminOnly := middleware.AdminOnlyMiddleware(b.admin)
	for key, h := range map[string]tele.HandlerFunc{
		cbModNews:    b.onModNews,
		cbModSource:  b.onModSource,
		cbModListing: b.onModListing,
	} {
		handlers[key] = adminOnly(h)
	}
	for key, h := range handlers {
		if err := b.reg.RegisterCallback(key, b.guard(h)); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	return nil
}

func (b *Bot) registerStates() {
	for st, h := range map[state.State]tele.HandlerFunc{
		StateAddSourceLink:      b.onSourceLink,
		StateReportReason:       b.onReportReason,
		StateFeedbackMessage:    b.onFeedbackMessage,
		StateFilterKeyword:      b.onFilterKeyword,
		StateCommentContent:     b.onCommentContent,
		StateListingTitle:       b.onListingTitle,
		StateListingDescription: b.onListingDescription,
		StateListingPrice:       b.onListingPrice,
		StateListingPhoto:       b.onListingPhoto,
		StateOfferPrice:         b.onOfferPrice,
		StateReviewRating:       b.onReviewRating,
		StateReviewText:         b.onReviewText,
		StateAIInput:            b.onAIInput,
	} {
		b.fsm.Handle(st, b.guard(h))
	}
}

// me resolves the sender, registering them on first contact.
func (b *Bot) me(c tele.Context) (domain.User, error) {
	sender := c.Sender()
	if sender == nil {
		return domain.User{}, domain.ErrNotRegistered
	}
	ctx := tghelpers.BuildContext(c)
	u, err := tghelpers.CurrentUser[domain.User](ctx, b.users, sender.ID)
	if !errors.Is(err, domain.ErrNotRegistered) {
		return u, err
	}
	reg, err := b.users.Register(ctx, telegramUser(sender), "")
	if err != nil {
		return domain.User{}, err
	}
	return reg.User, nil
}

func telegramUser(u *tele.User) domain.TelegramUser {
	return domain.TelegramUser{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LanguageCode: u.LanguageCode,
	}
}

// flowTemp is a scratch value seeded into a new conversation.
type flowTemp struct {
	key   string
	value interface{}
}

// resetFlow drops whatever conversation uid was in and seeds the next one.
func resetFlow(fsm state.Manager, uid int64, temp ...flowTemp) {
	fsm.ClearState(uid)
	for _, t := range temp {
		fsm.SetTemp(uid, t.key, t.value)
	}
}

// start opens a conversation at st from a clean session.
func (b *Bot) start(c tele.Context, st state.State, prompt string, temp ...flowTemp) error {
	resetFlow(b.fsm, c.Sender().ID, temp...)
	return b.ask(c, st, prompt)
}

// ask moves the sender to the next step of the current conversation and prompts
// for input with an inline cancel button.
func (b *Bot) ask(c tele.Context, st state.State, prompt string) error {
	b.fsm.SetState(c.Sender().ID, st)
	return tghelpers.SendHTML(c, prompt, cancelMarkup())
}

// done leaves the conversation and confirms with the main menu.
func (b *Bot) done(c tele.Context, text string) error {
	b.fsm.ClearState(c.Sender().ID)
	return tghelpers.SendHTML(c, text, mainMenu())
}

// toast answers a callback with a short notification.
func toast(c tele.Context, text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text})
}

func (b *Bot) onCancel(c tele.Context) error {
	if !router.AbandonedFlow(c) {
		return tghelpers.SendText(c, msgNothingCancel)
	}
	return tghelpers.SendHTML(c, msgCancelled, mainMenu())
}

func (b *Bot) onFlowCancel(c tele.Context) error {
	uid := c.Sender().ID
	if !b.fsm.InProgress(uid) {
		_ = c.Delete()
		return toast(c, msgNothingCancel)
	}
	b.fsm.ClearState(uid)
	_ = toast(c, msgCancelled)
	return tghelpers.SendHTML(c, msgCancelled, mainMenu())
}

// UnknownText answers text that matched nothing.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendHTML(c, "I did not understand that. Use the menu below.", mainMenu())
	}
}

// UnknownDocument answers files sent outside a conversation.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, "I do not accept files.")
	}
}

// UnexpectedPhoto answers photos sent outside the sell flow.
func (b *Bot) UnexpectedPhoto() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, "Photos are only accepted when you /sell an item.")
	}
}

// UnknownCallback answers buttons of outdated messages.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "This button is outdated.", ShowAlert: true})
	}
}

// OnStart attaches the notifier to the running bot.
func (b *Bot) OnStart(ctx context.Context, rt tg.Runtime) error {
	if b.notify != nil {
		b.notify.Attach(rt.Bot, rt.Dispatcher)
	}
	username := ""
	if rt.Bot != nil && rt.Bot.Me != nil {
		username = rt.Bot.Me.Username
	}
	logger.Info(ctx, component, "bot.ready",
		slog.String("username", username),
		slog.Int("commands", len(b.reg.Commands())),
		slog.Int("callbacks", len(b.reg.ListCallbacks())),
	)
	return nil
}
