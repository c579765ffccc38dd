package router

import (
	"time"

	tg "github.com/m3rciful/newsmarket/core/telegram"
	"github.com/m3rciful/newsmarket/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the subset of the state manager the routers need.
type FSM interface {
	InProgress(userID int64) bool
	ClearState(userID int64)
	ManagerHandler(c tele.Context) error
}

const abandonedKey = "fsm_abandoned"

// AbandonedFlow reports whether the router cleared an active conversation
// right before the current handler ran (cancel word or a command).
func AbandonedFlow(c tele.Context) bool {
	v, _ := c.Get(abandonedKey).(bool)
	return v
}

func abandon(c tele.Context, fsmMgr FSM) {
	if fsmMgr == nil || c.Sender() == nil {
		return
	}
	uid := c.Sender().ID
	c.Set(abandonedKey, fsmMgr.InProgress(uid))
	fsmMgr.ClearState(uid)
}

// TextOptions controls cancel and fallback behaviour for message routing.
type TextOptions struct {
	// IsCancel reports whether text aborts the current conversation.
	IsCancel func(text string) bool
	// OnCancel runs after the conversation state has been cleared; AbandonedFlow
	// tells whether there was anything to cancel.
	OnCancel tele.HandlerFunc

	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	UnexpectedPhoto tele.HandlerFunc
}

// TextRoutes builds handlers for text, photo and document messages.
// Text is resolved in order: cancel word, active conversation, keyboard button,
// command alias, registry fallback, UnknownText.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	inFlow := func(c tele.Context) bool {
		return fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID)
	}

	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if opts.IsCancel != nil && opts.IsCancel(text) {
			abandon(c, fsmMgr)
			return runLogged(c, "cancel", start, func() error {
				if opts.OnCancel != nil {
					return opts.OnCancel(c)
				}
				return nil
			})
		}

		if inFlow(c) {
			return runLogged(c, "fsm", start, func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}

		if reg != nil {
			if h, ok := reg.LookupButton(text); ok {
				return runLogged(c, "button."+normalizeHandlerName(text), start, func() error {
					return h(c)
				})
			}
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return runLogged(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return runLogged(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return runLogged(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		logSkipped(c, "unknown_text", start)
		return nil
	}

	mediaHandler := func(kind string, unexpected tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if inFlow(c) {
				return runLogged(c, "fsm_"+kind, start, func() error {
					return fsmMgr.ManagerHandler(c)
				})
			}
			if unexpected != nil {
				return runLogged(c, "unexpected_"+kind, start, func() error {
					return unexpected(c)
				})
			}
			logSkipped(c, "unexpected_"+kind, start)
			return nil
		}
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(handler)},
		{Endpoint: tele.OnPhoto, Handler: wrap(mediaHandler("photo", opts.UnexpectedPhoto))},
		{Endpoint: tele.OnDocument, Handler: wrap(mediaHandler("document", opts.UnknownDocument))},
	}
}
