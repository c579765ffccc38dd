package bot

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/newsmarket/core/logger"
	tghelpers "github.com/m3rciful/newsmarket/core/telegram/helpers"
	"github.com/m3rciful/newsmarket/internal/ai"
	"github.com/m3rciful/newsmarket/internal/domain"

	tele "gopkg.in/telebot.v4"
)

// userMessage maps an error to the text shown to the user.
// expected is false for failures the user did not cause.
func userMessage(err error) (msg string, expected bool) {
	var verr *domain.ValidationError
	var apiErr *ai.APIError
	switch {
	case errors.As(err, &verr):
		return "⚠️ " + capitalize(verr.Field) + " " + verr.Reason + ".", true
	case errors.Is(err, errFlowLost):
		return "This conversation has expired. Please start again.", true
	case errors.Is(err, domain.ErrNotRegistered):
		return "Please press /start first.", true
	case errors.Is(err, domain.ErrNotFound):
		return "This item was not found or is no longer available.", true
	case errors.Is(err, domain.ErrConflict):
		return "Someone was faster. Please refresh and try again.", true
	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to do that.", true
	case errors.Is(err, domain.ErrInvalidTransition):
		return "This action is no longer possible.", true
	case errors.Is(err, domain.ErrDuplicate):
		return "Already done.", true
	case errors.Is(err, ai.ErrUnavailable):
		return "AI tools are not available right now.", true
	case errors.Is(err, ai.ErrTimeout):
		return "The AI took too long to answer. Please try again later.", false
	case errors.Is(err, ai.ErrEmpty):
		return "The AI returned an empty answer. Please try again.", false
	case errors.As(err, &apiErr) && apiErr.Temporary():
		return "The AI is busy. Please try again in a minute.", false
	}
	return msgGenericError, false
}

func capitalize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// guard applies the error policy to h: the conversation is reset, the failure logged,
// and the user gets an explanation with the main menu. Expected domain errors are
// reported to the router as handled.
func (b *Bot) guard(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		err := h(c)
		if err == nil {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		if u := c.Sender(); u != nil {
			b.fsm.ClearState(u.ID)
		}
		msg, expected := userMessage(err)
		level := slog.LevelError
		if expected {
			level = slog.LevelInfo
		}
		logger.Event(ctx, component, level, "handler.error",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.Bool("expected", expected),
		)
		if c.Callback() != nil {
			_ = c.Respond(&tele.CallbackResponse{Text: msg})
		}
		if sendErr := tghelpers.SendHTML(c, msg, mainMenu()); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		if expected {
			return nil
		}
		return err
	}
}
