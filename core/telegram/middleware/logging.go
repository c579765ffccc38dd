package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/newsmarket/core/logger"
	"github.com/m3rciful/newsmarket/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/newsmarket/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// updateWindow remembers update ids for ttl so an update that passes through
// more than one logging chain produces a single receipt line.
type updateWindow struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int]time.Time
}

// first reports whether id has not been seen within the window.
func (w *updateWindow) first(id int, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for old, at := range w.seen {
		if now.Sub(at) > w.ttl {
			delete(w.seen, old)
		}
	}
	if _, dup := w.seen[id]; dup {
		return false
	}
	w.seen[id] = now
	return true
}

var receipts = &updateWindow{ttl: 10 * time.Second, seen: make(map[int]time.Time)}

// LoggerMiddleware assigns the update's correlation id, caches the request
// context and logs a sampled debug receipt line once per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var userID, chatID int64
		if u := c.Sender(); u != nil {
			userID = u.ID
		}
		if ch := c.Chat(); ch != nil {
			chatID = ch.ID
		}
		c.Set("rid", logger.BuildRID(upd.ID, chatID, userID))
		c.Set("update_start", time.Now())
		ctx := tghelpers.BuildContext(c)

		if logger.ShouldSampleDebug() && receipts.first(upd.ID, time.Now()) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if ch := c.Chat(); ch != nil {
		attrs = append(attrs, slog.String("chat_type", string(ch.Type)))
	}
	if u := c.Sender(); u != nil {
		attrs = append(attrs,
			slog.String("username", logger.SanitizeLimit(u.Username, 64)),
			slog.String("lang", u.LanguageCode),
		)
	}
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Query != nil:
		attrs = append(attrs, slog.String("inline_query", logger.SanitizeLimit(upd.Query.Text, 128)))
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
		if upd.Message.Photo != nil {
			attrs = append(attrs, slog.Bool("photo", true))
		}
	}
	return attrs
}
