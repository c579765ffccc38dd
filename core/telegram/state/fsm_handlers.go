package state

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/m3rciful/newsmarket/core/logger"
	tghelpers "github.com/m3rciful/newsmarket/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// handlerSet is shared by Manager implementations.
type handlerSet struct {
	mu       sync.RWMutex
	handlers map[State]tele.HandlerFunc
}

// Handle associates a state with its handler.
func (h *handlerSet) Handle(st State, fn tele.HandlerFunc) {
	if fn == nil || st == StateIdle {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[State]tele.HandlerFunc)
	}
	h.handlers[st] = fn
}

func (h *handlerSet) lookup(st State) (tele.HandlerFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.handlers[st]
	return fn, ok
}

func (h *handlerSet) dispatch(c tele.Context, current State) error {
	ctx := tghelpers.BuildContext(c)
	fn, ok := h.lookup(current)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("state", string(current)),
		slog.Bool("bound", ok),
	)
	if !ok {
		return nil
	}
	return fn(c)
}

func asInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), x == float64(int64(x))
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	}
	return "", false
}
