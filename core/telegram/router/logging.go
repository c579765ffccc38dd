package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/newsmarket/core/logger"
	tghelpers "github.com/m3rciful/newsmarket/core/telegram/helpers"
	"github.com/m3rciful/newsmarket/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// runLogged calls fn under the handler name and writes one summary line for it.
func runLogged(c tele.Context, handler string, start time.Time, fn func() error) error {
	tghelpers.WithHandler(c, handler)
	err := fn()
	status := "ok"
	if err != nil {
		status = "fail"
	}
	logSummary(c, handler, start, status, status, err)
	return err
}

// logSkipped records an update that no handler consumed.
func logSkipped(c tele.Context, handler string, start time.Time) {
	logSummary(c, handler, start, "skip", "ok", nil)
}

func logSummary(c tele.Context, handler string, start time.Time, status, outcome string, err error) {
	ctx := tghelpers.WithHandler(c, handler)
	msgs, kb := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

// normalizeHandlerName turns a command, button or callback key into a log-friendly handler name.
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode prefers an error's Code() and falls back to its type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return errorCode(code)
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return errorCode(t.Name())
}

func errorCode(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
}
