package telegram

import (
	coreconfig "github.com/m3rciful/newsmarket/core/config"
	"github.com/m3rciful/newsmarket/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the global chain in application order: panic
// recovery, per-user rate limiting when configured, then logging and counters.
// onLimited answers throttled updates and may be nil.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if cfg != nil && cfg.RateLimit.Interval() > 0 {
		chain = append(chain, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  cfg.RateLimit.Interval(),
				Exclude:   cfg.RateLimit.Excluded(),
				OnLimited: onLimited,
			}),
		})
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}
