package middleware

import (
	"github.com/m3rciful/newsmarket/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether the sender of c is the configured admin.
// With no admin configured nobody is treated as admin.
func (o AdminOptions) IsAdmin(c tele.Context) bool {
	u := c.Sender()
	return o.AdminID != 0 && u != nil && u.ID == o.AdminID
}

func (o AdminOptions) reject(c tele.Context) error {
	if o.OnReject != nil {
		return o.OnReject(c)
	}
	return nil
}

// WithAdminCheck wraps a command handler enforcing admin-only execution when required.
func WithAdminCheck(opts AdminOptions, cmd commands.Command) tele.HandlerFunc {
	if !cmd.AdminOnly {
		return cmd.Handler
	}
	return func(c tele.Context) error {
		if !opts.IsAdmin(c) {
			return opts.reject(c)
		}
		return cmd.Handler(c)
	}
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.IsAdmin(c) {
				return opts.reject(c)
			}
			return next(c)
		}
	}
}
