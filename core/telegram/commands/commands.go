// Package commands describes slash commands registered with the bot.
package commands

import tele "gopkg.in/telebot.v4"

// Command binds a slash command to its handler.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are rejected for everyone but the configured admin.
	AdminOnly bool
	// Hidden commands work but are left out of the Telegram command menu.
	Hidden  bool
	Aliases []string
}

// Listed reports whether the command belongs in the public command menu.
func (c Command) Listed() bool {
	return c.Description != "" && !c.Hidden && !c.AdminOnly
}
