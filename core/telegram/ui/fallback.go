package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands, callbacks, buttons or an active conversation.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnexpectedPhoto() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
