package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const (
	counterMessages = "messages"
	counterKeyboard = "kb"
)

// metricsContext wraps tele.Context to count outgoing responses and keyboard usage.
type metricsContext struct{ tele.Context }

func (m metricsContext) record(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	n, _ := m.Get(counterMessages).(int)
	m.Set(counterMessages, n+1)
	if hasKeyboard(opts) {
		m.Set(counterKeyboard, true)
	}
	return nil
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Send(what, opts...), opts)
}

func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Reply(what, opts...), opts)
}

// Edit counts edits as responses as well.
func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Edit(what, opts...), opts)
}

func (m metricsContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.EditOrSend(what, opts...), opts)
}

func (m metricsContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware instruments context to track responses and keyboard usage.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(counterMessages, 0)
		c.Set(counterKeyboard, false)
		return next(metricsContext{Context: c})
	}
}

// GetCounters reads the response count and keyboard flag from context.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(counterMessages).(int)
	kb, _ := c.Get(counterKeyboard).(bool)
	return msgs, kb
}
