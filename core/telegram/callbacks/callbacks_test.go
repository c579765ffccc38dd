package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func cbContext(cb *tele.Callback) tele.Context {
	cb.Sender = &tele.User{ID: 1}
	return tele.NewContext(nil, tele.Update{Callback: cb})
}

func TestParseCallbackData(t *testing.T) {
	key, payload := ParseCallbackData(&tele.Callback{Data: "\fnews_like|15"})
	assert.Equal(t, "news_like", key)
	assert.Equal(t, "15", payload)

	key, payload = ParseCallbackData(&tele.Callback{Unique: "offer", Data: "3|accept"})
	assert.Equal(t, "offer", key)
	assert.Equal(t, "3|accept", payload)

	key, payload = ParseCallbackData(&tele.Callback{Data: "\fmenu"})
	assert.Equal(t, "menu", key)
	assert.Empty(t, payload)
}

func TestPayloadHelpers(t *testing.T) {
	c := cbContext(&tele.Callback{Data: "\foffer|12|accept"})
	id, action, err := PayloadInt64AndString(c)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, "accept", action)

	c = cbContext(&tele.Callback{Data: "\fpage|4|20"})
	a, b, err := PayloadTwoInt64(c, "|")
	require.NoError(t, err)
	assert.Equal(t, int64(4), a)
	assert.Equal(t, int64(20), b)

	c = cbContext(&tele.Callback{Data: "\fnews|x"})
	_, err = PayloadInt64(c)
	assert.Error(t, err)

	assert.Equal(t, "1|2", Data("1", "2"))
}
