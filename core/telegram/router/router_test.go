package router

import (
	"errors"
	"testing"

	tg "github.com/m3rciful/newsmarket/core/telegram"
	"github.com/m3rciful/newsmarket/core/telegram/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type fakeFSM struct {
	active  bool
	cleared int
	handled int
}

func (f *fakeFSM) InProgress(int64) bool { return f.active }
func (f *fakeFSM) ClearState(int64)      { f.active = false; f.cleared++ }
func (f *fakeFSM) ManagerHandler(tele.Context) error {
	f.handled++
	return nil
}

func textCtx(text string) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: 3,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: 8},
			Chat:   &tele.Chat{ID: 8},
		},
	})
}

func routeFor(routes []tg.Route, endpoint string) tele.HandlerFunc {
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	return nil
}

func TestTextRoutesPriority(t *testing.T) {
	fsm := &fakeFSM{}
	reg := tg.NewRegistry()
	var hits []string
	reg.RegisterButton("📰 News", func(tele.Context) error { hits = append(hits, "button"); return nil })
	reg.RegisterCommand("/market", commands.Command{Description: "m", Aliases: []string{"market"},
		Handler: func(tele.Context) error { hits = append(hits, "command"); return nil }})
	reg.SetTextFallback(func(tele.Context) error { hits = append(hits, "fallback"); return nil })

	var cancelled int
	routes := TextRoutes(fsm, reg, TextOptions{
		IsCancel: func(s string) bool { return s == "cancel" },
		OnCancel: func(c tele.Context) error {
			if AbandonedFlow(c) {
				cancelled++
			}
			return nil
		},
	})
	h := routeFor(routes, tele.OnText)
	require.NotNil(t, h)

	fsm.active = true
	require.NoError(t, h(textCtx("📰 News")))
	assert.Equal(t, 1, fsm.handled, "active conversation wins over buttons")
	assert.Empty(t, hits)

	require.NoError(t, h(textCtx("cancel")))
	assert.Equal(t, 1, cancelled)
	assert.False(t, fsm.active)
	require.NoError(t, h(textCtx("cancel")))
	assert.Equal(t, 1, cancelled, "nothing left to cancel")

	require.NoError(t, h(textCtx("📰 News")))
	require.NoError(t, h(textCtx("market")))
	require.NoError(t, h(textCtx("something else")))
	assert.Equal(t, []string{"button", "command", "fallback"}, hits)
}

func TestTextRoutesPhotoGoesToFSM(t *testing.T) {
	fsm := &fakeFSM{active: true}
	routes := TextRoutes(fsm, tg.NewRegistry(), TextOptions{})
	h := routeFor(routes, tele.OnPhoto)
	require.NotNil(t, h)
	require.NoError(t, h(textCtx("")))
	assert.Equal(t, 1, fsm.handled)
}

func TestCommandRoutesClearStateAndCheckAdmin(t *testing.T) {
	fsm := &fakeFSM{active: true}
	reg := tg.NewRegistry()
	var ran, rejected int
	reg.RegisterCommand("/stats", commands.Command{Description: "s", AdminOnly: true,
		Handler: func(tele.Context) error { ran++; return nil }})

	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       1,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
		FSM:           fsm,
	})
	h := routeFor(routes, "/stats")
	require.NotNil(t, h)
	require.NoError(t, h(textCtx("/stats")))

	assert.Equal(t, 0, ran)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, fsm.cleared)
}

type codedErr struct{}

func (codedErr) Error() string { return "nope" }
func (codedErr) Code() string  { return "not found" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", deriveErrorCode(codedErr{}))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "news_like", normalizeHandlerName(" /News_Like "))
}
