package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

const stateAsk State = "ask"

func managers(t *testing.T) map[string]Manager {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sq, err := NewSQLiteManager(db, SQLiteOptions{})
	require.NoError(t, err)
	return map[string]Manager{
		"memory": NewMemoryManager(),
		"sqlite": sq,
	}
}

func textContext(userID int64, text string) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: 1,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
		},
	})
}

func TestManagerStateLifecycle(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, StateIdle, m.GetState(1))
			assert.False(t, m.InProgress(1))

			m.SetState(1, stateAsk)
			m.SetTemp(1, "news_id", int64(42))
			m.SetTemp(1, "title", "Bike")

			assert.Equal(t, stateAsk, m.GetState(1))
			assert.True(t, m.HasState(1))

			id, ok := m.GetTempInt64(1, "news_id")
			require.True(t, ok)
			assert.Equal(t, int64(42), id)

			title, ok := m.GetTempString(1, "title")
			require.True(t, ok)
			assert.Equal(t, "Bike", title)

			m.ClearTemp(1, "title")
			_, ok = m.GetTemp(1, "title")
			assert.False(t, ok)

			m.ClearState(1)
			assert.Equal(t, StateIdle, m.GetState(1))
			_, ok = m.GetTemp(1, "news_id")
			assert.False(t, ok, "clearing state drops scratch data")
		})
	}
}

func TestManagerSessionsAreIsolated(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			m.SetState(1, stateAsk)
			m.SetTemp(1, "k", "one")
			assert.Equal(t, StateIdle, m.GetState(2))
			_, ok := m.GetTemp(2, "k")
			assert.False(t, ok)

			s := m.Get(1)
			s.TempData["k"] = "mutated"
			v, _ := m.GetTempString(1, "k")
			assert.Equal(t, "one", v, "Get returns a copy")

			m.Clear(1)
			assert.False(t, m.HasState(1))
		})
	}
}

func TestManagerDispatchesBoundState(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			var got string
			m.Handle(stateAsk, func(c tele.Context) error {
				got = c.Text()
				return nil
			})

			require.NoError(t, m.ManagerHandler(textContext(5, "ignored")))
			assert.Empty(t, got, "idle users are not dispatched")

			m.SetState(5, stateAsk)
			require.NoError(t, m.ManagerHandler(textContext(5, "hello")))
			assert.Equal(t, "hello", got)
		})
	}
}

func TestSQLiteSessionsSurviveReopen(t *testing.T) {
	path := t.TempDir() + "/fsm.db"

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	m, err := NewSQLiteManager(db, SQLiteOptions{})
	require.NoError(t, err)
	m.SetState(9, stateAsk)
	m.SetTemp(9, "price", 1500)
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	m, err = NewSQLiteManager(db, SQLiteOptions{})
	require.NoError(t, err)

	assert.Equal(t, stateAsk, m.GetState(9))
	price, ok := m.GetTempInt64(9, "price")
	require.True(t, ok)
	assert.Equal(t, int64(1500), price)
}

func TestSQLiteSessionsExpire(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	mgr, err := NewSQLiteManager(db, SQLiteOptions{TTL: time.Minute})
	require.NoError(t, err)
	sq := mgr.(*sqliteManager)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sq.now = func() time.Time { return base }
	sq.SetState(3, stateAsk)
	assert.Equal(t, stateAsk, sq.GetState(3))

	sq.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Equal(t, StateIdle, sq.GetState(3))
}

func TestAsInt64(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int64
		ok   bool
	}{
		{int64(3), 3, true},
		{7, 7, true},
		{float64(2), 2, true},
		{2.5, 2, false},
		{"15", 15, true},
		{"x", 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := asInt64(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "%v", tc.in)
		}
	}
}
