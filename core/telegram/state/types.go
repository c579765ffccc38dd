package state

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and temporary data for a user.
type Session struct {
	State     State
	TempData  map[string]interface{}
	UpdatedAt time.Time
}

func newSession() *Session {
	return &Session{State: StateIdle, TempData: make(map[string]interface{})}
}

func (s *Session) clone() *Session {
	out := &Session{State: s.State, UpdatedAt: s.UpdatedAt, TempData: make(map[string]interface{}, len(s.TempData))}
	for k, v := range s.TempData {
		out.TempData[k] = v
	}
	return out
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	// Get returns a copy of the user's session (idle when absent).
	Get(userID int64) *Session
	Clear(userID int64)

	SetTemp(userID int64, key string, value interface{})
	GetTemp(userID int64, key string) (interface{}, bool)
	GetTempInt64(userID int64, key string) (int64, bool)
	GetTempString(userID int64, key string) (string, bool)
	ClearTemp(userID int64, key string)

	// Dialog state
	SetState(userID int64, st State)
	GetState(userID int64) State
	HasState(userID int64) bool
	ClearState(userID int64)

	InProgress(userID int64) bool

	// Handle binds h to st; ManagerHandler runs the handler bound to the
	// sender's current state.
	Handle(st State, h tele.HandlerFunc)
	ManagerHandler(c tele.Context) error
}
