package state

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/m3rciful/newsmarket/core/logger"

	tele "gopkg.in/telebot.v4"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS fsm_sessions (
	user_id    INTEGER PRIMARY KEY,
	state      TEXT    NOT NULL,
	temp       TEXT    NOT NULL DEFAULT '{}',
	updated_at INTEGER NOT NULL
)`

// sqliteManager keeps sessions in a SQLite table so conversations survive restarts.
// Each call is a short read-modify-write guarded by mu.
type sqliteManager struct {
	handlerSet

	mu  sync.Mutex
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// SQLiteOptions configures NewSQLiteManager.
type SQLiteOptions struct {
	// TTL expires sessions untouched for longer than this; 0 keeps them forever.
	TTL time.Duration
}

// OpenSQLite opens (or creates) the session database at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite: %w", err)
	}
	// SQLite serialises writers; a single connection also keeps ":memory:" coherent.
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewSQLiteManager builds a Manager on top of db, creating the schema when missing.
func NewSQLiteManager(db *sql.DB, opts SQLiteOptions) (Manager, error) {
	if db == nil {
		return nil, errors.New("state: nil sqlite db")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("state: create schema: %w", err)
	}
	return &sqliteManager{db: db, ttl: opts.TTL, now: time.Now}, nil
}

func (m *sqliteManager) logErr(op string, userID int64, err error) {
	logger.Warn(context.Background(), "tg.fsm", "fsm.store.fail",
		slog.String("op", op),
		slog.Int64("user_id", userID),
		slog.String("err", err.Error()),
	)
}

// load reads a session; ok is false when the row is absent or expired. Caller holds m.mu.
func (m *sqliteManager) load(userID int64) (*Session, bool) {
	var (
		st      string
		raw     string
		updated int64
	)
	err := m.db.QueryRow(`SELECT state, temp, updated_at FROM fsm_sessions WHERE user_id = ?`, userID).
		Scan(&st, &raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return newSession(), false
	}
	if err != nil {
		m.logErr("load", userID, err)
		return newSession(), false
	}

	s := &Session{State: State(st), UpdatedAt: time.Unix(0, updated), TempData: make(map[string]interface{})}
	if m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl {
		m.delete(userID)
		return newSession(), false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&s.TempData); err != nil {
		m.logErr("decode", userID, err)
		s.TempData = make(map[string]interface{})
	}
	return s, true
}

// save upserts a session. Caller holds m.mu.
func (m *sqliteManager) save(userID int64, s *Session) {
	raw, err := json.Marshal(s.TempData)
	if err != nil {
		m.logErr("encode", userID, err)
		return
	}
	s.UpdatedAt = m.now()
	_, err = m.db.Exec(`INSERT INTO fsm_sessions (user_id, state, temp, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET state = excluded.state, temp = excluded.temp, updated_at = excluded.updated_at`,
		userID, string(s.State), string(raw), s.UpdatedAt.UnixNano())
	if err != nil {
		m.logErr("save", userID, err)
	}
}

func (m *sqliteManager) delete(userID int64) {
	if _, err := m.db.Exec(`DELETE FROM fsm_sessions WHERE user_id = ?`, userID); err != nil {
		m.logErr("delete", userID, err)
	}
}

func (m *sqliteManager) update(userID int64, fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, _ := m.load(userID)
	fn(s)
	m.save(userID, s)
}

// Get returns the stored session or a fresh idle one.
func (m *sqliteManager) Get(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, _ := m.load(userID)
	return s
}

// Clear removes the entire session for a user.
func (m *sqliteManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delete(userID)
}

// SetTemp stores a temporary key/value pair.
func (m *sqliteManager) SetTemp(userID int64, key string, value interface{}) {
	m.update(userID, func(s *Session) { s.TempData[key] = value })
}

// GetTemp retrieves a temporary value by key.
func (m *sqliteManager) GetTemp(userID int64, key string) (interface{}, bool) {
	v, ok := m.Get(userID).TempData[key]
	return v, ok
}

// GetTempInt64 retrieves a temporary value by key as int64.
func (m *sqliteManager) GetTempInt64(userID int64, key string) (int64, bool) {
	v, ok := m.GetTemp(userID, key)
	if !ok {
		return 0, false
	}
	return asInt64(v)
}

// GetTempString retrieves a temporary value by key as string.
func (m *sqliteManager) GetTempString(userID int64, key string) (string, bool) {
	v, ok := m.GetTemp(userID, key)
	if !ok {
		return "", false
	}
	return asString(v)
}

// ClearTemp removes a temporary key.
func (m *sqliteManager) ClearTemp(userID int64, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.load(userID)
	if !ok {
		return
	}
	delete(s.TempData, key)
	m.save(userID, s)
}

// SetState sets the FSM state for the given user.
func (m *sqliteManager) SetState(userID int64, st State) {
	m.update(userID, func(s *Session) { s.State = st })
}

// GetState returns the current FSM state or StateIdle.
func (m *sqliteManager) GetState(userID int64) State {
	return m.Get(userID).State
}

// HasState reports whether the user is inside a flow.
func (m *sqliteManager) HasState(userID int64) bool {
	return m.GetState(userID) != StateIdle
}

// ClearState resets the user to idle and drops scratch data.
func (m *sqliteManager) ClearState(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delete(userID)
}

// InProgress reports whether the user currently has an active FSM state.
func (m *sqliteManager) InProgress(userID int64) bool {
	return m.HasState(userID)
}

// ManagerHandler executes the handler registered for the user's current state, if any.
func (m *sqliteManager) ManagerHandler(c tele.Context) error {
	return m.dispatch(c, m.GetState(c.Sender().ID))
}
