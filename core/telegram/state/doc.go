// Package state tracks per-user conversation waypoints for Telegram bots.
// A Manager stores the current State plus scratch values for the flow in
// progress and dispatches text updates to the handler bound to that state.
// Memory and SQLite backends are provided.
package state
