// Package tui renders the device front panel: a live terminal dashboard
// showing the relay link, the sync state, and the current value while the
// agent runs.
//
// The panel is a read-mostly Bubble Tea model. It polls the supervisor's
// Snapshot() on a timer and never touches protocol state directly; the only
// commands it can issue are quit and a manual resync request. Logging should
// be routed to a file (or silenced) while the panel owns the terminal.
package tui
