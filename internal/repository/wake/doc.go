// Package wake persists pending wake-ups of the timer service so they survive
// process restarts.
//
// Records are keyed by alarm identifier: Save replaces, Delete is idempotent.
// Three backends are provided: SQLite (default), a JSON file and memory.
package wake
