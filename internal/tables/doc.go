// Package tables implements the persisted cloud-table store.
//
// # Overview
//
// Cloud tables are named, typed documents agents use to share state:
// a table is either a list (append/replace by index) or a dict (set by
// key). Entry values are opaque JSON.
//
// # Durability
//
// Tables live in memory and in a SQLite database. Every mutation is
// written to the database before the in-memory copy changes, so a write
// that is acknowledged has already been persisted. A failed write leaves
// both copies untouched.
//
// Timestamps are stored as RFC3339 strings. The whole store is rehydrated
// from the database at startup.
//
// # Type Discipline
//
//   - list operations on a dict table (or vice versa) fail with
//     ErrWrongType
//   - Create validates any initial data against the declared type
//
// # Change Notification
//
// A Notifier receives the full table after every successful mutation, and
// nil on deletion. The hub uses this to broadcast table-update events to
// dashboards.
package tables
