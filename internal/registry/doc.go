// Package registry is the authoritative in-memory record of agent names.
//
// # Lifecycle
//
// An agent name moves through four states:
//
//	unregistered -> offline -> online -> offline
//	                        \-> stopping
//
// Registration creates the record (idempotently); login and logout flip
// between online and offline. Only explicit unregistration deletes a
// record; disconnects never do.
//
// # Snapshots and Stats
//
// Each record carries the last game snapshot reported by the agent and a
// set of counters merged forward-only, so a restarted agent reporting
// zeroes cannot roll totals back.
package registry
