// Package status turns the asynchronous request-status exchange into a
// synchronous fetch.
//
// Fetch sends a request-status event down the agent's live channel and
// blocks until the matching status-response or status-error arrives, the
// configured timeout elapses, or the caller's context is canceled. An
// agent without a live channel yields an "unavailable" snapshot
// immediately; absence is an expected state, not an error. Successful
// snapshots are folded back into the registry record.
package status
