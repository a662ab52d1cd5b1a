// Package hub runs the bidirectional event channel shared by agents and
// dashboards.
//
// # Overview
//
// Every connected process, whether an agent runtime or a dashboard, holds one
// long-lived websocket carrying JSON envelopes:
//
//	{"event": "login-agent", "data": {"name": "miner-1", "id": "3"}}
//
// The hub dispatches inbound envelopes by event name and broadcasts state
// changes to every connection. There is no per-connection subscription
// model; all parties see all broadcasts, and agents ignore events that do
// not concern them.
//
// # Connection Roles
//
// A connection earns roles through the events it sends:
//
//   - register-agents binds it as the control channel for those names
//     (the process that can start and stop agent sessions)
//   - login-agent binds it as the live channel for one name
//     (the in-game session that receives messages and status requests)
//
// A dashboard sends neither and simply receives broadcasts. Control
// bindings are last-writer-wins so a restarted manager process can take
// over; live bindings are first-writer-wins and a second login for the
// same name is rejected.
//
// # Disconnect Semantics
//
// Dropping a websocket removes channel bindings and flips the agent's
// status to offline. Registry records survive; an agent that reconnects
// and logs in again resumes under the same record.
//
// # Replay
//
// New connections immediately receive the current agent roster and the
// full contents of both event logs, then follow along with single-entry
// broadcasts.
//
// # Key Files
//
//   - hub.go: connection tracking, event dispatch, broadcasts
//   - conn.go: one websocket with a write lock and an agent-name slot
//   - envelope.go: event names and payload shapes
package hub
