// Package api exposes the HTTP control surface.
//
// # Endpoints
//
//   - GET  /health, /health/ready - liveness and readiness (unauthenticated)
//   - GET  /api/agents - list registered agents
//   - POST /api/agents/register - register names
//   - GET  /api/agents/{name}/status - synchronous status fetch
//   - POST /api/agents/{name}/command - deliver a text command
//   - GET  /api/agents/{name}/start, /stop - lifecycle forwarding
//   - CRUD under /api/cloud/tables - cloud table store
//   - POST /api/monitor_query - natural-language query through the prompter
//   - POST /api/transcribe - speech-to-text passthrough
//   - POST /api/events/agent, /system and GET /api/events - event logs
//
// # Response Envelope
//
// Errors are JSON with a stable machine code:
//
//	{"success": false, "error": "AGENT_NOT_FOUND", "message": "..."}
//
// # Auth
//
// Everything under /api requires a bearer JWT when a verifier is
// configured; with no jwt_secret the surface is open and the server logs
// a warning at startup.
//
// Command submissions may carry an Idempotency-Key header; a replay of
// the same key within the dedupe window is rejected with
// DUPLICATE_COMMAND instead of delivering twice.
package api
