// Package eventlog keeps capped, newest-first logs of hub activity. The
// action log records command dispatch, the status log records agent and
// system events; both evict from the tail and push each new entry to a
// Notifier for live broadcast.
package eventlog
