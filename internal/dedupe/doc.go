// Package dedupe provides replay protection for command submissions using
// a time-based cache of recently seen idempotency keys.
package dedupe
