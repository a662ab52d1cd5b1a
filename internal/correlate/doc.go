// Package correlate matches asynchronous replies to their requests by
// generated ID, delivering each result exactly once: first of reply,
// error, or timeout wins, and the rest are dropped.
package correlate
