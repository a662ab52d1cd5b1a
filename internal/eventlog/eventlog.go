// ABOUTME: Append-only capped in-memory event logs for the dashboard feeds.
// ABOUTME: Keeps the newest N entries and notifies a sink on every append.

package eventlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a single timestamped log line attributed to an agent. Entries
// are immutable once appended.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AgentName string    `json:"agentName"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// Notifier receives each newly appended entry. The hub uses this to push
// single entries to dashboard subscribers; new subscribers get the full
// tail via Snapshot on connect.
type Notifier interface {
	NotifyLog(name string, entry Entry)
}

// Log is a capped, newest-first event log. Once the cap is reached the
// oldest entry is dropped on each append.
type Log struct {
	// notifyMu serializes whole appends so the notifier sees entries in
	// the same order they land in the log. Readers only take mu.
	notifyMu sync.Mutex
	mu       sync.RWMutex
	name     string
	cap      int
	entries  []Entry
	notifier Notifier
	now      func() time.Time
}

// New creates a Log with the given feed name and cap. cap <= 0 means
// unbounded.
func New(name string, cap int) *Log {
	return &Log{name: name, cap: cap, now: time.Now}
}

// SetNotifier installs the sink invoked after each append. Must be called
// before the log is shared across goroutines.
func (l *Log) SetNotifier(n Notifier) {
	l.notifier = n
}

// Append records a new entry at the head of the log, evicting the oldest
// entry if the cap is exceeded.
func (l *Log) Append(agentName, kind, message string) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	entry := Entry{
		ID:        uuid.New().String(),
		Timestamp: l.now(),
		AgentName: agentName,
		Kind:      kind,
		Message:   message,
	}
	l.entries = append([]Entry{entry}, l.entries...)
	if l.cap > 0 && len(l.entries) > l.cap {
		l.entries = l.entries[:l.cap]
	}
	l.mu.Unlock()

	if l.notifier != nil {
		l.notifier.NotifyLog(l.name, entry)
	}
}

// Snapshot returns a copy of the log, newest first.
func (l *Log) Snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Name returns the feed name the log was created with.
func (l *Log) Name() string {
	return l.name
}
