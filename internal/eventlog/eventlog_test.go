// ABOUTME: Tests for the capped event logs.
// ABOUTME: Covers ordering, eviction at the cap, and notifier delivery.

package eventlog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mu    sync.Mutex
	calls []Entry
}

func (c *captureNotifier) NotifyLog(name string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, entry)
}

func TestAppendNewestFirst(t *testing.T) {
	l := New("action-log", 10)

	l.Append("miner", "action", "first")
	l.Append("miner", "action", "second")
	l.Append("builder", "action", "third")

	entries := l.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
	assert.Equal(t, "first", entries[2].Message)
}

func TestCapEvictsOldest(t *testing.T) {
	l := New("action-log", 100)

	for i := 0; i < 150; i++ {
		l.Append("miner", "action", fmt.Sprintf("msg-%d", i))
	}

	entries := l.Snapshot()
	require.Len(t, entries, 100)
	assert.Equal(t, "msg-149", entries[0].Message)
	assert.Equal(t, "msg-50", entries[99].Message)
}

func TestNotifierReceivesEntry(t *testing.T) {
	l := New("status-log", 5)
	n := &captureNotifier{}
	l.SetNotifier(n)

	l.Append("miner", "warning", "warning: timed out")
	l.Append("miner", "status", "stopped")

	require.Len(t, n.calls, 2)
	assert.Equal(t, "warning: timed out", n.calls[0].Message)
	assert.Equal(t, "stopped", n.calls[1].Message)
}

func TestNotifierOrderMatchesLog(t *testing.T) {
	l := New("action-log", 0)
	n := &captureNotifier{}
	l.SetNotifier(n)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Append("miner", "action", fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	entries := l.Snapshot()
	require.Len(t, n.calls, len(entries))

	// Snapshot is newest first, notifications oldest first.
	for i, entry := range entries {
		assert.Equal(t, entry.ID, n.calls[len(n.calls)-1-i].ID)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	l := New("action-log", 10)
	l.Append("miner", "action", "original")

	snap := l.Snapshot()
	snap[0].Message = "mutated"

	assert.Equal(t, "original", l.Snapshot()[0].Message)
}
