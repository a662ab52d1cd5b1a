// ABOUTME: Tests for the status correlation service.
// ABOUTME: Covers unavailable agents, replies, errors, and timeout warnings.

package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minefleet/fleet-hub/internal/eventlog"
	"github.com/minefleet/fleet-hub/internal/registry"
)

// fakeChannel simulates the hub's live bindings and captures outbound
// status requests so tests can answer them.
type fakeChannel struct {
	mu        sync.Mutex
	connected map[string]bool
	requests  []string
	deliver   bool
}

func newFakeChannel(names ...string) *fakeChannel {
	c := &fakeChannel{connected: make(map[string]bool), deliver: true}
	for _, n := range names {
		c.connected[n] = true
	}
	return c
}

func (c *fakeChannel) LiveConnected(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected[name]
}

func (c *fakeChannel) RequestStatus(name, requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.deliver {
		return false
	}
	c.requests = append(c.requests, requestID)
	return true
}

func (c *fakeChannel) lastRequest() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return ""
	}
	return c.requests[len(c.requests)-1]
}

func newService(t *testing.T, ch Channel, timeout time.Duration) (*Service, *registry.Registry, *eventlog.Log) {
	t.Helper()
	reg := registry.New(0, nil)
	_, err := reg.Register([]string{"miner"})
	require.NoError(t, err)
	log := eventlog.New("status-log", 100)
	return New(reg, ch, log, timeout, nil), reg, log
}

func TestFetchUnknownAgent(t *testing.T) {
	svc, _, _ := newService(t, newFakeChannel(), time.Second)

	_, err := svc.Fetch(t.Context(), "ghost")
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestFetchNotConnected(t *testing.T) {
	svc, _, log := newService(t, newFakeChannel(), time.Second)

	snap, err := svc.Fetch(t.Context(), "miner")
	require.NoError(t, err)
	assert.Equal(t, "unavailable", snap.Status)
	assert.Equal(t, 0, log.Len())
}

func TestFetchResolvesReply(t *testing.T) {
	ch := newFakeChannel("miner")
	svc, reg, _ := newService(t, ch, time.Second)

	done := make(chan *registry.Snapshot, 1)
	go func() {
		snap, err := svc.Fetch(t.Context(), "miner")
		require.NoError(t, err)
		done <- snap
	}()

	// Wait for the outbound request, then answer it like an agent would.
	var id string
	require.Eventually(t, func() bool {
		id = ch.lastRequest()
		return id != ""
	}, time.Second, 5*time.Millisecond)

	reply := `{"name":"miner","status":"alive","health":17,"maxHealth":20,"stats":{"tasksCompleted":4}}`
	assert.True(t, svc.HandleResponse(id, json.RawMessage(reply)))

	select {
	case snap := <-done:
		assert.Equal(t, "alive", snap.Status)
		assert.Equal(t, 17.0, snap.Health)
	case <-time.After(time.Second):
		t.Fatal("fetch did not return")
	}

	rec, err := reg.Get("miner")
	require.NoError(t, err)
	require.NotNil(t, rec.Snapshot)
	assert.Equal(t, 4, rec.Stats.TasksCompleted)
	assert.False(t, rec.LastHeartbeat.IsZero())
}

func TestFetchError(t *testing.T) {
	ch := newFakeChannel("miner")
	svc, _, log := newService(t, ch, time.Second)

	done := make(chan *registry.Snapshot, 1)
	go func() {
		snap, err := svc.Fetch(t.Context(), "miner")
		require.NoError(t, err)
		done <- snap
	}()

	var id string
	require.Eventually(t, func() bool {
		id = ch.lastRequest()
		return id != ""
	}, time.Second, 5*time.Millisecond)

	assert.True(t, svc.HandleError(id, "bot crashed"))

	snap := <-done
	assert.Equal(t, "error", snap.Status)
	assert.Equal(t, "bot crashed", snap.Error)
	assert.Equal(t, 1, log.Len())
}

func TestFetchTimeoutLogsWarning(t *testing.T) {
	ch := newFakeChannel("miner")
	svc, _, log := newService(t, ch, 20*time.Millisecond)

	snap, err := svc.Fetch(t.Context(), "miner")
	require.NoError(t, err)
	assert.Equal(t, "unavailable", snap.Status)

	entries := log.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "warning", entries[0].Kind)
	assert.Contains(t, entries[0].Message, "timed out")
	assert.Equal(t, 0, svc.Pending())

	// A late reply is a no-op.
	assert.False(t, svc.HandleResponse(ch.lastRequest(), json.RawMessage(`{"name":"miner"}`)))
}

func TestFetchDeliveryFailure(t *testing.T) {
	ch := newFakeChannel("miner")
	ch.deliver = false
	svc, _, _ := newService(t, ch, time.Second)

	snap, err := svc.Fetch(t.Context(), "miner")
	require.NoError(t, err)
	assert.Equal(t, "unavailable", snap.Status)
	assert.Equal(t, 0, svc.Pending())
}
