// ABOUTME: Tests for the command catalog and dispatch pipeline.
// ABOUTME: Covers docs rendering, unknown actions, lenient params, and failure isolation.

package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minefleet/fleet-hub/internal/eventlog"
	"github.com/minefleet/fleet-hub/internal/registry"
)

func TestCatalogCollision(t *testing.T) {
	c := NewCatalog()
	d := Descriptor{Name: "!x", Perform: func(ctx context.Context, args []any) (string, error) { return "", nil }}

	require.NoError(t, c.Register(d))
	assert.ErrorIs(t, c.Register(d), ErrCommandCollision)
}

func TestDocsRendering(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Descriptor{
		Name:        "!dig",
		Description: "dig a block.",
		Params: []Param{
			{Name: "depth", Type: "int", Description: "how deep"},
			{Name: "block", Type: "BlockName", Description: "what to dig"},
		},
	}))
	require.NoError(t, c.Register(Descriptor{Name: "!noop", Description: "do nothing."}))

	docs := c.Docs()
	assert.Contains(t, docs, "!dig: dig a block.")
	assert.Contains(t, docs, "- depth: (number) how deep")
	assert.Contains(t, docs, "- block: (string) what to dig")
	assert.Contains(t, docs, "!noop: do nothing.")
	assert.Contains(t, docs, "No parameters required.")
}

func TestDocsEmptyCatalog(t *testing.T) {
	c := NewCatalog()
	assert.Contains(t, c.Docs(), "No available commands")
}

func newDispatcher(t *testing.T, c *Catalog) (*Dispatcher, *eventlog.Log) {
	t.Helper()
	log := eventlog.New("action-log", 100)
	return NewDispatcher(c, log, 0, nil), log
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	c := NewCatalog()
	release := make(chan struct{})
	running := make(chan struct{}, 1)
	require.NoError(t, c.Register(Descriptor{
		Name: "!slow",
		Perform: func(ctx context.Context, args []any) (string, error) {
			running <- struct{}{}
			<-release
			return "", nil
		},
	}))
	log := eventlog.New("action-log", 100)
	d := NewDispatcher(c, log, 1, nil)

	d.Submit(t.Context(), Action{Name: "!slow"})
	<-running

	// Second submit exceeds the in-flight limit and is dropped.
	d.Submit(t.Context(), Action{Name: "!slow"})

	entries := log.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "warning", entries[0].Kind)
	assert.Contains(t, entries[0].Message, "queue full")
	assert.Equal(t, "delivered", entries[1].Kind)

	close(release)
	d.Wait()

	// With the slot free again, a new submit runs to completion.
	d.Submit(t.Context(), Action{Name: "!slow"})
	<-running
	d.Wait()

	kinds := map[string]int{}
	for _, e := range log.Snapshot() {
		kinds[e.Kind]++
	}
	assert.Equal(t, 2, kinds["delivered"])
	assert.Equal(t, 2, kinds["finished"])
	assert.Equal(t, 1, kinds["warning"])
}

func TestSubmitUnknownAction(t *testing.T) {
	d, log := newDispatcher(t, NewCatalog())

	d.Submit(t.Context(), Action{Name: "!ghost"})
	d.Wait()

	entries := log.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "warning", entries[0].Kind)
	assert.Contains(t, entries[0].Message, "cannot find the action")
}

func TestSubmitLifecycle(t *testing.T) {
	c := NewCatalog()
	var got []any
	require.NoError(t, c.Register(Descriptor{
		Name: "!greet",
		Params: []Param{
			{Name: "who", Type: "string"},
			{Name: "times", Type: "int"},
		},
		Perform: func(ctx context.Context, args []any) (string, error) {
			got = args
			return "done", nil
		},
	}))
	d, log := newDispatcher(t, c)

	// Unknown param "extra" is ignored; omitted "times" becomes nil.
	d.Submit(t.Context(), Action{Name: "!greet", Params: map[string]any{"who": "miner", "extra": 7}})
	d.Wait()

	require.Equal(t, []any{"miner", nil}, got)

	entries := log.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "finished", entries[0].Kind)
	assert.Contains(t, entries[0].Message, "done")
	assert.Equal(t, "delivered", entries[1].Kind)
}

func TestSubmitErrorIsolation(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Descriptor{
		Name: "!boom",
		Perform: func(ctx context.Context, args []any) (string, error) {
			return "", errors.New("tnt went off")
		},
	}))
	require.NoError(t, c.Register(Descriptor{
		Name: "!fine",
		Perform: func(ctx context.Context, args []any) (string, error) {
			return "", nil
		},
	}))
	d, log := newDispatcher(t, c)

	d.SubmitAll(t.Context(), []Action{{Name: "!boom"}, {Name: "!fine"}})
	d.Wait()

	kinds := map[string]int{}
	for _, e := range log.Snapshot() {
		kinds[e.Kind]++
	}
	assert.Equal(t, 2, kinds["delivered"])
	assert.Equal(t, 1, kinds["error"])
	assert.Equal(t, 1, kinds["finished"])
}

func TestSubmitPanicRecovery(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Descriptor{
		Name: "!panic",
		Perform: func(ctx context.Context, args []any) (string, error) {
			panic("lava")
		},
	}))
	d, log := newDispatcher(t, c)

	d.Submit(t.Context(), Action{Name: "!panic"})
	d.Wait()

	entries := log.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "error", entries[0].Kind)
	assert.Contains(t, entries[0].Message, "lava")
}

type fakeEnv struct {
	records  []registry.Record
	messages []string
	started  []string
	stopped  []string
}

func (f *fakeEnv) Records() []registry.Record { return f.records }
func (f *fakeEnv) MessageAgent(name, message string) error {
	f.messages = append(f.messages, fmt.Sprintf("%s:%s", name, message))
	return nil
}
func (f *fakeEnv) StartAgent(name string) error {
	f.started = append(f.started, name)
	return nil
}
func (f *fakeEnv) StopAgent(name string) error {
	f.stopped = append(f.stopped, name)
	return nil
}

func TestBuiltins(t *testing.T) {
	c := NewCatalog()
	env := &fakeEnv{records: []registry.Record{
		{Name: "miner", Status: registry.StatusOnline},
		{Name: "scout", Status: registry.StatusOffline},
	}}
	require.NoError(t, RegisterBuiltins(c, env))

	overview, ok := c.Get("!overviewOfBots")
	require.True(t, ok)
	out, err := overview.Perform(t.Context(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "2 bots registered")
	assert.Contains(t, out, "miner: online")

	send, ok := c.Get("!sendMessage")
	require.True(t, ok)
	_, err = send.Perform(t.Context(), []any{"miner", "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"miner:hello"}, env.messages)

	_, err = send.Perform(t.Context(), []any{nil, "hello"})
	assert.Error(t, err)
}
