// ABOUTME: Tests for request/response correlation.
// ABOUTME: Covers exactly-once delivery, timeouts, and concurrent resolution races.

package correlate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDeliversValue(t *testing.T) {
	r := New[string](time.Second, nil)

	id, ch := r.Register()
	assert.True(t, r.Resolve(id, "hello"))

	select {
	case res := <-ch:
		assert.Equal(t, "hello", res.Value)
		assert.False(t, res.IsErr)
		assert.False(t, res.TimedOut)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
	assert.Equal(t, 0, r.Pending())
}

func TestFailDeliversError(t *testing.T) {
	r := New[string](time.Second, nil)

	id, ch := r.Register()
	assert.True(t, r.Fail(id, "agent exploded"))

	res := <-ch
	assert.True(t, res.IsErr)
	assert.Equal(t, "agent exploded", res.Err)
}

func TestUnknownIDIgnored(t *testing.T) {
	r := New[string](time.Second, nil)
	assert.False(t, r.Resolve("no-such-id", "value"))
}

func TestTimeout(t *testing.T) {
	r := New[string](10*time.Millisecond, nil)

	id, ch := r.Register()

	select {
	case res := <-ch:
		assert.True(t, res.TimedOut)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timeout result")
	}

	// A late reply after expiry is discarded.
	assert.False(t, r.Resolve(id, "too late"))
	assert.Equal(t, 0, r.Pending())
}

func TestResolveOnlyOnce(t *testing.T) {
	r := New[string](time.Second, nil)

	id, ch := r.Register()
	assert.True(t, r.Resolve(id, "first"))
	assert.False(t, r.Resolve(id, "second"))
	assert.False(t, r.Fail(id, "third"))

	res := <-ch
	assert.Equal(t, "first", res.Value)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected second delivery: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConcurrentResolveRace(t *testing.T) {
	r := New[int](time.Second, nil)

	id, ch := r.Register()

	var wg sync.WaitGroup
	wins := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			wins <- r.Resolve(id, n)
		}(i)
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	// Exactly one result comes out regardless of how many racers tried.
	<-ch
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second delivery: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPendingCount(t *testing.T) {
	r := New[string](time.Second, nil)

	id1, _ := r.Register()
	_, _ = r.Register()
	require.Equal(t, 2, r.Pending())

	r.Resolve(id1, "done")
	assert.Equal(t, 1, r.Pending())
}
