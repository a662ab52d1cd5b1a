// ABOUTME: Request/response correlation for async replies over event transports.
// ABOUTME: Generates request IDs, routes replies to waiters, and times out stale ones.

package correlate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result carries the outcome of a correlated request. Exactly one of the
// three outcomes is set: a value, an error payload, or a timeout.
type Result[T any] struct {
	Value    T
	Err      string
	IsErr    bool
	TimedOut bool
}

// Resolver matches replies to outstanding requests by ID. Each request
// resolves exactly once: the first of reply, error, or timeout wins and the
// rest are discarded.
type Resolver[T any] struct {
	mu      sync.Mutex
	pending map[string]*waiter[T]
	timeout time.Duration
	logger  *slog.Logger
}

type waiter[T any] struct {
	ch    chan Result[T]
	timer *time.Timer
}

// New creates a Resolver with the given per-request timeout.
func New[T any](timeout time.Duration, logger *slog.Logger) *Resolver[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver[T]{
		pending: make(map[string]*waiter[T]),
		timeout: timeout,
		logger:  logger.With("component", "correlate"),
	}
}

// Register creates a new outstanding request and returns its ID along with
// the channel the result will be delivered on. The channel is buffered, so
// delivery never blocks, and receives exactly one Result.
func (r *Resolver[T]) Register() (string, <-chan Result[T]) {
	id := uuid.New().String()
	w := &waiter[T]{ch: make(chan Result[T], 1)}

	r.mu.Lock()
	r.pending[id] = w
	w.timer = time.AfterFunc(r.timeout, func() { r.expire(id) })
	r.mu.Unlock()

	return id, w.ch
}

// Resolve delivers a value to the request with the given ID. Returns false
// if the ID is unknown or already resolved.
func (r *Resolver[T]) Resolve(id string, value T) bool {
	return r.deliver(id, Result[T]{Value: value})
}

// Fail delivers an error payload to the request with the given ID. Returns
// false if the ID is unknown or already resolved.
func (r *Resolver[T]) Fail(id string, errMsg string) bool {
	return r.deliver(id, Result[T]{Err: errMsg, IsErr: true})
}

func (r *Resolver[T]) deliver(id string, res Result[T]) bool {
	r.mu.Lock()
	w, ok := r.pending[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("reply for unknown request", "request_id", id)
		return false
	}
	delete(r.pending, id)
	r.mu.Unlock()

	w.timer.Stop()
	w.ch <- res
	return true
}

func (r *Resolver[T]) expire(id string) {
	r.mu.Lock()
	w, ok := r.pending[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.pending, id)
	r.mu.Unlock()

	r.logger.Warn("request timed out", "request_id", id, "timeout", r.timeout)
	w.ch <- Result[T]{TimedOut: true}
}

// Pending returns the number of outstanding requests.
func (r *Resolver[T]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
