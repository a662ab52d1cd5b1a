// ABOUTME: Command dispatch pipeline: validate against the catalog, execute async,
// ABOUTME: and append delivered/finished/error entries to the action log.

package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/minefleet/fleet-hub/internal/eventlog"
)

// Action is one structured command request, typically parsed from an LLM
// response's actions array.
type Action struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Dispatcher runs submitted actions through the catalog and records their
// lifecycle in the action log. One action's failure never affects others.
type Dispatcher struct {
	catalog *Catalog
	log     *eventlog.Log
	limit   int
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight int
}

// NewDispatcher creates a Dispatcher appending to the given action log.
// limit caps concurrently executing actions; limit <= 0 means unbounded.
func NewDispatcher(catalog *Catalog, log *eventlog.Log, limit int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		catalog: catalog,
		log:     log,
		limit:   limit,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Submit validates and dispatches one action. Unknown names are logged as a
// warning and dropped; known names get a delivered entry immediately and
// execute asynchronously.
func (d *Dispatcher) Submit(ctx context.Context, action Action) {
	desc, ok := d.catalog.Get(action.Name)
	if !ok {
		d.logger.Warn("cannot find the action", "name", action.Name)
		d.log.Append(action.Name, "warning", fmt.Sprintf("cannot find the action: %s", action.Name))
		return
	}

	d.mu.Lock()
	if d.limit > 0 && d.inflight >= d.limit {
		d.mu.Unlock()
		d.logger.Warn("action queue full", "name", action.Name, "limit", d.limit)
		d.log.Append(action.Name, "warning", fmt.Sprintf("action queue full, dropped %s", action.Name))
		return
	}
	d.inflight++
	d.mu.Unlock()

	d.log.Append(action.Name, "delivered", fmt.Sprintf("action %s delivered", action.Name))

	args := buildArgs(desc, action.Params)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			d.inflight--
			d.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("action panicked", "name", action.Name, "panic", r)
				d.log.Append(action.Name, "error", fmt.Sprintf("action %s failed: %v", action.Name, r))
			}
		}()

		result, err := desc.Perform(ctx, args)
		if err != nil {
			d.logger.Warn("action failed", "name", action.Name, "error", err)
			d.log.Append(action.Name, "error", fmt.Sprintf("action %s failed: %s", action.Name, err))
			return
		}

		msg := fmt.Sprintf("action %s finished", action.Name)
		if result != "" {
			msg = fmt.Sprintf("action %s finished: %s", action.Name, result)
		}
		d.log.Append(action.Name, "finished", msg)
	}()
}

// SubmitAll dispatches a batch in order. Execution of individual actions is
// independent; no cross-action ordering is promised.
func (d *Dispatcher) SubmitAll(ctx context.Context, actions []Action) {
	for _, a := range actions {
		d.Submit(ctx, a)
	}
}

// Wait blocks until all in-flight actions have completed. Used by shutdown
// and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// buildArgs maps caller params onto the declared param list in order.
// Omitted params become nil; unknown params are ignored.
func buildArgs(desc Descriptor, params map[string]any) []any {
	args := make([]any, len(desc.Params))
	for i, p := range desc.Params {
		if v, ok := params[p.Name]; ok {
			args[i] = v
		}
	}
	return args
}
