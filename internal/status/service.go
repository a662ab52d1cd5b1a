// ABOUTME: Status correlation service: asks a live agent for a fresh snapshot
// ABOUTME: and resolves the reply, an error, or a timeout to the caller.

package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/minefleet/fleet-hub/internal/correlate"
	"github.com/minefleet/fleet-hub/internal/eventlog"
	"github.com/minefleet/fleet-hub/internal/registry"
)

// Channel is the service's view of the hub: can a request reach the named
// agent's live session.
type Channel interface {
	LiveConnected(name string) bool
	RequestStatus(name, requestID string) bool
}

// Service fetches live snapshots from agents. Callers block on Fetch; other
// traffic is unaffected because delivery and resolution run on the hub's
// read goroutines.
type Service struct {
	resolver  *correlate.Resolver[*registry.Snapshot]
	registry  *registry.Registry
	channel   Channel
	statusLog *eventlog.Log
	logger    *slog.Logger
}

// New creates a Service with the given per-request timeout.
func New(reg *registry.Registry, ch Channel, statusLog *eventlog.Log, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "status")
	return &Service{
		resolver:  correlate.New[*registry.Snapshot](timeout, logger),
		registry:  reg,
		channel:   ch,
		statusLog: statusLog,
		logger:    logger,
	}
}

// Fetch requests a fresh snapshot from the named agent. An unreachable
// agent resolves immediately as unavailable; a timeout resolves as
// unavailable and appends a warning to the status log. Returns
// registry.ErrNotRegistered for unknown names.
func (s *Service) Fetch(ctx context.Context, name string) (*registry.Snapshot, error) {
	if !s.registry.Exists(name) {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotRegistered, name)
	}
	if !s.channel.LiveConnected(name) {
		return registry.Unavailable(name), nil
	}

	id, ch := s.resolver.Register()
	if !s.channel.RequestStatus(name, id) {
		s.resolver.Fail(id, "delivery failed")
		<-ch
		return registry.Unavailable(name), nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		switch {
		case res.TimedOut:
			s.statusLog.Append(name, "warning", fmt.Sprintf("status request for %s timed out", name))
			return registry.Unavailable(name), nil
		case res.IsErr:
			s.statusLog.Append(name, "warning", fmt.Sprintf("status request for %s failed: %s", name, res.Err))
			return &registry.Snapshot{Name: name, Status: "error", Error: res.Err}, nil
		default:
			snap := res.Value
			if err := s.registry.UpdateSnapshot(name, snap); err != nil {
				s.logger.Warn("snapshot update failed", "name", name, "error", err)
			}
			return snap, nil
		}
	}
}

// HandleResponse resolves a status-response reply. Unknown or already
// settled request IDs are dropped.
func (s *Service) HandleResponse(requestID string, status json.RawMessage) bool {
	var snap registry.Snapshot
	if err := json.Unmarshal(status, &snap); err != nil {
		s.logger.Warn("malformed status payload", "request_id", requestID, "error", err)
		return s.resolver.Fail(requestID, "malformed status payload")
	}
	return s.resolver.Resolve(requestID, &snap)
}

// HandleError resolves a status-error reply.
func (s *Service) HandleError(requestID, message string) bool {
	return s.resolver.Fail(requestID, message)
}

// Pending returns the number of outstanding status requests.
func (s *Service) Pending() int {
	return s.resolver.Pending()
}
