// ABOUTME: Agent endpoints: listing, registration, heartbeat, status round-trip,
// ABOUTME: command delivery, and start/stop forwarding.

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/minefleet/fleet-hub/internal/hub"
)

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"agents":  s.registry.List(),
		"total":   s.registry.Count(),
	})
}

func (s *Server) handleRegisterAgents(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Names []string `json:"names"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if len(body.Names) == 0 {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "names is required")
		return
	}

	created, err := s.registry.Register(body.Names)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"registered": created,
		"total":      s.registry.Count(),
	})
}

func (s *Server) handleUnregisterAgent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.registry.Unregister(name); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.registry.Exists(name) {
		s.writeError(w, http.StatusNotFound, "AGENT_NOT_FOUND", fmt.Sprintf("agent %s not found", name))
		return
	}
	s.registry.Touch(name)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAgentStatus triggers a status correlation round-trip and returns
// the refreshed record.
func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	snap, err := s.status.Fetch(r.Context(), name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	rec, err := s.registry.Get(name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"agent":   rec,
		"status":  snap,
	})
}

func (s *Server) handleAgentCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Command string `json:"command"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Command == "" {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "command is required")
		return
	}
	if !s.registry.Exists(name) {
		s.writeError(w, http.StatusNotFound, "AGENT_NOT_FOUND", fmt.Sprintf("agent %s not found", name))
		return
	}

	// Retried submissions carrying the same idempotency key run once. The
	// key is recorded only after successful delivery so a failed attempt
	// does not burn it.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && s.replay != nil && s.replay.Seen(name+":"+idemKey) {
		s.writeError(w, http.StatusConflict, "DUPLICATE_COMMAND", "command with this idempotency key was already delivered")
		return
	}

	messageID := uuid.New().String()
	if err := s.fleet.MessageAgent(name, body.Command); err != nil {
		if errors.Is(err, hub.ErrNotConnected) {
			s.writeError(w, http.StatusConflict, "AGENT_NOT_CONNECTED", err.Error())
			return
		}
		s.writeDomainError(w, err)
		return
	}

	if idemKey != "" && s.replay != nil {
		s.replay.Record(name + ":" + idemKey)
	}

	s.actionLog.Append(name, "delivered", fmt.Sprintf("command delivered to %s: %s", name, body.Command))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"messageId": messageID,
		"status":    "delivered",
	})
}

func (s *Server) handleAgentStart(w http.ResponseWriter, r *http.Request) {
	s.forwardLifecycle(w, r, s.fleet.StartAgent, "start")
}

func (s *Server) handleAgentStop(w http.ResponseWriter, r *http.Request) {
	s.forwardLifecycle(w, r, s.fleet.StopAgent, "stop")
}

func (s *Server) forwardLifecycle(w http.ResponseWriter, r *http.Request, fn func(string) error, verb string) {
	name := r.PathValue("name")
	if !s.registry.Exists(name) {
		s.writeError(w, http.StatusNotFound, "AGENT_NOT_FOUND", fmt.Sprintf("agent %s not found", name))
		return
	}

	if err := fn(name); err != nil {
		if errors.Is(err, hub.ErrNotConnected) {
			s.writeError(w, http.StatusConflict, "AGENT_NOT_CONNECTED", err.Error())
			return
		}
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"action":  verb,
		"agent":   name,
	})
}
