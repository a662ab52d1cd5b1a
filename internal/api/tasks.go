// ABOUTME: Task queue endpoints: submit, inspect, and cancel fleet tasks.
// ABOUTME: The queue is capped; submissions beyond capacity are rejected.

package api

import (
	"net/http"

	"github.com/minefleet/fleet-hub/internal/tasks"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list := s.tasks.List()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tasks":   list,
		"total":   len(list),
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var spec tasks.Spec
	if !s.decodeBody(w, r, &spec) {
		return
	}
	if spec.Name == "" || spec.Type == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "task name and type are required")
		return
	}

	task, err := s.tasks.Create(spec)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"task":    task,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"task":    task,
	})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Cancel(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Task cancelled successfully",
		"task":    task,
	})
}
