// ABOUTME: HTTP control surface for the fleet hub.
// ABOUTME: Routes, JSON envelope helpers, and handler-boundary error recovery.

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/minefleet/fleet-hub/internal/auth"
	"github.com/minefleet/fleet-hub/internal/command"
	"github.com/minefleet/fleet-hub/internal/dedupe"
	"github.com/minefleet/fleet-hub/internal/eventlog"
	"github.com/minefleet/fleet-hub/internal/prompter"
	"github.com/minefleet/fleet-hub/internal/registry"
	"github.com/minefleet/fleet-hub/internal/status"
	"github.com/minefleet/fleet-hub/internal/tables"
	"github.com/minefleet/fleet-hub/internal/tasks"
	"github.com/minefleet/fleet-hub/internal/transcribe"
)

// Fleet is the API's view of the hub: direct delivery to live and control
// channels.
type Fleet interface {
	MessageAgent(name, message string) error
	StartAgent(name string) error
	StopAgent(name string) error
}

// Server serves the HTTP control surface.
type Server struct {
	registry    *registry.Registry
	fleet       Fleet
	status      *status.Service
	tables      *tables.Store
	dispatcher  *command.Dispatcher
	prompter    prompter.Prompter
	transcriber transcribe.Transcriber
	actionLog   *eventlog.Log
	statusLog   *eventlog.Log
	tasks       *tasks.Queue
	verifier    auth.TokenVerifier
	replay      *dedupe.Cache
	maxAudio    int64
	logger      *slog.Logger
}

// Options carries the collaborators the server exposes.
type Options struct {
	Registry    *registry.Registry
	Fleet       Fleet
	Status      *status.Service
	Tables      *tables.Store
	Dispatcher  *command.Dispatcher
	Prompter    prompter.Prompter
	Transcriber transcribe.Transcriber
	ActionLog   *eventlog.Log
	StatusLog   *eventlog.Log
	Tasks       *tasks.Queue
	Verifier    auth.TokenVerifier
	Replay      *dedupe.Cache
	MaxAudio    int64
	Logger      *slog.Logger
}

// New creates the API server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:    opts.Registry,
		fleet:       opts.Fleet,
		status:      opts.Status,
		tables:      opts.Tables,
		dispatcher:  opts.Dispatcher,
		prompter:    opts.Prompter,
		transcriber: opts.Transcriber,
		actionLog:   opts.ActionLog,
		statusLog:   opts.StatusLog,
		tasks:       opts.Tasks,
		verifier:    opts.Verifier,
		replay:      opts.Replay,
		maxAudio:    opts.MaxAudio,
		logger:      logger.With("component", "api"),
	}
}

// Handler builds the route table. Health endpoints stay open; everything
// under /api goes through the auth middleware when a verifier is set.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/agents", s.handleListAgents)
	api.HandleFunc("POST /api/agents/register", s.handleRegisterAgents)
	api.HandleFunc("DELETE /api/agents/{name}/unregister", s.handleUnregisterAgent)
	api.HandleFunc("PUT /api/agents/{name}/heartbeat", s.handleHeartbeat)
	api.HandleFunc("GET /api/agents/{name}/status", s.handleAgentStatus)
	api.HandleFunc("POST /api/agents/{name}/command", s.handleAgentCommand)
	api.HandleFunc("GET /api/agents/{name}/start", s.handleAgentStart)
	api.HandleFunc("GET /api/agents/{name}/stop", s.handleAgentStop)

	api.HandleFunc("GET /api/cloud/tables", s.handleListTables)
	api.HandleFunc("POST /api/cloud/tables", s.handleCreateTable)
	api.HandleFunc("GET /api/cloud/tables/{name}", s.handleReadTable)
	api.HandleFunc("DELETE /api/cloud/tables/{name}", s.handleDeleteTable)
	api.HandleFunc("POST /api/cloud/tables/{name}/clear", s.handleClearTable)
	api.HandleFunc("POST /api/cloud/tables/{name}/data", s.handleWriteTableData)
	api.HandleFunc("PUT /api/cloud/tables/{name}/data", s.handleReplaceTableData)
	api.HandleFunc("GET /api/cloud/tables/{name}/data/{key}", s.handleReadTableEntry)

	api.HandleFunc("GET /api/tasks", s.handleListTasks)
	api.HandleFunc("POST /api/tasks", s.handleCreateTask)
	api.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	api.HandleFunc("DELETE /api/tasks/{id}", s.handleCancelTask)

	api.HandleFunc("POST /api/monitor_query", s.handleMonitorQuery)
	api.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	api.HandleFunc("POST /api/events/agent", s.handleAgentEvent)
	api.HandleFunc("POST /api/events/system", s.handleSystemEvent)
	api.HandleFunc("GET /api/events", s.handleListEvents)

	mux.Handle("/api/", auth.Middleware(s.verifier)(api))
	return s.recoverPanics(mux)
}

// recoverPanics is the outermost boundary: an unexpected panic in any
// handler becomes a generic 500 and the process keeps running.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked", "method", r.Method, "path", r.URL.Path, "panic", rec)
				s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"agents": s.registry.Count(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, errCode, message string) {
	s.writeJSON(w, code, map[string]any{
		"success": false,
		"error":   errCode,
		"message": message,
	})
}

// writeDomainError translates domain sentinel errors into the structured
// response envelope.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotRegistered):
		s.writeError(w, http.StatusNotFound, "AGENT_NOT_FOUND", err.Error())
	case errors.Is(err, registry.ErrFleetFull):
		s.writeError(w, http.StatusTooManyRequests, "MAX_AGENTS_REACHED", err.Error())
	case errors.Is(err, tables.ErrTableNotFound):
		s.writeError(w, http.StatusNotFound, "TABLE_NOT_FOUND", err.Error())
	case errors.Is(err, tables.ErrEntryNotFound):
		s.writeError(w, http.StatusNotFound, "ENTRY_NOT_FOUND", err.Error())
	case errors.Is(err, tables.ErrTableExists):
		s.writeError(w, http.StatusConflict, "TABLE_EXISTS", err.Error())
	case errors.Is(err, tables.ErrWrongType):
		s.writeError(w, http.StatusBadRequest, "WRONG_OPERATION_FOR_TYPE", err.Error())
	case errors.Is(err, tables.ErrTypeMismatch):
		s.writeError(w, http.StatusBadRequest, "TYPE_MISMATCH", err.Error())
	case errors.Is(err, tables.ErrIndexOutOfRange):
		s.writeError(w, http.StatusBadRequest, "INDEX_OUT_OF_RANGE", err.Error())
	case errors.Is(err, tasks.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "TASK_NOT_FOUND", err.Error())
	case errors.Is(err, tasks.ErrQueueFull):
		s.writeError(w, http.StatusTooManyRequests, "TASK_QUEUE_FULL", err.Error())
	case errors.Is(err, transcribe.ErrPayloadTooLarge):
		s.writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return false
	}
	return true
}
