// ABOUTME: Monitor endpoints: LLM query pass-through with action dispatch,
// ABOUTME: audio transcription, and event log ingestion/replay.

package api

import (
	"io"
	"net/http"
)

// handleMonitorQuery forwards the query to the prompter and dispatches any
// actions the model returned. The text reply goes back to the caller
// immediately; actions complete asynchronously via the action log.
func (s *Server) handleMonitorQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Query == "" {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "query is required")
		return
	}

	res, err := s.prompter.Query(r.Context(), body.Query)
	if err != nil {
		s.logger.Warn("monitor query failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "PROMPTER_ERROR", "monitor query failed")
		return
	}

	s.dispatcher.SubmitAll(r.Context(), res.Actions)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"text_response": res.TextResponse,
		"actions":       len(res.Actions),
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	limit := s.maxAudio
	if limit <= 0 {
		limit = 32 << 20
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "reading audio body failed")
		return
	}
	if int64(len(audio)) > limit {
		s.writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "audio payload too large")
		return
	}
	if len(audio) == 0 {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "audio body is required")
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"text":    text,
	})
}

func (s *Server) handleAgentEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AgentName string `json:"agentName"`
		Kind      string `json:"kind"`
		Message   string `json:"message"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.AgentName == "" || body.Message == "" {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "agentName and message are required")
		return
	}
	if body.Kind == "" {
		body.Kind = "event"
	}

	s.statusLog.Append(body.AgentName, body.Kind, body.Message)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSystemEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Message == "" {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "message is required")
		return
	}

	s.statusLog.Append("system", "event", body.Message)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"actionLog": s.actionLog.Snapshot(),
		"statusLog": s.statusLog.Snapshot(),
	})
}
