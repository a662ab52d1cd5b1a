// ABOUTME: Cloud table endpoints: CRUD over the persisted table store.
// ABOUTME: Mirrors the table API the dashboard's knowledge plugin calls.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/minefleet/fleet-hub/internal/tables"
)

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tables":  s.tables.List(),
	})
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string          `json:"name"`
		Type        tables.Type     `json:"type"`
		Description string          `json:"description"`
		InitialData json.RawMessage `json:"initialData"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Name == "" {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}

	if err := s.tables.Create(body.Name, body.Type, body.Description, body.InitialData); err != nil {
		s.writeDomainError(w, err)
		return
	}

	tbl, err := s.tables.Read(body.Name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"name":    tbl.Name,
		"info":    tbl.Info,
	})
}

func (s *Server) handleReadTable(w http.ResponseWriter, r *http.Request) {
	tbl, err := s.tables.Read(r.PathValue("name"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"name":    tbl.Name,
		"info":    tbl.Info,
		"data":    tbl.Data(),
	})
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	if err := s.tables.Delete(r.PathValue("name")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleClearTable(w http.ResponseWriter, r *http.Request) {
	if err := s.tables.Clear(r.PathValue("name")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleWriteTableData appends to a list table or sets a dict key,
// depending on whether the body carries a key.
func (s *Server) handleWriteTableData(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Key  string          `json:"key"`
		Data json.RawMessage `json:"data"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if len(body.Data) == 0 {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "data is required")
		return
	}

	var err error
	if body.Key != "" {
		err = s.tables.Set(name, body.Key, body.Data)
	} else {
		err = s.tables.Append(name, body.Data)
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleReplaceTableData replaces a list element by index or overwrites a
// dict key.
func (s *Server) handleReplaceTableData(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Key   string          `json:"key"`
		Index *int            `json:"index"`
		Data  json.RawMessage `json:"data"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if len(body.Data) == 0 {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "data is required")
		return
	}

	var err error
	switch {
	case body.Index != nil:
		err = s.tables.Replace(name, *body.Index, body.Data)
	case body.Key != "":
		err = s.tables.Set(name, body.Key, body.Data)
	default:
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "key or index is required")
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleReadTableEntry(w http.ResponseWriter, r *http.Request) {
	value, err := s.tables.ReadEntry(r.PathValue("name"), r.PathValue("key"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    value,
	})
}
