package localapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tokentrim/cli/internal/session"
)

func (s *Server) registerExportRoutes() {
	s.mux.HandleFunc("/api/v1/export", s.handleExport)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondOK(w, map[string]any{"job": s.deps.Session.ExportState()})
	case http.MethodPost:
		var req struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
			return
		}
		mode := strings.TrimSpace(req.Mode)
		if !session.ValidExportMode(mode) {
			respondError(w, http.StatusBadRequest, "INVALID_EXPORT_MODE", "mode must be raw, compressed, no-extension or with-extension")
			return
		}
		if err := s.deps.Session.Export(mode); err != nil {
			if errors.Is(err, session.ErrBusy) {
				respondError(w, http.StatusConflict, "EXPORT_BUSY", err.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, "EXPORT_FAILED", err.Error())
			return
		}
		respondOK(w, map[string]any{"job": s.deps.Session.ExportState()})
	case http.MethodDelete:
		s.deps.Session.DismissExport()
		respondOK(w, map[string]any{"job": s.deps.Session.ExportState()})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}
