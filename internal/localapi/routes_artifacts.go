package localapi

import (
	"net/http"
	"strconv"
)

func (s *Server) registerArtifactRoutes() {
	s.mux.HandleFunc("/api/v1/artifacts", s.handleArtifacts)
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Artifacts == nil {
		respondError(w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "artifact history is not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respondError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		entries, err := s.deps.Artifacts.List(limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "HISTORY_LOAD_FAILED", err.Error())
			return
		}
		respondOK(w, map[string]any{"artifacts": entries})
	case http.MethodDelete:
		if err := s.deps.Artifacts.Clear(); err != nil {
			respondError(w, http.StatusInternalServerError, "HISTORY_CLEAR_FAILED", err.Error())
			return
		}
		respondOK(w, map[string]any{"cleared": true})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}
