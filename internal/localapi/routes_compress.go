package localapi

import (
	"errors"
	"net/http"
	"strings"

	"tokentrim/cli/internal/session"
)

func (s *Server) registerCompressRoutes() {
	s.mux.HandleFunc("/api/v1/compress", s.handleCompress)
	s.mux.HandleFunc("/api/v1/compress/", s.handleCompressActions)
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondOK(w, s.deps.Session.CompressionState())
	case http.MethodPost:
		if err := s.deps.Session.Compress(); err != nil {
			if errors.Is(err, session.ErrNoValidFiles) {
				respondError(w, http.StatusConflict, "NO_VALID_FILES", err.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, "COMPRESS_FAILED", err.Error())
			return
		}
		respondOK(w, s.deps.Session.CompressionState())
	case http.MethodDelete:
		s.deps.Session.ClearCompression()
		respondOK(w, map[string]any{"cleared": true})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (s *Server) handleCompressActions(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/compress/"), "/")
	if len(parts) == 2 && parts[0] != "" && parts[1] == "expand" {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		content, err := s.deps.Session.ExpandEntry(r.Context(), parts[0])
		if err != nil {
			if errors.Is(err, session.ErrNoCompression) {
				respondError(w, http.StatusNotFound, "NO_COMPRESSION", err.Error())
				return
			}
			respondError(w, http.StatusBadGateway, "EXPAND_FAILED", err.Error())
			return
		}
		respondOK(w, map[string]any{"id": parts[0], "content": content})
		return
	}
	respondError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
}
