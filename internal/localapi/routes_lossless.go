package localapi

import (
	"errors"
	"net/http"
	"strings"

	"tokentrim/cli/internal/session"
)

func (s *Server) registerLosslessRoutes() {
	s.mux.HandleFunc("/api/v1/lossless", s.handleLossless)
	s.mux.HandleFunc("/api/v1/lossless/", s.handleLosslessActions)
}

func (s *Server) handleLossless(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondOK(w, s.deps.Session.CodecState())
	case http.MethodDelete:
		s.deps.Session.ClearCodec()
		respondOK(w, map[string]any{"cleared": true})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (s *Server) handleLosslessActions(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/v1/lossless/")
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	switch action {
	case "encode":
		if err := s.deps.Session.EncodeLossless(); err != nil {
			respondCodecStartError(w, err)
			return
		}
		respondOK(w, s.deps.Session.CodecState())
	case "decode", "decode-embedded":
		incoming, err := readIncomingFiles(r, "bundle_file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_MULTIPART", err.Error())
			return
		}
		if len(incoming) != 1 {
			respondError(w, http.StatusBadRequest, "NO_BUNDLE", "exactly one bundle_file part is required")
			return
		}
		embedded := action == "decode-embedded"
		if err := s.deps.Session.DecodeBundle(incoming[0].Name, incoming[0].Content, embedded); err != nil {
			respondCodecStartError(w, err)
			return
		}
		respondOK(w, s.deps.Session.CodecState())
	default:
		respondError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	}
}

func respondCodecStartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrBusy):
		respondError(w, http.StatusConflict, "CODEC_BUSY", err.Error())
	case errors.Is(err, session.ErrNoValidFiles):
		respondError(w, http.StatusConflict, "NO_VALID_FILES", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "CODEC_FAILED", err.Error())
	}
}
