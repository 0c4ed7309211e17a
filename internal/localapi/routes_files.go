package localapi

import (
	"io"
	"net/http"
	"strings"

	"tokentrim/cli/internal/session"
)

const multipartMemoryLimit = 32 << 20

func (s *Server) registerFileRoutes() {
	s.mux.HandleFunc("/api/v1/files", s.handleFiles)
	s.mux.HandleFunc("/api/v1/files/", s.handleFileActions)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondOK(w, map[string]any{
			"tasks":    s.deps.Session.Tasks(),
			"resolved": s.deps.Session.ResolvedFiles(),
		})
	case http.MethodPost:
		incoming, err := readIncomingFiles(r, "files")
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_MULTIPART", err.Error())
			return
		}
		if len(incoming) == 0 {
			respondError(w, http.StatusBadRequest, "NO_FILES", "at least one file part is required")
			return
		}
		respondOK(w, map[string]any{"tasks": s.deps.Session.AddFiles(incoming)})
	case http.MethodDelete:
		s.deps.Session.ClearAll()
		respondOK(w, map[string]any{"cleared": true})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (s *Server) handleFileActions(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/files/"), "/")
	if len(parts) == 1 && parts[0] != "" {
		if r.Method != http.MethodDelete {
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		if !s.deps.Session.RemoveFile(parts[0]) {
			respondError(w, http.StatusNotFound, "FILE_NOT_FOUND", "no file task with that id")
			return
		}
		respondOK(w, map[string]any{"removed": true})
		return
	}
	if len(parts) == 2 && parts[0] != "" && parts[1] == "reanalyze" {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		if !s.deps.Session.Reanalyze(parts[0]) {
			respondError(w, http.StatusNotFound, "FILE_NOT_FOUND", "no reanalyzable file task with that id")
			return
		}
		respondOK(w, map[string]any{"reanalyzing": true})
		return
	}
	respondError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func readIncomingFiles(r *http.Request, field string) ([]session.IncomingFile, error) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		return nil, err
	}
	headers := r.MultipartForm.File[field]
	incoming := make([]session.IncomingFile, 0, len(headers))
	for _, header := range headers {
		part, err := header.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		incoming = append(incoming, session.IncomingFile{Name: header.Filename, Content: content})
	}
	return incoming, nil
}
