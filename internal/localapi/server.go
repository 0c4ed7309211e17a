// Package localapi serves the HTTP surface the web UI talks to. Every
// mutation is delegated to the session; state-change events flow back out
// through the WebSocket hub.
package localapi

import (
	"encoding/json"
	"net/http"

	"tokentrim/cli/internal/artifactdb"
	"tokentrim/cli/internal/global"
	"tokentrim/cli/internal/session"
)

type ConfigStore interface {
	LoadOrInit() (global.GlobalConfig, error)
	Save(cfg global.GlobalConfig) error
}

type ArtifactHistory interface {
	List(limit int) ([]artifactdb.Entry, error)
	Clear() error
}

type Deps struct {
	Session     *session.Session
	ConfigStore ConfigStore
	Artifacts   ArtifactHistory
	Hub         *WSHub
}

type Server struct {
	deps Deps
	mux  *http.ServeMux
	hub  *WSHub
}

func NewServer(deps Deps) *Server {
	hub := deps.Hub
	if hub == nil {
		hub = NewWSHub()
	}
	s := &Server{deps: deps, mux: http.NewServeMux(), hub: hub}
	s.registerFileRoutes()
	s.registerCompressRoutes()
	s.registerExportRoutes()
	s.registerLosslessRoutes()
	s.registerChatRoutes()
	s.registerArtifactRoutes()
	s.registerConfigRoutes()
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ws", s.hub.HandleWS)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, map[string]any{"status": "ok"})
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": data})
}

func respondError(w http.ResponseWriter, code int, errCode string, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": map[string]any{"code": errCode, "message": msg}})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
