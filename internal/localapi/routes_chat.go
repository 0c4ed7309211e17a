package localapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"tokentrim/cli/internal/session"
)

func (s *Server) registerChatRoutes() {
	s.mux.HandleFunc("/api/v1/chat", s.handleChat)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondOK(w, map[string]any{"messages": s.deps.Session.ChatMessages()})
	case http.MethodPost:
		var req struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
			return
		}
		if err := s.deps.Session.AppendChat(req.Role, req.Content); err != nil {
			if errors.Is(err, session.ErrUnknownRole) {
				respondError(w, http.StatusBadRequest, "INVALID_ROLE", "role must be user, assistant or system")
				return
			}
			respondError(w, http.StatusInternalServerError, "CHAT_FAILED", err.Error())
			return
		}
		respondOK(w, map[string]any{"messages": s.deps.Session.ChatMessages()})
	case http.MethodDelete:
		s.deps.Session.ClearChat()
		respondOK(w, map[string]any{"cleared": true})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}
