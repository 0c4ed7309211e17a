package session

import (
	"errors"
	"strings"
	"time"
)

type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

var roleLabels = map[string]string{
	"user":      "User",
	"assistant": "Assistant",
	"system":    "System",
}

var ErrUnknownRole = errors.New("unknown chat role")

// AppendChat adds one message to the in-memory transcript. Chat history
// lives only for the session; it is never persisted.
func (s *Session) AppendChat(role, content string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if _, ok := roleLabels[role]; !ok {
		return ErrUnknownRole
	}
	s.mu.Lock()
	s.chat = append(s.chat, ChatMessage{Role: role, Content: content, At: s.now()})
	s.mu.Unlock()
	return nil
}

func (s *Session) ChatMessages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

func (s *Session) ClearChat() {
	s.mu.Lock()
	s.chat = nil
	s.mu.Unlock()
}

// serializeTranscriptLocked renders the transcript deterministically: one
// two-line block per message, `[Label]` then the content, blocks joined by a
// blank line in chronological order.
func (s *Session) serializeTranscriptLocked() string {
	blocks := make([]string, 0, len(s.chat))
	for _, m := range s.chat {
		label, ok := roleLabels[m.Role]
		if !ok {
			label = m.Role
		}
		blocks = append(blocks, "["+label+"]\n"+m.Content)
	}
	return strings.Join(blocks, "\n\n")
}
