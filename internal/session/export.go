package session

import (
	"context"
	"errors"
	"fmt"

	"tokentrim/cli/internal/cancel"
	"tokentrim/cli/internal/trimapi"
)

// ErrBusy rejects starting an export or codec operation while another one is
// running. No queueing, no silent replacement.
var ErrBusy = errors.New("an export is already running")

var exportModes = map[string]struct{}{
	"raw":            {},
	"compressed":     {},
	"no-extension":   {},
	"with-extension": {},
}

func ValidExportMode(mode string) bool {
	_, ok := exportModes[mode]
	return ok
}

// ExportJob is session-scoped; at most one exists at a time. It is cleared
// on successful completion or explicit dismissal; a failed job sticks around
// with its error until then.
type ExportJob struct {
	Mode    string `json:"mode"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// Export packages the transcript plus every currently resolved file into one
// request to the mode's pipeline endpoint and saves the response body as a
// downloadable artifact.
func (s *Session) Export(mode string) error {
	if !ValidExportMode(mode) {
		return fmt.Errorf("unknown export mode %q", mode)
	}
	s.mu.Lock()
	if s.jobRunningLocked() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.export = &ExportJob{Mode: mode, Running: true}
	chat := s.serializeTranscriptLocked()
	files := uploadsOf(s.validUploadsLocked())
	token := cancel.NewToken(context.Background())
	s.exportToken = token
	s.mu.Unlock()

	s.emit("export.started", map[string]any{"mode": mode})
	go func() {
		body, err := s.api.ExportPipeline(token.Context(), mode, chat, files)
		s.applyExport(token, mode, body, err)
	}()
	return nil
}

func (s *Session) applyExport(token *cancel.Token, mode, body string, err error) {
	s.mu.Lock()
	if s.exportToken != token {
		s.mu.Unlock()
		return
	}
	s.exportToken = nil

	if err != nil {
		if trimapi.IsCancelled(err) {
			s.export = nil
			s.mu.Unlock()
			return
		}
		s.export.Running = false
		s.export.Error = trimapi.UserMessage(err)
		s.mu.Unlock()
		s.logger.Warn("export failed", "mode", mode, "err", err)
		s.emit("export.failed", map[string]any{"mode": mode})
		return
	}

	name := ArtifactName(s.prefix, mode, s.now(), "txt")
	path, saveErr := s.sink.Save(name, []byte(body))
	if saveErr != nil {
		s.export.Running = false
		s.export.Error = saveErr.Error()
		s.mu.Unlock()
		s.logger.Warn("artifact save failed", "mode", mode, "file", name, "err", saveErr)
		s.emit("export.failed", map[string]any{"mode": mode})
		return
	}
	s.export = nil
	s.mu.Unlock()

	s.recordArtifact(mode, name, path, int64(len(body)))
	s.logger.Info("export finished", "mode", mode, "file", name)
	s.emit("export.finished", map[string]any{"mode": mode, "file": name})
}

// DismissExport clears a finished (errored) job. A running job cannot be
// dismissed out from under its completion handler.
func (s *Session) DismissExport() {
	s.mu.Lock()
	if s.export != nil && !s.export.Running {
		s.export = nil
	}
	s.mu.Unlock()
}

func (s *Session) ExportState() *ExportJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.export == nil {
		return nil
	}
	out := *s.export
	return &out
}

// jobRunningLocked implements session-level serialization: at most one of
// any export/codec kind runs at a time.
func (s *Session) jobRunningLocked() bool {
	if s.export != nil && s.export.Running {
		return true
	}
	return s.codec.Running != ""
}

func (s *Session) recordArtifact(mode, filename, path string, size int64) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(mode, filename, path, size); err != nil {
		s.logger.Warn("artifact history write failed", "file", filename, "err", err)
	}
}

func uploadsOf(specs []uploadSpec) []trimapi.Upload {
	out := make([]trimapi.Upload, 0, len(specs))
	for _, sp := range specs {
		out = append(out, trimapi.Upload{Name: sp.name, Content: sp.content})
	}
	return out
}
