package session

import (
	"context"
	"encoding/json"

	"tokentrim/cli/internal/cancel"
	"tokentrim/cli/internal/trimapi"
)

const (
	codecEncoding = "encoding"
	codecDecoding = "decoding"
)

type codecState struct {
	Running      string
	Error        string
	DecodeResult *trimapi.DecodeResult
}

type CodecView struct {
	Running      string                `json:"running,omitempty"`
	Error        string                `json:"error,omitempty"`
	DecodeResult *trimapi.DecodeResult `json:"decodeResult,omitempty"`
}

// EncodeLossless uploads every resolved file and saves the returned bundle
// pretty-printed as a JSON artifact, under the same mutual-exclusion and
// timestamped-filename discipline as the pipeline exports.
func (s *Session) EncodeLossless() error {
	s.mu.Lock()
	if s.jobRunningLocked() {
		s.mu.Unlock()
		return ErrBusy
	}
	specs := s.validUploadsLocked()
	if len(specs) == 0 {
		s.mu.Unlock()
		return ErrNoValidFiles
	}
	s.codec.Running = codecEncoding
	s.codec.Error = ""
	token := cancel.NewToken(context.Background())
	s.codecToken = token
	s.mu.Unlock()

	s.emit("lossless.started", map[string]any{"op": codecEncoding})
	go func() {
		bundle, err := s.api.EncodeLossless(token.Context(), uploadsOf(specs))
		s.applyEncode(token, bundle, err)
	}()
	return nil
}

func (s *Session) applyEncode(token *cancel.Token, bundle trimapi.LosslessBundle, err error) {
	s.mu.Lock()
	if s.codecToken != token {
		s.mu.Unlock()
		return
	}
	s.codecToken = nil
	s.codec.Running = ""

	if err != nil {
		if trimapi.IsCancelled(err) {
			s.mu.Unlock()
			return
		}
		s.codec.Error = trimapi.UserMessage(err)
		s.mu.Unlock()
		s.logger.Warn("lossless encode failed", "err", err)
		s.emit("lossless.failed", map[string]any{"op": codecEncoding})
		return
	}

	pretty, marshalErr := json.MarshalIndent(bundle, "", "  ")
	if marshalErr != nil {
		s.codec.Error = marshalErr.Error()
		s.mu.Unlock()
		s.emit("lossless.failed", map[string]any{"op": codecEncoding})
		return
	}
	name := ArtifactName(s.prefix, "lossless", s.now(), "json")
	path, saveErr := s.sink.Save(name, pretty)
	if saveErr != nil {
		s.codec.Error = saveErr.Error()
		s.mu.Unlock()
		s.emit("lossless.failed", map[string]any{"op": codecEncoding})
		return
	}
	s.mu.Unlock()

	s.recordArtifact("lossless", name, path, int64(len(pretty)))
	s.logger.Info("lossless encode finished", "file", name, "files", len(bundle.Files))
	s.emit("lossless.finished", map[string]any{"op": codecEncoding, "file": name})
}

// DecodeBundle uploads a bundle file for decoding. With embedded set it
// targets the with-extension variant whose payload sits in a text envelope;
// the contract is otherwise identical. Every recovered file's match flag is
// stored verbatim: a false match is a data-integrity signal, not noise.
func (s *Session) DecodeBundle(name string, content []byte, embedded bool) error {
	s.mu.Lock()
	if s.jobRunningLocked() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.codec.Running = codecDecoding
	s.codec.Error = ""
	s.codec.DecodeResult = nil
	token := cancel.NewToken(context.Background())
	s.codecToken = token
	s.mu.Unlock()

	s.emit("lossless.started", map[string]any{"op": codecDecoding})
	go func() {
		res, err := s.api.DecodeBundle(token.Context(), name, content, embedded)
		s.applyDecode(token, res, err)
	}()
	return nil
}

func (s *Session) applyDecode(token *cancel.Token, res trimapi.DecodeResult, err error) {
	s.mu.Lock()
	if s.codecToken != token {
		s.mu.Unlock()
		return
	}
	s.codecToken = nil
	s.codec.Running = ""

	if err != nil {
		if trimapi.IsCancelled(err) {
			s.mu.Unlock()
			return
		}
		s.codec.Error = trimapi.UserMessage(err)
		s.mu.Unlock()
		s.logger.Warn("lossless decode failed", "err", err)
		s.emit("lossless.failed", map[string]any{"op": codecDecoding})
		return
	}

	s.codec.DecodeResult = &res
	s.mu.Unlock()

	s.emit("lossless.finished", map[string]any{"op": codecDecoding, "files": res.TotalFiles})
}

// ClearCodec cancels any outstanding codec operation and resets the state
// machine. Idempotent.
func (s *Session) ClearCodec() {
	s.mu.Lock()
	s.codecToken.Cancel()
	s.codecToken = nil
	s.codec = codecState{}
	s.mu.Unlock()

	s.emit("lossless.cleared", nil)
}

func (s *Session) CodecState() CodecView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := CodecView{Running: s.codec.Running, Error: s.codec.Error}
	if s.codec.DecodeResult != nil {
		copied := *s.codec.DecodeResult
		out.DecodeResult = &copied
	}
	return out
}
