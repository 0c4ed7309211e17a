package session

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"tokentrim/cli/internal/cancel"
	"tokentrim/cli/internal/trimapi"
)

var (
	ErrNoValidFiles  = errors.New("no analyzed files to work with")
	ErrNoCompression = errors.New("no compression result for that file")
)

// CompressionEntry is one file's compression lifecycle, separate from its
// FileTask. A full batch is built wholesale when a run starts and patched
// per entry as requests settle.
type CompressionEntry struct {
	ID              string                     `json:"id"`
	FileName        string                     `json:"fileName"`
	OriginalContent string                     `json:"originalContent"`
	Compressing     bool                       `json:"compressing"`
	Result          *trimapi.CompressionReport `json:"result"`
	Error           string                     `json:"error,omitempty"`

	token *cancel.Token
}

type CompressionView struct {
	Compressing bool               `json:"compressing"`
	Entries     []CompressionEntry `json:"entries"`
}

type compressSpec struct {
	id      string
	name    string
	content []byte
	token   *cancel.Token
}

// Compress starts a compression run over the snapshot of currently resolved
// tasks. The previous run, if any, is cancelled and its batch replaced
// wholesale. Placeholders with compressing=true are visible before any
// request settles.
func (s *Session) Compress() error {
	s.mu.Lock()
	valid := s.validUploadsLocked()
	if len(valid) == 0 {
		s.mu.Unlock()
		return ErrNoValidFiles
	}

	s.compressRun.Cancel()
	run := cancel.NewToken(context.Background())
	s.compressRun = run
	s.compressing = true

	entries := make([]*CompressionEntry, 0, len(valid))
	specs := make([]compressSpec, 0, len(valid))
	for _, u := range valid {
		// Each request owns its own token, parented on the run token so
		// cancelling the run cancels every outstanding sub-request.
		token := cancel.NewToken(run.Context())
		entries = append(entries, &CompressionEntry{
			ID:              u.id,
			FileName:        u.name,
			OriginalContent: string(u.content),
			Compressing:     true,
			token:           token,
		})
		specs = append(specs, compressSpec{id: u.id, name: u.name, content: u.content, token: token})
	}
	s.entries = entries
	s.mu.Unlock()

	s.emit("compress.started", map[string]any{"files": len(specs)})
	go s.runCompression(run, specs)
	return nil
}

// runCompression dispatches one independent request per file and waits for
// all of them to settle, success or not, before dropping the aggregate flag.
func (s *Session) runCompression(run *cancel.Token, specs []compressSpec) {
	var g errgroup.Group
	for _, sp := range specs {
		sp := sp
		g.Go(func() error {
			report, err := s.api.CompressFile(sp.token.Context(), sp.name, sp.content)
			s.applyCompression(run, sp.id, report, err)
			// Sibling requests never abort each other.
			return nil
		})
	}
	_ = g.Wait()
	s.finishCompression(run)
}

// applyCompression patches exactly one entry. Outcomes from a superseded run
// are dropped; cancellations settle the entry without reporting an error.
func (s *Session) applyCompression(run *cancel.Token, id string, report trimapi.CompressionReport, err error) {
	s.mu.Lock()
	if s.compressRun != run {
		s.mu.Unlock()
		return
	}
	var entry *CompressionEntry
	for _, e := range s.entries {
		if e.ID == id {
			entry = e
			break
		}
	}
	if entry == nil {
		s.mu.Unlock()
		return
	}
	entry.Compressing = false
	entry.token = nil
	switch {
	case err == nil:
		entry.Result = &report
	case trimapi.IsCancelled(err):
		// Settled by cancellation; nothing to report.
	default:
		entry.Error = trimapi.UserMessage(err)
	}
	s.mu.Unlock()

	s.emit("compress.updated", map[string]any{"id": id, "error": err != nil})
}

func (s *Session) finishCompression(run *cancel.Token) {
	s.mu.Lock()
	if s.compressRun != run {
		s.mu.Unlock()
		return
	}
	s.compressing = false
	s.mu.Unlock()

	s.emit("compress.finished", nil)
}

// ClearCompression cancels every outstanding sub-request of the current run
// and discards the batch. Idempotent.
func (s *Session) ClearCompression() {
	s.mu.Lock()
	s.compressRun.Cancel()
	s.compressRun = nil
	s.compressing = false
	s.entries = nil
	s.mu.Unlock()

	s.emit("compress.cleared", nil)
}

// ExpandEntry sends one settled entry's best-level output back through the
// service, which substitutes every #hash reference with the pattern recorded
// in the entry's decode map. Synchronous; the caller bounds it via ctx.
func (s *Session) ExpandEntry(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	var report *trimapi.CompressionReport
	for _, e := range s.entries {
		if e.ID == id {
			report = e.Result
			break
		}
	}
	if report == nil {
		s.mu.Unlock()
		return "", ErrNoCompression
	}
	code := report.SummaryLevels[report.BestLevel].Content
	decodeMap := report.HashTable.DecodeMap
	s.mu.Unlock()

	return s.api.DecodeReferences(ctx, code, decodeMap)
}

func (s *Session) CompressionState() CompressionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := CompressionView{Compressing: s.compressing}
	out.Entries = make([]CompressionEntry, 0, len(s.entries))
	for _, e := range s.entries {
		copied := *e
		copied.token = nil
		out.Entries = append(out.Entries, copied)
	}
	return out
}
