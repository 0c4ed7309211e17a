package session

import (
	"context"
	"fmt"

	"tokentrim/cli/internal/cancel"
)

type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseAnalyzing Phase = "analyzing"
	PhaseResolved  Phase = "resolved"
	PhaseRejected  Phase = "rejected"
	PhaseFailed    Phase = "failed"
)

// AnalysisState is the tagged variant describing a task's progress. Only the
// fields belonging to the current phase are populated.
type AnalysisState struct {
	Phase         Phase  `json:"phase"`
	Language      string `json:"language,omitempty"`
	TokenEstimate int    `json:"tokenEstimate,omitempty"`
	FormattedSize string `json:"formattedSize,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Message       string `json:"message,omitempty"`
}

// FileTask is one attached file and its analysis lifecycle. Its token is
// non-nil only while an analysis is in flight; comparing a completion's
// token against it is the currency check that drops stale responses.
type FileTask struct {
	ID      string
	Name    string
	Size    int64
	Content []byte
	State   AnalysisState

	token *cancel.Token
}

type FileTaskView struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Size  int64         `json:"size"`
	State AnalysisState `json:"state"`
}

// ResolvedFile is one entry in the resolved-file projection.
type ResolvedFile struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	Language      string `json:"language"`
	TokenEstimate int    `json:"tokenEstimate"`
	FormattedSize string `json:"formattedSize"`
}

type IncomingFile struct {
	Name    string
	Content []byte
}

// AddFiles registers each input as an independent task. Oversized files are
// rejected locally with a message carrying both the limit and the actual
// size and never incur a request; accepted files immediately start analysis.
// New tasks append in input order; existing tasks are never reordered.
func (s *Session) AddFiles(files []IncomingFile) []FileTaskView {
	s.mu.Lock()
	views := make([]FileTaskView, 0, len(files))
	for _, f := range files {
		size := int64(len(f.Content))
		task := &FileTask{
			ID:      s.ids.NewID(),
			Name:    f.Name,
			Size:    size,
			Content: f.Content,
		}
		if size > s.maxFileSize {
			task.State = AnalysisState{
				Phase: PhaseRejected,
				Reason: fmt.Sprintf("%s exceeds the %s limit (%s received)",
					f.Name, formatBytes(s.maxFileSize), formatBytes(size)),
			}
			s.tasks = append(s.tasks, task)
			views = append(views, task.view())
			continue
		}
		task.State = AnalysisState{Phase: PhasePending}
		s.tasks = append(s.tasks, task)
		s.startAnalysisLocked(task)
		views = append(views, task.view())
	}
	s.mu.Unlock()

	for _, v := range views {
		s.emit("task.added", map[string]any{"id": v.ID, "name": v.Name, "phase": v.State.Phase})
	}
	return views
}

// RemoveFile cancels the task's in-flight analysis and deletes the task and
// its projection entry together. Once this returns, no later-arriving
// response for the id can mutate visible state.
func (s *Session) RemoveFile(id string) bool {
	s.mu.Lock()
	idx := -1
	for i, t := range s.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	task := s.tasks[idx]
	task.token.Cancel()
	task.token = nil
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.removeProjectionLocked(id)
	s.mu.Unlock()

	s.emit("task.removed", map[string]any{"id": id})
	return true
}

// ClearAll cancels every outstanding analysis and empties the registry and
// projection together.
func (s *Session) ClearAll() {
	s.mu.Lock()
	for _, t := range s.tasks {
		t.token.Cancel()
		t.token = nil
	}
	s.tasks = nil
	s.resolved = nil
	s.mu.Unlock()

	s.emit("task.cleared", nil)
}

// Reanalyze re-runs the analysis for one task; the prior attempt, if any, is
// cancelled first. Rejected tasks stay rejected: the size guard is local and
// retrying cannot change its outcome.
func (s *Session) Reanalyze(id string) bool {
	s.mu.Lock()
	task := s.taskLocked(id)
	if task == nil || task.State.Phase == PhaseRejected {
		s.mu.Unlock()
		return false
	}
	s.startAnalysisLocked(task)
	s.mu.Unlock()

	s.emit("task.updated", map[string]any{"id": id, "phase": PhaseAnalyzing})
	return true
}

func (s *Session) Tasks() []FileTaskView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FileTaskView, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.view())
	}
	return out
}

// ResolvedFiles returns the projection: only tasks whose latest applied
// analysis outcome is resolved, in stable order.
func (s *Session) ResolvedFiles() []ResolvedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ResolvedFile, len(s.resolved))
	copy(out, s.resolved)
	return out
}

func (t *FileTask) view() FileTaskView {
	return FileTaskView{ID: t.ID, Name: t.Name, Size: t.Size, State: t.State}
}

func (s *Session) taskLocked(id string) *FileTask {
	for _, t := range s.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// upsertProjectionLocked replaces an existing entry in place or appends a
// new one; existing entries keep their position.
func (s *Session) upsertProjectionLocked(entry ResolvedFile) {
	for i, r := range s.resolved {
		if r.ID == entry.ID {
			s.resolved[i] = entry
			return
		}
	}
	s.resolved = append(s.resolved, entry)
}

func (s *Session) removeProjectionLocked(id string) {
	for i, r := range s.resolved {
		if r.ID == id {
			s.resolved = append(s.resolved[:i], s.resolved[i+1:]...)
			return
		}
	}
}

// validUploadsLocked snapshots the files currently in resolved state, the
// validity filter shared by compression, export and lossless encode.
func (s *Session) validUploadsLocked() []uploadSpec {
	out := make([]uploadSpec, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.State.Phase != PhaseResolved {
			continue
		}
		out = append(out, uploadSpec{id: t.ID, name: t.Name, content: t.Content})
	}
	return out
}

type uploadSpec struct {
	id      string
	name    string
	content []byte
}

func (s *Session) startAnalysisLocked(task *FileTask) {
	task.token.Cancel()
	token := cancel.NewToken(context.Background())
	task.token = token
	task.State = AnalysisState{Phase: PhaseAnalyzing}
	go s.runAnalysis(task.ID, token, task.Name, task.Content)
}
