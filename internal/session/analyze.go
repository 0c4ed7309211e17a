package session

import (
	"tokentrim/cli/internal/cancel"
	"tokentrim/cli/internal/trimapi"
)

// runAnalysis drives one analysis operation. Single-flight per id is
// enforced at spawn time (startAnalysisLocked cancels the predecessor);
// this side only has to apply the outcome if its token is still current.
func (s *Session) runAnalysis(id string, token *cancel.Token, name string, content []byte) {
	res, err := s.api.AnalyzeFile(token.Context(), name, content)
	s.applyAnalysis(id, token, res, err)
}

// applyAnalysis is the single transition point for analysis outcomes. The
// currency check is against the task's token, not the id: re-adding a
// same-named file yields a new id and a new token, so a stale response can
// never be misattributed.
func (s *Session) applyAnalysis(id string, token *cancel.Token, res trimapi.FileAnalysis, err error) {
	s.mu.Lock()
	task := s.taskLocked(id)
	if task == nil || task.token != token || token.Cancelled() {
		s.mu.Unlock()
		return
	}
	task.token = nil

	if err != nil {
		if trimapi.IsCancelled(err) {
			s.mu.Unlock()
			return
		}
		task.State = AnalysisState{Phase: PhaseFailed, Message: trimapi.UserMessage(err)}
		s.removeProjectionLocked(id)
		s.mu.Unlock()
		s.logger.Warn("analysis failed", "id", id, "file", task.Name, "err", err)
		s.emit("task.updated", map[string]any{"id": id, "phase": PhaseFailed})
		return
	}

	formatted := formatBytes(res.FileSize)
	task.State = AnalysisState{
		Phase:         PhaseResolved,
		Language:      res.Language,
		TokenEstimate: res.TokenEstimate,
		FormattedSize: formatted,
	}
	s.upsertProjectionLocked(ResolvedFile{
		ID:            id,
		Name:          task.Name,
		Size:          task.Size,
		Language:      res.Language,
		TokenEstimate: res.TokenEstimate,
		FormattedSize: formatted,
	})
	s.mu.Unlock()

	s.emit("task.updated", map[string]any{"id": id, "phase": PhaseResolved, "language": res.Language})
}
