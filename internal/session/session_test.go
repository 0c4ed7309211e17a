package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tokentrim/cli/internal/trimapi"
)

// fakeAPI lets each test script the remote service per call.
type fakeAPI struct {
	analyzeFn  func(ctx context.Context, name string, content []byte) (trimapi.FileAnalysis, error)
	compressFn func(ctx context.Context, name string, content []byte) (trimapi.CompressionReport, error)
	exportFn   func(ctx context.Context, mode, chat string, files []trimapi.Upload) (string, error)
	encodeFn   func(ctx context.Context, files []trimapi.Upload) (trimapi.LosslessBundle, error)
	decodeFn   func(ctx context.Context, name string, content []byte, embedded bool) (trimapi.DecodeResult, error)
	expandFn   func(ctx context.Context, code string, decodeMap map[string]string) (string, error)
}

func (f *fakeAPI) AnalyzeFile(ctx context.Context, name string, content []byte) (trimapi.FileAnalysis, error) {
	if f.analyzeFn == nil {
		return trimapi.FileAnalysis{FileName: name, FileSize: int64(len(content)), Language: "go", TokenEstimate: 1}, nil
	}
	return f.analyzeFn(ctx, name, content)
}

func (f *fakeAPI) CompressFile(ctx context.Context, name string, content []byte) (trimapi.CompressionReport, error) {
	if f.compressFn == nil {
		return trimapi.CompressionReport{Filename: name}, nil
	}
	return f.compressFn(ctx, name, content)
}

func (f *fakeAPI) ExportPipeline(ctx context.Context, mode, chat string, files []trimapi.Upload) (string, error) {
	if f.exportFn == nil {
		return "artifact", nil
	}
	return f.exportFn(ctx, mode, chat, files)
}

func (f *fakeAPI) EncodeLossless(ctx context.Context, files []trimapi.Upload) (trimapi.LosslessBundle, error) {
	if f.encodeFn == nil {
		return trimapi.LosslessBundle{}, nil
	}
	return f.encodeFn(ctx, files)
}

func (f *fakeAPI) DecodeBundle(ctx context.Context, name string, content []byte, embedded bool) (trimapi.DecodeResult, error) {
	if f.decodeFn == nil {
		return trimapi.DecodeResult{}, nil
	}
	return f.decodeFn(ctx, name, content, embedded)
}

func (f *fakeAPI) DecodeReferences(ctx context.Context, code string, decodeMap map[string]string) (string, error) {
	if f.expandFn == nil {
		for key, pattern := range decodeMap {
			code = strings.ReplaceAll(code, key, pattern)
		}
		return code, nil
	}
	return f.expandFn(ctx, code, decodeMap)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type savedArtifact struct {
	Name string
	Data []byte
}

type memSink struct {
	mu    sync.Mutex
	saved []savedArtifact
}

func (s *memSink) Save(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.saved = append(s.saved, savedArtifact{Name: name, Data: cp})
	return "/downloads/" + name, nil
}

func (s *memSink) all() []savedArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]savedArtifact, len(s.saved))
	copy(out, s.saved)
	return out
}

type memRecorder struct {
	mu      sync.Mutex
	records []string
}

func (r *memRecorder) Record(mode, filename, path string, size int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, mode+"/"+filename)
	return nil
}

func (r *memRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	copy(out, r.records)
	return out
}

func newTestSession(api API, opts ...func(*Options)) (*Session, chan string) {
	events := make(chan string, 128)
	o := Options{
		API: api,
		IDs: &seqIDs{},
		Events: func(topic string, _ map[string]any) {
			select {
			case events <- topic:
			default:
			}
		},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o), events
}

func waitEvent(t *testing.T, events chan string, topic string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-events:
			if got == topic {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", topic)
		}
	}
}

func waitPhase(t *testing.T, s *Session, id string, phase Phase) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, task := range s.Tasks() {
			if task.ID == id && task.State.Phase == phase {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for task %s to reach %s", id, phase)
}

func drainEvents(events chan string) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}
