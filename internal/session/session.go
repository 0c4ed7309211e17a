// Package session is the client-side orchestration layer. One Session owns
// every piece of shared state: the attached-file task registry, the resolved
// projection, the compression batch, and the export/codec jobs. All mutation
// funnels through transition methods that hold the session mutex and
// re-validate token currency before applying, so responses from cancelled or
// superseded operations can never win.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tokentrim/cli/internal/cancel"
	"tokentrim/cli/internal/logging"
	"tokentrim/cli/internal/trimapi"
)

const defaultMaxFileSize = 10 * 1024 * 1024

// API is the slice of the remote service the session consumes.
type API interface {
	AnalyzeFile(ctx context.Context, name string, content []byte) (trimapi.FileAnalysis, error)
	CompressFile(ctx context.Context, name string, content []byte) (trimapi.CompressionReport, error)
	ExportPipeline(ctx context.Context, mode string, chat string, files []trimapi.Upload) (string, error)
	EncodeLossless(ctx context.Context, files []trimapi.Upload) (trimapi.LosslessBundle, error)
	DecodeBundle(ctx context.Context, name string, content []byte, embedded bool) (trimapi.DecodeResult, error)
	DecodeReferences(ctx context.Context, code string, decodeMap map[string]string) (string, error)
}

type IDGenerator interface {
	NewID() string
}

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

// ArtifactSink stores a finished export artifact and returns its path.
type ArtifactSink interface {
	Save(name string, data []byte) (string, error)
}

// ArtifactRecorder keeps the history of saved artifacts.
type ArtifactRecorder interface {
	Record(mode, filename, path string, size int64) error
}

// EventSink receives state-change notifications; the local API server feeds
// these into its WebSocket hub.
type EventSink func(topic string, payload map[string]any)

type Options struct {
	API         API
	Logger      *slog.Logger
	IDs         IDGenerator
	MaxFileSize int64
	Sink        ArtifactSink
	Recorder    ArtifactRecorder
	Events      EventSink
	Prefix      string
	Now         func() time.Time
}

type Session struct {
	mu     sync.Mutex
	logger *slog.Logger
	api    API

	ids         IDGenerator
	maxFileSize int64
	sink        ArtifactSink
	recorder    ArtifactRecorder
	events      EventSink
	prefix      string
	now         func() time.Time

	tasks    []*FileTask
	resolved []ResolvedFile

	entries     []*CompressionEntry
	compressing bool
	compressRun *cancel.Token

	export      *ExportJob
	exportToken *cancel.Token

	codec      codecState
	codecToken *cancel.Token

	chat []ChatMessage
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	ids := opts.IDs
	if ids == nil {
		ids = uuidGenerator{}
	}
	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "tokentrim"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sink := opts.Sink
	if sink == nil {
		sink = discardSink{}
	}
	return &Session{
		logger:      logger.With("module", "session"),
		api:         opts.API,
		ids:         ids,
		maxFileSize: maxFileSize,
		sink:        sink,
		recorder:    opts.Recorder,
		events:      opts.Events,
		prefix:      prefix,
		now:         now,
	}
}

func (s *Session) emit(topic string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	s.events(topic, payload)
}
