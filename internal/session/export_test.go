package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tokentrim/cli/internal/trimapi"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestExport_UnknownModeRejected(t *testing.T) {
	s, _ := newTestSession(&fakeAPI{})
	if err := s.Export("tarball"); err == nil {
		t.Fatalf("unknown mode must be rejected")
	}
}

func TestExport_MutualExclusionLeavesRunningJobUntouched(t *testing.T) {
	block := make(chan struct{})
	api := &fakeAPI{
		exportFn: func(ctx context.Context, mode, chat string, files []trimapi.Upload) (string, error) {
			<-block
			return "done", nil
		},
	}
	s, events := newTestSession(api)

	if err := s.Export("raw"); err != nil {
		t.Fatalf("first export failed to start: %v", err)
	}
	if err := s.Export("compressed"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	job := s.ExportState()
	if job == nil || job.Mode != "raw" || !job.Running {
		t.Fatalf("running raw job must be unaffected: %+v", job)
	}
	close(block)
	waitEvent(t, events, "export.finished")
}

func TestExport_SavesTimestampedArtifactAndRecordsHistory(t *testing.T) {
	sink := &memSink{}
	rec := &memRecorder{}
	api := &fakeAPI{
		exportFn: func(ctx context.Context, mode, chat string, files []trimapi.Upload) (string, error) {
			return "BUNDLE BODY", nil
		},
	}
	s, events := newTestSession(api, func(o *Options) {
		o.Sink = sink
		o.Recorder = rec
		o.Now = fixedNow
	})

	if err := s.Export("raw"); err != nil {
		t.Fatalf("export failed to start: %v", err)
	}
	waitEvent(t, events, "export.finished")

	saved := sink.all()
	if len(saved) != 1 {
		t.Fatalf("expected one artifact, got %d", len(saved))
	}
	wantName := "tokentrim-raw-2026-01-02T03-04-05Z.txt"
	if saved[0].Name != wantName {
		t.Fatalf("artifact name %q, want %q", saved[0].Name, wantName)
	}
	if string(saved[0].Data) != "BUNDLE BODY" {
		t.Fatalf("artifact body altered: %q", saved[0].Data)
	}
	if got := rec.all(); len(got) != 1 || got[0] != "raw/"+wantName {
		t.Fatalf("history not recorded: %v", got)
	}
	if s.ExportState() != nil {
		t.Fatalf("job must be cleared on completion")
	}
}

func TestExport_SerializesTranscriptAndValidFiles(t *testing.T) {
	var gotChat string
	var gotFiles []trimapi.Upload
	api := &fakeAPI{
		exportFn: func(ctx context.Context, mode, chat string, files []trimapi.Upload) (string, error) {
			gotChat = chat
			gotFiles = files
			return "ok", nil
		},
	}
	s, events := newTestSession(api)
	addResolved(t, s, events, "a.go")
	if err := s.AppendChat("user", "please trim this"); err != nil {
		t.Fatalf("append chat: %v", err)
	}
	if err := s.AppendChat("assistant", "trimming now"); err != nil {
		t.Fatalf("append chat: %v", err)
	}

	if err := s.Export("compressed"); err != nil {
		t.Fatalf("export failed to start: %v", err)
	}
	waitEvent(t, events, "export.finished")

	want := "[User]\nplease trim this\n\n[Assistant]\ntrimming now"
	if gotChat != want {
		t.Fatalf("transcript serialization wrong:\n got %q\nwant %q", gotChat, want)
	}
	if len(gotFiles) != 1 || gotFiles[0].Name != "a.go" {
		t.Fatalf("valid files not forwarded: %+v", gotFiles)
	}
}

func TestExport_FailureSetsSessionErrorUntilDismissed(t *testing.T) {
	api := &fakeAPI{
		exportFn: func(ctx context.Context, mode, chat string, files []trimapi.Upload) (string, error) {
			return "", trimapi.NewLocalError("pipeline exploded")
		},
	}
	s, events := newTestSession(api)
	if err := s.Export("raw"); err != nil {
		t.Fatalf("export failed to start: %v", err)
	}
	waitEvent(t, events, "export.failed")

	job := s.ExportState()
	if job == nil || job.Running || job.Error != "pipeline exploded" {
		t.Fatalf("failed job state wrong: %+v", job)
	}
	// The error persists until explicitly dismissed.
	if got := s.ExportState(); got == nil || got.Error == "" {
		t.Fatalf("error must persist until dismissal")
	}
	s.DismissExport()
	if s.ExportState() != nil {
		t.Fatalf("dismissal must clear the job")
	}
}

func TestExport_BlockedWhileCodecRunning(t *testing.T) {
	block := make(chan struct{})
	api := &fakeAPI{
		encodeFn: func(ctx context.Context, files []trimapi.Upload) (trimapi.LosslessBundle, error) {
			<-block
			return trimapi.LosslessBundle{}, nil
		},
	}
	s, events := newTestSession(api)
	addResolved(t, s, events, "a.go")

	if err := s.EncodeLossless(); err != nil {
		t.Fatalf("encode failed to start: %v", err)
	}
	if err := s.Export("raw"); !errors.Is(err, ErrBusy) {
		t.Fatalf("export must be blocked while codec runs, got %v", err)
	}
	close(block)
	waitEvent(t, events, "lossless.finished")
}

func TestArtifactName_FilesystemSafe(t *testing.T) {
	name := ArtifactName("tokentrim", "with-extension", fixedNow(), "txt")
	if name != "tokentrim-with-extension-2026-01-02T03-04-05Z.txt" {
		t.Fatalf("unexpected artifact name %q", name)
	}
	if strings.ContainsAny(name, ":") {
		t.Fatalf("artifact name must not contain colons: %q", name)
	}
}
