package trimapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnalyzeFile_SendsMultipartAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze-file" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			defer func() { _ = f.Close() }()
			if hdr.Filename != "main.go" {
				t.Errorf("unexpected filename %q", hdr.Filename)
			}
		}
		_ = json.NewEncoder(w).Encode(FileAnalysis{
			FileName: "main.go", FileSize: 11, Language: "go", TokenEstimate: 4,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	got, err := c.AnalyzeFile(context.Background(), "main.go", []byte("package main"))
	if err != nil {
		t.Fatalf("AnalyzeFile failed: %v", err)
	}
	if got.Language != "go" || got.TokenEstimate != 4 {
		t.Fatalf("unexpected analysis: %+v", got)
	}
}

func TestCompressFile_FinalizesBestLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(CompressionReport{
			Filename:       "a.py",
			OriginalTokens: 1000,
			SummaryLevels: map[string]SummaryLevel{
				"minified":     {Tokens: 700},
				"skeleton":     {Tokens: 300},
				"architecture": {Tokens: 200},
				"compressed":   {Tokens: 150},
			},
			// Service said something else; the client recomputes.
			BestLevel: "minified", BestTokens: 700,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	got, err := c.CompressFile(context.Background(), "a.py", []byte("x = 1"))
	if err != nil {
		t.Fatalf("CompressFile failed: %v", err)
	}
	if got.BestLevel != "compressed" || got.BestTokens != 150 {
		t.Fatalf("best level not recomputed: %s/%d", got.BestLevel, got.BestTokens)
	}
	if got.OverallReductionPct != 85.0 {
		t.Fatalf("unexpected reduction pct: %v", got.OverallReductionPct)
	}
}

func TestExportPipeline_ChatAndFilesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pipeline/raw" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("chat"); got != "[User]\nhello" {
			t.Errorf("unexpected chat field %q", got)
		}
		if n := len(r.MultipartForm.File["files"]); n != 2 {
			t.Errorf("expected 2 file parts, got %d", n)
		}
		_, _ = w.Write([]byte("ARTIFACT"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	body, err := c.ExportPipeline(context.Background(), "raw", "[User]\nhello", []Upload{
		{Name: "a.go", Content: []byte("a")},
		{Name: "b.go", Content: []byte("b")},
	})
	if err != nil {
		t.Fatalf("ExportPipeline failed: %v", err)
	}
	if body != "ARTIFACT" {
		t.Fatalf("unexpected artifact body %q", body)
	}
}

func TestDecodeBundle_EndpointSelection(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if len(r.MultipartForm.File["bundle_file"]) != 1 {
			t.Errorf("expected bundle_file part")
		}
		_ = json.NewEncoder(w).Encode(DecodeResult{
			Files:      []RecoveredFile{{Filename: "x.go", RecoveredSize: 12345, Match: true}},
			TotalFiles: 1,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)

	res, err := c.DecodeBundle(context.Background(), "bundle.json", []byte("{}"), false)
	if err != nil {
		t.Fatalf("DecodeBundle failed: %v", err)
	}
	if gotPath != "/pipeline/lossless/decode" {
		t.Fatalf("unexpected decode path %q", gotPath)
	}
	if len(res.Files) != 1 || !res.Files[0].Match || res.Files[0].RecoveredSize != 12345 {
		t.Fatalf("unexpected decode result: %+v", res)
	}

	if _, err := c.DecodeBundle(context.Background(), "bundle.txt", []byte("{}"), true); err != nil {
		t.Fatalf("embedded DecodeBundle failed: %v", err)
	}
	if gotPath != "/pipeline/with-extension/decode" {
		t.Fatalf("unexpected embedded decode path %q", gotPath)
	}
}

func TestServerError_UsesDetailField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"detail":"File exceeds the 10 MB limit (12.00 MB received)."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.AnalyzeFile(context.Background(), "big.bin", []byte("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Kind != KindServer || apiErr.Status != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if apiErr.Message != "File exceeds the 10 MB limit (12.00 MB received)." {
		t.Fatalf("detail field not used: %q", apiErr.Message)
	}
}

func TestServerError_FallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.AnalyzeFile(context.Background(), "a.go", []byte("x"))
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Message != "502 Bad Gateway" {
		t.Fatalf("expected status text fallback, got %q", apiErr.Message)
	}
}

func TestNetworkError_NormalizedMessage(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil) // nothing listens here
	_, err := c.AnalyzeFile(context.Background(), "a.go", []byte("x"))
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Kind != KindNetwork || apiErr.Message != networkErrMessage {
		t.Fatalf("network error not normalized: %+v", apiErr)
	}
}

func TestCancelledRequest_ReportsContextError(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, nil)
	go cancel()
	_, err := c.AnalyzeFile(ctx, "a.go", []byte("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsCancelled(err) {
		t.Fatalf("cancelled request should be classified as cancellation, got %v", err)
	}
}

func TestDecodeReferences_PostsJSONAndReturnsExpanded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/decode" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var body struct {
			Code      string            `json:"code"`
			DecodeMap map[string]string `json:"decodeMap"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		expanded := body.Code
		for key, pattern := range body.DecodeMap {
			expanded = strings.ReplaceAll(expanded, key, pattern)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"decoded": expanded})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	got, err := c.DecodeReferences(context.Background(), "use #a1b2c3 here", map[string]string{
		"#a1b2c3": "func handler(w http.ResponseWriter, r *http.Request)",
	})
	if err != nil {
		t.Fatalf("DecodeReferences failed: %v", err)
	}
	if got != "use func handler(w http.ResponseWriter, r *http.Request) here" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestDecodeReferences_RejectsEmptyCodeLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for empty code")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.DecodeReferences(context.Background(), "", nil); err == nil {
		t.Fatalf("expected error for empty code")
	}
}

func TestSelectBestLevel_TieBreakPriority(t *testing.T) {
	best, tokens, ok := SelectBestLevel(map[string]SummaryLevel{
		"skeleton":     {Tokens: 200},
		"architecture": {Tokens: 200},
		"minified":     {Tokens: 900},
		"compressed":   {Tokens: 450},
	})
	if !ok {
		t.Fatalf("expected a selection")
	}
	if best != "skeleton" || tokens != 200 {
		t.Fatalf("tie must resolve to skeleton, got %s/%d", best, tokens)
	}
}

func TestSelectBestLevel_ConsidersUnlistedNames(t *testing.T) {
	best, tokens, ok := SelectBestLevel(map[string]SummaryLevel{
		"skeleton":   {Tokens: 300},
		"compressed": {Tokens: 450},
		"ultra":      {Tokens: 120},
	})
	if !ok {
		t.Fatalf("expected a selection")
	}
	if best != "ultra" || tokens != 120 {
		t.Fatalf("cheapest level must win regardless of name, got %s/%d", best, tokens)
	}

	// On equal counts a listed name still beats an unlisted one.
	best, tokens, _ = SelectBestLevel(map[string]SummaryLevel{
		"skeleton": {Tokens: 300},
		"ultra":    {Tokens: 300},
	})
	if best != "skeleton" || tokens != 300 {
		t.Fatalf("tie must favor the listed name, got %s/%d", best, tokens)
	}
}
