// Package trimapi is the HTTP client for the TokenTrim compression service.
// Every endpoint is consumed as a black box: multipart request in, JSON or
// plain-text artifact out. The client enforces no timeout of its own;
// callers bound operations through the context they pass in.
package trimapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"tokentrim/cli/internal/logging"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger.With("module", "trimapi"),
	}
}

// SetHTTPClient swaps the underlying transport; tests use it to point the
// client at an httptest server with a custom RoundTripper.
func (c *Client) SetHTTPClient(h *http.Client) {
	if h != nil {
		c.httpClient = h
	}
}

func (c *Client) AnalyzeFile(ctx context.Context, name string, content []byte) (FileAnalysis, error) {
	var out FileAnalysis
	err := c.postMultipartJSON(ctx, "/analyze-file", &out, func(w *multipart.Writer) error {
		return writeFilePart(w, "file", name, content)
	})
	return out, err
}

func (c *Client) CompressFile(ctx context.Context, name string, content []byte) (CompressionReport, error) {
	var out CompressionReport
	err := c.postMultipartJSON(ctx, "/compress", &out, func(w *multipart.Writer) error {
		return writeFilePart(w, "file", name, content)
	})
	if err != nil {
		return CompressionReport{}, err
	}
	out.Finalize()
	return out, nil
}

// ExportPipeline bundles the serialized transcript and the attached files
// into one request and returns the artifact body verbatim.
func (c *Client) ExportPipeline(ctx context.Context, mode string, chat string, files []Upload) (string, error) {
	resp, err := c.postMultipart(ctx, "/pipeline/"+mode, func(w *multipart.Writer) error {
		if err := w.WriteField("chat", chat); err != nil {
			return err
		}
		for _, f := range files {
			if err := writeFilePart(w, "files", f.Name, f.Content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newNetworkError()
	}
	return string(body), nil
}

func (c *Client) EncodeLossless(ctx context.Context, files []Upload) (LosslessBundle, error) {
	var out LosslessBundle
	err := c.postMultipartJSON(ctx, "/pipeline/lossless", &out, func(w *multipart.Writer) error {
		for _, f := range files {
			if err := writeFilePart(w, "files", f.Name, f.Content); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// DecodeBundle uploads a previously encoded bundle and returns the recovered
// files. With embedded set, the with-extension variant is used: the payload
// sits inside a sentinel-delimited text envelope the server extracts.
func (c *Client) DecodeBundle(ctx context.Context, name string, content []byte, embedded bool) (DecodeResult, error) {
	path := "/pipeline/lossless/decode"
	if embedded {
		path = "/pipeline/with-extension/decode"
	}
	var out DecodeResult
	err := c.postMultipartJSON(ctx, path, &out, func(w *multipart.Writer) error {
		return writeFilePart(w, "bundle_file", name, content)
	})
	return out, err
}

// DecodeReferences expands the #hash references a compression pass left in
// code, substituting each one with the pattern its decode map records.
func (c *Client) DecodeReferences(ctx context.Context, code string, decodeMap map[string]string) (string, error) {
	if code == "" {
		return "", NewLocalError("no code to decode")
	}
	var out struct {
		Decoded string `json:"decoded"`
	}
	err := c.postJSON(ctx, "/decode", map[string]any{
		"code":      code,
		"decodeMap": decodeMap,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Decoded, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("request failed", "path", path, "err", err)
		return newNetworkError()
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readServerError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Warn("decode response failed", "path", path, "err", err)
		return newServerError(resp.StatusCode, "malformed response from service")
	}
	return nil
}

func (c *Client) postMultipartJSON(ctx context.Context, path string, out any, build func(*multipart.Writer) error) error {
	resp, err := c.postMultipart(ctx, path, build)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Warn("decode response failed", "path", path, "err", err)
		return newServerError(resp.StatusCode, "malformed response from service")
	}
	return nil
}

func (c *Client) postMultipart(ctx context.Context, path string, build func(*multipart.Writer) error) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := build(mw); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled or superseded; the caller drops this silently.
			return nil, ctx.Err()
		}
		c.logger.Warn("request failed", "path", path, "err", err)
		return nil, newNetworkError()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		return nil, readServerError(resp)
	}
	return resp, nil
}

// readServerError extracts the structured detail field the service puts in
// error bodies, falling back to the HTTP status text.
func readServerError(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Detail) != "" {
		return newServerError(resp.StatusCode, payload.Detail)
	}
	status := strings.TrimSpace(resp.Status)
	if status == "" {
		status = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return newServerError(resp.StatusCode, status)
}

func writeFilePart(w *multipart.Writer, field, name string, content []byte) error {
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = part.Write(content)
	return err
}
