// internal/client/client.go
// Package client talks to the evaluation service over HTTP.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwiater/llmevaluator/internal/appconfig"
	"github.com/mwiater/llmevaluator/internal/evaluation"
	"github.com/mwiater/llmevaluator/internal/logging"
	"github.com/mwiater/llmevaluator/internal/stream"
)

// Endpoint paths served by the evaluation service.
const (
	PathEvaluateStream = "/evaluate_stream"
	PathEvaluate       = "/evaluate"
	PathUploadCSV      = "/upload_csv"
)

const (
	dirOut = "CLIENT->SERVER"
	dirIn  = "SERVER->CLIENT"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint string
	Status   string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("evaluation service: %s returned %s", e.Endpoint, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

// Client is an HTTP client for the evaluation service.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// New constructs a Client for the configured server. The HTTP client itself
// carries no timeout because streams may run for a long time; request
// helpers apply the timeout through their context instead.
func New(cfg *appconfig.Config) *Client {
	return &Client{
		baseURL: cfg.ServerURL(),
		http: &http.Client{
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		timeout: cfg.RequestTimeout(),
	}
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// EvaluateStream submits req to /evaluate_stream and returns the open
// response body. The caller must close it. Cancelling ctx aborts the stream.
func (c *Client) EvaluateStream(ctx context.Context, submission string, req evaluation.Request) (io.ReadCloser, error) {
	body := req.Values().Encode()
	logging.LogRequest(dirOut, PathEvaluateStream, submission, req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathEvaluateStream, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("evaluation service: %s: %w", PathEvaluateStream, err)
	}
	if err := checkStatus(resp, PathEvaluateStream, submission); err != nil {
		return nil, err
	}
	return &loggingBody{ReadCloser: resp.Body, submission: submission}, nil
}

// Evaluate submits req to /evaluate as a multipart form and decodes the
// single summary response.
func (c *Client) Evaluate(ctx context.Context, submission string, req evaluation.Request) (evaluation.Summary, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := req.WriteMultipart(mw); err != nil {
		return evaluation.Summary{}, err
	}
	if err := mw.Close(); err != nil {
		return evaluation.Summary{}, err
	}
	logging.LogRequest(dirOut, PathEvaluate, submission, req)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.post(ctx, PathEvaluate, submission, mw.FormDataContentType(), &buf)
	if err != nil {
		return evaluation.Summary{}, err
	}
	logging.LogRequest(dirIn, PathEvaluate, submission, raw)
	return stream.DecodeSummary(raw)
}

// UploadCSV posts a batch file to /upload_csv under the multipart field
// "file" and returns the raw response body.
func (c *Client) UploadCSV(ctx context.Context, filename string, file io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	logging.LogRequest(dirOut, PathUploadCSV, "", map[string]any{"file": filepath.Base(filename), "bytes": buf.Len()})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.post(ctx, PathUploadCSV, "", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	logging.LogRequest(dirIn, PathUploadCSV, "", map[string]any{"bytes": len(raw)})
	return raw, nil
}

// FetchDefaults retrieves the form defaults document.
func (c *Client) FetchDefaults(ctx context.Context) ([]byte, error) {
	endpoint := "/" + appconfig.DefaultsDocumentPath
	logging.LogRequest(dirOut, endpoint, "", map[string]string{"method": http.MethodGet, "url": c.baseURL + endpoint})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evaluation service: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, endpoint, ""); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logging.LogRequest(dirIn, endpoint, "", raw)
	return raw, nil
}

func (c *Client) post(ctx context.Context, endpoint, submission, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evaluation service: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, endpoint, submission); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// checkStatus consumes and closes the body of a non-2xx response.
func checkStatus(resp *http.Response, endpoint, submission string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	logging.LogRequest(dirIn, endpoint, submission, raw)
	return &StatusError{Endpoint: endpoint, Status: resp.Status, Code: resp.StatusCode, Body: string(raw)}
}

// loggingBody logs every stream line as it is read.
type loggingBody struct {
	io.ReadCloser
	submission string
	pending    []byte
}

func (b *loggingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.pending = append(b.pending, p[:n]...)
		for {
			i := bytes.IndexByte(b.pending, '\n')
			if i < 0 {
				break
			}
			if line := bytes.TrimSpace(b.pending[:i]); len(line) > 0 {
				logging.LogRequest(dirIn, PathEvaluateStream, b.submission, string(line))
			}
			b.pending = b.pending[i+1:]
		}
	}
	if err != nil {
		if line := bytes.TrimSpace(b.pending); len(line) > 0 {
			logging.LogRequest(dirIn, PathEvaluateStream, b.submission, string(line))
			b.pending = nil
		}
	}
	return n, err
}
