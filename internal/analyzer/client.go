// Package analyzer is the HTTP client for the external analysis
// collaborator that performs OCR and AI generation. Only the wire
// contract lives here; the collaborator itself is out of scope.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"lablens/internal/models"
)

// TransportError wraps a network or server failure talking to the
// collaborator. It is surfaced as a transient notice; the user must
// re-initiate, there is no automatic retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("analysis service %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client talks to the analysis collaborator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the collaborator at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is the collaborator's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// chatRequest carries one chat turn with its report context.
type chatRequest struct {
	Message string       `json:"message"`
	Context *chatContext `json:"context,omitempty"`
}

type chatContext struct {
	ReportID    string              `json:"reportId"`
	OverallRisk string              `json:"overallRisk,omitempty"`
	Tests       []models.TestResult `json:"tests,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Analyze uploads the file as a multipart body and returns the raw
// analysis payload. The progress callback receives the transmitted
// percentage (0–100) as the transport drains the request body.
func (c *Client) Analyze(ctx context.Context, filename, contentType string, file io.Reader, size int64, progress func(int)) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	body := &progressReader{
		r:        &buf,
		total:    int64(buf.Len()),
		progress: progress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = body.total

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "analyze", Err: err}
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &TransportError{Op: "analyze", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &TransportError{Op: "analyze", Err: fmt.Errorf("invalid response: %w", err)}
	}
	if !env.Success {
		return nil, &TransportError{Op: "analyze", Err: fmt.Errorf("collaborator error: %s", env.Error)}
	}
	return env.Data, nil
}

// Chat requests an assistant reply for one turn, bound to the report
// context when one is available.
func (c *Client) Chat(ctx context.Context, message string, report *models.Report) (string, error) {
	reqBody := chatRequest{Message: message}
	if report != nil {
		cc := &chatContext{
			ReportID:    report.ID,
			OverallRisk: report.RiskSummary.OverallRisk,
		}
		// A few sample values are enough context for the collaborator.
		if n := len(report.Tests); n > 0 {
			if n > 3 {
				n = 3
			}
			cc.Tests = report.Tests[:n]
		}
		reqBody.Context = cc
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Op: "chat", Err: err}
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &TransportError{Op: "chat", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &TransportError{Op: "chat", Err: fmt.Errorf("invalid response: %w", err)}
	}
	return chatResp.Reply, nil
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		slog.Error("Failed to close response body", "error", err)
	}
}

// progressReader reports transmitted percentage as the transport reads
// the request body.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.progress != nil && p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		p.progress(pct)
	}
	return n, err
}
