package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"swing-lab/internal/metrics"
)

// Client talks to the external swing analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Request is the payload sent to the analyzer. The video is referenced by a
// short-lived signed URL; the analyzer never gets bucket credentials.
type Request struct {
	SwingID     string  `json:"swingId"`
	VideoURL    string  `json:"videoUrl"`
	Club        string  `json:"club,omitempty"`
	DurationSec float64 `json:"durationSec,omitempty"`
}

// Result is the analyzer's verdict on a swing.
type Result struct {
	Overall  float64  `json:"score"`
	Tempo    float64  `json:"tempo"`
	Posture  float64  `json:"posture"`
	Rotation float64  `json:"rotation"`
	Feedback []string `json:"feedback"`
}

// New creates an analyzer client. baseURL is the service root, e.g.
// "http://analyzer:9000". A zero timeout defaults to 60 seconds; analysis of
// a full swing video is slow.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an analyzer URL was configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Analyze submits a swing for scoring and returns the analyzer's result.
func (c *Client) Analyze(ctx context.Context, req *Request) (*Result, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("analyzer not configured")
	}

	start := time.Now()
	result, err := c.analyze(ctx, req)
	metrics.AnalyzerRequestDuration.Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.AnalyzerRequestsTotal.WithLabelValues(status).Inc()
	return result, err
}

func (c *Client) analyze(ctx context.Context, req *Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analyzer request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		// Cap how much of an error body we quote back.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode analyzer response: %w", err)
	}
	return &result, nil
}
