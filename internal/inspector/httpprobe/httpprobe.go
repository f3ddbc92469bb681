// Package httpprobe inspects an HTTP endpoint. The task's description carries
// the probe spec as JSON:
//
//	{"url":"https://example.com/health","method":"GET","headers":{...},"timeout":10}
package httpprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"inspectd/internal/domain"
)

type Spec struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
	Timeout int               `json:"timeout"` // seconds
}

type Result struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	DurationMS int64  `json:"duration_ms"`
	BodyBytes  int    `json:"body_bytes"`
}

type Probe struct{}

func (Probe) Inspect(ctx context.Context, task domain.Task) (any, error) {
	var spec Spec
	if err := json.Unmarshal([]byte(task.Description), &spec); err != nil {
		return nil, fmt.Errorf("invalid probe spec: %w", err)
	}
	if spec.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if spec.Method == "" {
		spec.Method = "GET"
	}
	if spec.Timeout <= 0 {
		spec.Timeout = 30
	}

	client := &http.Client{Timeout: time.Duration(spec.Timeout) * time.Second}

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}
	for key, value := range spec.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", spec.URL, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read probe response: %w", err)
	}

	res := Result{
		URL:        spec.URL,
		StatusCode: resp.StatusCode,
		DurationMS: time.Since(start).Milliseconds(),
		BodyBytes:  int(n),
	}
	if resp.StatusCode >= 400 {
		return res, fmt.Errorf("probe %s: HTTP %d", spec.URL, resp.StatusCode)
	}
	return res, nil
}
