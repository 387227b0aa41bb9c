package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	pkglog "github.com/ultrathink/discovery-web/pkg/log"
)

const (
	userAgent       = "discovery-web/1.0"
	maxBodyBytes    = 32 << 20
	maxDetailsBytes = 512
)

// newHTTPClient builds the client shared by all upstream wrappers. Outbound
// calls are logged through the request context's logger.
func newHTTPClient(name string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: pkglog.NewTransport(name, nil),
	}
}

// requester issues JSON or XML requests against one upstream.
type requester struct {
	name       string
	baseURL    string
	httpClient *http.Client
	// errorField makes a 2xx body carrying a non-empty "error" member fail.
	errorField bool
}

// errorBody matches the error shapes the orchestrator returns with 200.
type errorBody struct {
	Error  any    `json:"error"`
	Status string `json:"status"`
}

// detailBody matches FastAPI style error bodies.
type detailBody struct {
	Detail any `json:"detail"`
}

// fetch sends the request and returns the raw body of a 2xx response.
func (r *requester) fetch(ctx context.Context, method, rawURL string, body any, accept string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{
			Upstream: r.name,
			Message:  fmt.Sprintf("%s is unreachable", r.name),
			Details:  err.Error(),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &APIError{
			Upstream: r.name,
			Message:  "failed to read response",
			Status:   resp.StatusCode,
			Details:  err.Error(),
			Err:      err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Upstream: r.name,
			Message:  fmt.Sprintf("%s returned status %d", r.name, resp.StatusCode),
			Status:   resp.StatusCode,
			Details:  details(data),
		}
	}

	return data, nil
}

// getJSON and postJSON decode a 2xx JSON body into out.
func (r *requester) getJSON(ctx context.Context, rawURL string, out any) error {
	return r.doJSON(ctx, http.MethodGet, rawURL, nil, out)
}

func (r *requester) postJSON(ctx context.Context, rawURL string, body, out any) error {
	return r.doJSON(ctx, http.MethodPost, rawURL, body, out)
}

func (r *requester) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	data, err := r.fetch(ctx, method, rawURL, body, "application/json")
	if err != nil {
		return err
	}

	if r.errorField {
		var shape errorBody
		if json.Unmarshal(data, &shape) == nil {
			if msg := errorText(shape.Error); msg != "" {
				return &APIError{
					Upstream: r.name,
					Message:  msg,
					Status:   http.StatusBadGateway,
					Details:  details(data),
				}
			}
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{
			Upstream: r.name,
			Message:  "invalid response body",
			Status:   http.StatusBadGateway,
			Details:  err.Error(),
			Err:      err,
		}
	}
	return nil
}

func errorText(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	default:
		b, _ := json.Marshal(e)
		return string(b)
	}
}

// details turns an error body into a short human readable string.
func details(body []byte) string {
	var shape detailBody
	if json.Unmarshal(body, &shape) == nil && shape.Detail != nil {
		if s := errorText(shape.Detail); s != "" {
			return truncate(s)
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

// truncate cuts s to at most maxDetailsBytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxDetailsBytes {
		return s
	}
	cut := maxDetailsBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
