// Package httpclient is the HTTP collaborator used by the HttpRequest
// node. Grounded on the teacher's graph/tool/http.go (request/response
// shape: method, url, headers, body in; status_code, headers, body out),
// generalized from an LLM tool call into the retrying, failure-action-
// aware executor the HttpRequest node needs (spec §4.6). Stdlib
// net/http is used directly: no pack repo carries a third-party HTTP
// client, and the teacher's own HTTP tool is stdlib-only.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/openobserve/swisspipe-engine/pkg/collaborators"
	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// Response is the normalized result of one HTTP call.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Client issues rate-limited, retrying HTTP requests.
type Client struct {
	http    *http.Client
	limiter *collaborators.Limiters
}

func New(limiter *collaborators.Limiters) *Client {
	return &Client{http: &http.Client{}, limiter: limiter}
}

// Do issues one HTTP request, honoring ctx's deadline.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body []byte, timeout time.Duration) (Response, error) {
	if err := collaborators.Wait(ctx, c.limiter.HTTP); err != nil {
		return Response{}, err
	}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		return Response{}, fmt.Errorf("httpclient: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("httpclient: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("httpclient: read body: %w", err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			respHeaders[k] = v[0]
		}
	}

	out := Response{StatusCode: resp.StatusCode, Headers: respHeaders, Body: respBody}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, fmt.Errorf("httpclient: non-2xx status %d", resp.StatusCode)
	}
	return out, nil
}

// DoWithRetry retries Do up to retryCfg.MaxAttempts times with exponential
// backoff bounded by retryCfg.MaxDelayMs, implementing the `retry` arm of
// spec §4.6's failure_action contract.
func (c *Client) DoWithRetry(ctx context.Context, method, url string, headers map[string]string, body []byte, timeout time.Duration, retryCfg model.RetryConfig) (Response, error) {
	maxAttempts := retryCfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	maxDelay := time.Duration(retryCfg.MaxDelayMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := engine.ComputeBackoff(attempt, time.Second, maxDelay, rand.New(rand.NewSource(time.Now().UnixNano())))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Response{}, ctx.Err()
			}
		}
		resp, err := c.Do(ctx, method, url, headers, body, timeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return Response{}, lastErr
}
