package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobserve/swisspipe-engine/pkg/collaborators"
	"github.com/openobserve/swisspipe-engine/pkg/model"
)

func TestDo_ReturnsNormalizedResponseOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bar", r.Header.Get("X-Foo"))
		w.Header().Set("X-Reply", "pong")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := New(collaborators.NewLimiters(1000, 1000, 1000))
	resp, err := c.Do(context.Background(), http.MethodGet, srv.URL, map[string]string{"X-Foo": "bar"}, nil, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(resp.Body))
	assert.Equal(t, "pong", resp.Headers["X-Reply"])
}

func TestDo_ReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(collaborators.NewLimiters(1000, 1000, 1000))
	resp, err := c.Do(context.Background(), http.MethodGet, srv.URL, nil, nil, 5*time.Second)
	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestDo_RespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(collaborators.NewLimiters(1000, 1000, 1000))
	_, err := c.Do(context.Background(), http.MethodGet, srv.URL, nil, nil, 20*time.Millisecond)
	assert.Error(t, err)
}

func TestDoWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(collaborators.NewLimiters(1000, 1000, 1000))
	resp, err := c.DoWithRetry(context.Background(), http.MethodGet, srv.URL, nil, nil, 5*time.Second, model.RetryConfig{MaxAttempts: 5, MaxDelayMs: 50})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoWithRetry_ReturnsLastErrorAfterExhaustingAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(collaborators.NewLimiters(1000, 1000, 1000))
	_, err := c.DoWithRetry(context.Background(), http.MethodGet, srv.URL, nil, nil, 5*time.Second, model.RetryConfig{MaxAttempts: 2, MaxDelayMs: 10})
	assert.Error(t, err)
}
