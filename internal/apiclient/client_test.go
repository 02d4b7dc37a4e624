package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRetryDelay = 50 * time.Millisecond

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	c, err := New(Config{
		BaseURL:    srv.URL,
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: testRetryDelay,
	})
	require.NoError(t, err)

	return c
}

// dropConnection closes the connection without writing a response.
func dropConnection(t *testing.T, w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	require.True(t, ok)
	conn, _, err := hj.Hijack()
	require.NoError(t, err)
	_ = conn.Close()
}

func TestClient_DoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks/", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("page"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"name":"scan"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	var out struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	err := c.Get(context.Background(), "/tasks/", url.Values{"page": {"5"}}, &out)
	require.NoError(t, err)
	require.Equal(t, int64(7), out.ID)
	require.Equal(t, "scan", out.Name)
}

func TestClient_PostBodyAndEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users/reset_password/", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(12), body["target_id"])

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	var out map[string]any
	err := c.Post(context.Background(), "users/reset_password/", map[string]any{"target_id": 12}, &out)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestClient_SemanticErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{
			name:    "duplicate keyword",
			status:  http.StatusBadRequest,
			body:    `{"keyword":["fingerprint with this keyword already exists."]}`,
			message: MsgDuplicate,
		},
		{
			name:    "unique set",
			status:  http.StatusBadRequest,
			body:    `{"non_field_errors":["The fields keyword, owner must make a unique set."]}`,
			message: MsgDuplicate,
		},
		{
			name:    "field errors",
			status:  http.StatusBadRequest,
			body:    `{"username":["This field is required."],"email":["Enter a valid email address."]}`,
			message: "email: Enter a valid email address.; username: This field is required.",
		},
		{
			name:    "bad request without body",
			status:  http.StatusBadRequest,
			body:    ``,
			message: MsgBadRequest,
		},
		{
			name:    "forbidden with detail",
			status:  http.StatusForbidden,
			body:    `{"detail":"Only administrators can review fingerprints."}`,
			message: "Only administrators can review fingerprints.",
		},
		{
			name:    "forbidden without body",
			status:  http.StatusForbidden,
			body:    `<html>nope</html>`,
			message: MsgForbidden,
		},
		{
			name:    "not found ignores body",
			status:  http.StatusNotFound,
			body:    `{"detail":"Not found."}`,
			message: MsgNotFound,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `Traceback (most recent call last): IntegrityError`,
			message: MsgServerError,
		},
		{
			name:    "other status",
			status:  http.StatusBadGateway,
			body:    ``,
			message: "request failed: 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv)

			err := c.Post(context.Background(), "/fingerprints/submit/", map[string]string{"keyword": "k"}, nil)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrSemantic)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.message, apiErr.Message)
			require.Equal(t, tt.message, Message(err))
			require.Zero(t, apiErr.Retries)
			require.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestClient_TransientFailureRetriesWithDelay(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		dropConnection(t, w)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	started := time.Now()
	err := c.Get(context.Background(), "/tasks/1/status/", nil, nil)
	elapsed := time.Since(started)

	require.ErrorIs(t, err, ErrTransient)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 2, apiErr.Retries)
	require.Equal(t, MsgNetwork, apiErr.Message)
	require.Equal(t, int32(3), hits.Load())
	require.GreaterOrEqual(t, elapsed, 2*testRetryDelay)
}

func TestClient_TransientFailureRecovers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			dropConnection(t, w)
			return
		}
		_, _ = w.Write([]byte(`{"status":"running"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "/tasks/1/status/", nil, &out))
	require.Equal(t, "running", out["status"])
	require.Equal(t, int32(2), hits.Load())
}

func TestClient_TimeoutIsTransient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(Config{
		BaseURL:    srv.URL,
		Timeout:    50 * time.Millisecond,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	err = c.Get(context.Background(), "/fingerprints/", nil, nil)
	require.ErrorIs(t, err, ErrTransient)
	require.Equal(t, int32(2), hits.Load())
}

func TestClient_RetriesAreIsolatedPerRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		dropConnection(t, w)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	const requests = 4
	errs := make([]error, requests)

	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Get(context.Background(), "/fingerprints/", nil, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		var apiErr *Error
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, KindTransient, apiErr.Kind)
		require.Equal(t, 2, apiErr.Retries)
	}
	require.Equal(t, int32(requests*3), hits.Load())
}

func TestClient_CancelledContextIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		dropConnection(t, w)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, MaxRetries: 2, RetryDelay: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = c.Get(ctx, "/fingerprints/", nil, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int32(1), hits.Load())
}

func TestClient_UnauthorizedIsPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Authentication credentials were not provided."}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	var seen []*Error
	c.OnUnauthorized(func(ctx context.Context, err *Error) {
		seen = append(seen, err)
	})

	err := c.Get(context.Background(), "/users/me/", nil, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.NotErrorIs(t, err, ErrSemantic)
	require.Len(t, seen, 1)
	require.Equal(t, "/users/me/", seen[0].Path)
	require.Equal(t, MsgUnauthorized, seen[0].Message)
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"})
	require.Error(t, err)
}

func TestNew_AppliesDefaults(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8000"})
	require.NoError(t, err)

	cfg := c.Config()
	require.Equal(t, "/api", cfg.BasePath)
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Equal(t, time.Second, cfg.RetryDelay)
	require.Equal(t, 2, cfg.MaxRetries)
	require.Equal(t, "http://localhost:8000/api/users/me/", c.resolve("/users/me/", nil))
}

func TestClient_RetryBudget(t *testing.T) {
	tests := []struct {
		name        string
		maxRetries  int
		wantHits    int32
		wantRetries int
	}{
		{name: "zero takes the default", maxRetries: 0, wantHits: 3, wantRetries: 2},
		{name: "explicit budget", maxRetries: 1, wantHits: 2, wantRetries: 1},
		{name: "negative disables retries", maxRetries: -1, wantHits: 1, wantRetries: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				dropConnection(t, w)
			}))
			defer srv.Close()

			c, err := New(Config{BaseURL: srv.URL, MaxRetries: tt.maxRetries, RetryDelay: 10 * time.Millisecond})
			require.NoError(t, err)

			err = c.Get(context.Background(), "/tasks/", nil, nil)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, KindTransient, apiErr.Kind)
			require.Equal(t, tt.wantRetries, apiErr.Retries)
			require.Equal(t, tt.wantHits, hits.Load())
		})
	}
}
