package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)

	require.True(t, rl.Allow("10.0.0.1"))
	require.True(t, rl.Allow("10.0.0.1"))
	require.False(t, rl.Allow("10.0.0.1"))

	// other clients have their own budget
	require.True(t, rl.Allow("10.0.0.2"))
	require.Equal(t, 2, rl.Len())

	rl.Sweep(0)
	require.Equal(t, 0, rl.Len())
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1)

	var limited int
	handler := ClientIPMiddleware(false)(rl.Middleware(func(w http.ResponseWriter, r *http.Request) {
		limited++
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/login", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/login", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, 1, limited)
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name  string
		limit rate.Limit
		want  int
	}{
		{name: "one every six seconds", limit: rate.Every(6 * time.Second), want: 6},
		{name: "faster than one per second", limit: rate.Limit(50), want: 1},
		{name: "unlimited", limit: rate.Inf, want: 1},
		{name: "zero never refills", limit: 0, want: 3600},
		{name: "slower than the ceiling", limit: rate.Every(24 * time.Hour), want: 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, retryAfterSeconds(tt.limit))
		})
	}
}

func TestRateLimiter_MiddlewareZeroRate(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	handler := rl.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.9:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "3600", rec.Header().Get("Retry-After"))
}
