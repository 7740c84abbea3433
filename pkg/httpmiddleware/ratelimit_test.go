package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := &rateLimiter{
		cfg:     RateLimitConfig{Requests: 2, Window: time.Minute},
		now:     func() time.Time { return now },
		windows: make(map[string]*rateWindow),
	}

	ok, remaining, _ := l.allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	ok, remaining, _ = l.allow("a")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _, reset := l.allow("a")
	assert.False(t, ok)
	assert.Equal(t, now.Add(time.Minute), reset)

	// Separate keys do not share a window.
	ok, _, _ = l.allow("b")
	assert.True(t, ok)

	// Window expiry resets the count.
	now = now.Add(time.Minute)
	ok, remaining, _ = l.allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(t.Context(), RateLimitConfig{Requests: 1, Window: time.Minute}, nil),
	)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, rec.Body.String())

	// A different client is unaffected.
	other := httptest.NewRequest(http.MethodGet, "/products", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	handler := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(t.Context(), RateLimitConfig{Requests: 0, Window: time.Minute}, nil),
	)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	for range 10 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientIPKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:1234"
	assert.Equal(t, "192.0.2.7", ClientIPKey(r))

	r.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", ClientIPKey(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	assert.Equal(t, "198.51.100.4", ClientIPKey(r))
}
