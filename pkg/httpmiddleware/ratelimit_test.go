package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(cfg RateLimitConfig) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = clk.now
	return l, clk
}

func request(h http.Handler, remote string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/otp/send", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestLimiter_UnderAndOverLimit(t *testing.T) {
	l, _ := newTestLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	h := l.Middleware()(okHandler())

	for i := range 2 {
		w := request(h, "10.0.0.1:9999", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := request(h, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Too many requests", body["message"])
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	h := l.Middleware()(okHandler())

	assert.Equal(t, http.StatusOK, request(h, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, request(h, "10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, request(h, "10.0.0.1:5678", nil).Code)
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l, clk := newTestLimiter(RateLimitConfig{Max: 4, Window: time.Minute})

	for range 4 {
		require.True(t, l.Allow("k").Allowed)
	}
	require.False(t, l.Allow("k").Allowed)

	// Halfway into the next window half of the previous count still weighs in.
	clk.t = clk.t.Add(90 * time.Second)
	assert.True(t, l.Allow("k").Allowed)
	assert.True(t, l.Allow("k").Allowed)
	assert.False(t, l.Allow("k").Allowed)

	// Two idle windows reset the key.
	clk.t = clk.t.Add(3 * time.Minute)
	d := l.Allow("k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
}

func TestLimiter_Sweep(t *testing.T) {
	l, clk := newTestLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	l.Allow("a")
	clk.t = clk.t.Add(3 * time.Minute)
	l.Sweep()
	assert.Empty(t, l.windows)
}

func TestLimiter_CustomKeyAndMessage(t *testing.T) {
	l, _ := newTestLimiter(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		Message: "Too many OTP requests",
		KeyFunc: func(r *http.Request) string { return r.Header.Get("X-Email") },
	})
	h := l.Middleware()(okHandler())

	assert.Equal(t, http.StatusOK, request(h, "1.1.1.1:1", map[string]string{"X-Email": "a"}).Code)
	w := request(h, "2.2.2.2:1", map[string]string{"X-Email": "a"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many OTP requests")
	assert.Equal(t, http.StatusOK, request(h, "1.1.1.1:1", map[string]string{"X-Email": "b"}).Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "192.168.1.1:4444", nil, "192.168.1.1"},
		{"forwarded for", "192.168.1.1:4444", map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, "203.0.113.50"},
		{"real ip", "192.168.1.1:4444", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"no port", "bare", nil, "bare"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
