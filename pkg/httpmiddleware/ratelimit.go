package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures a sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window.
	Max    int
	Window time.Duration
	// KeyFunc extracts the limiter key. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Message is the body message of a rejected request.
	Message string
}

type window struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

// Limiter counts requests per key over a sliding window approximated by
// weighting the previous fixed window by its overlap.
type Limiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// NewLimiter creates a Limiter.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Message == "" {
		cfg.Message = "Too many requests"
	}
	return &Limiter{cfg: cfg, now: time.Now, windows: make(map[string]*window)}
}

// Allow records a request for key if it fits the limit.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{currStart: now.Truncate(l.cfg.Window)}
		l.windows[key] = w
	}
	if elapsed := now.Sub(w.currStart); elapsed >= l.cfg.Window {
		w.prevCount = w.currCount
		if elapsed >= 2*l.cfg.Window {
			w.prevCount = 0
		}
		w.currCount = 0
		w.currStart = now.Truncate(l.cfg.Window)
	}

	overlap := 1 - now.Sub(w.currStart).Seconds()/l.cfg.Window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	count := w.prevCount*overlap + w.currCount
	d := Decision{ResetAt: w.currStart.Add(l.cfg.Window)}
	if count >= float64(l.cfg.Max) {
		return d
	}
	w.currCount++
	d.Allowed = true
	d.Remaining = max(0, int(float64(l.cfg.Max)-count-1))
	return d
}

// Sweep drops keys idle for two windows.
func (l *Limiter) Sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if now.Sub(w.currStart) >= 2*l.cfg.Window {
			delete(l.windows, k)
		}
	}
}

// RunSweeper sweeps every two windows until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Check applies the limiter to r, writing the rate limit headers. When the
// request is rejected it also writes the 429 response and returns false.
func (l *Limiter) Check(w http.ResponseWriter, r *http.Request) bool {
	d := l.Allow(l.cfg.KeyFunc(r))

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if d.Allowed {
		return true
	}

	retry := math.Ceil(max(0, d.ResetAt.Sub(l.now()).Seconds()))
	h.Set("Retry-After", strconv.Itoa(int(retry)))
	writeError(w, http.StatusTooManyRequests, l.cfg.Message)
	return false
}

// Middleware applies the limiter to every request.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Check(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RateLimit is a global limiter whose stale keys are swept until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg)
	go l.RunSweeper(ctx)
	return l.Middleware()
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
