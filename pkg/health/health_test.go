package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func serve(t *testing.T, h *Health, p Probe) (int, probeBody) {
	t.Helper()
	w := httptest.NewRecorder()
	h.Handler(p)(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body probeBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w.Code, body
}

func check(name string, err error) Check {
	return Check{Name: name, Func: func(context.Context) error { return err }}
}

func runN(h *Health, p Probe, n int) {
	for range n {
		for _, s := range h.checks[p] {
			s.run(context.Background())
		}
	}
}

func TestLiveness_Passing(t *testing.T) {
	h := New()
	h.Register(Liveness, check("a", nil))
	h.Register(Liveness, check("b", nil))

	code, body := serve(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestLiveness_FailureThreshold(t *testing.T) {
	h := New()
	h.Register(Liveness, check("db", errors.New("connection refused")))

	runN(h, Liveness, 2)
	code, _ := serve(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code, "below threshold")

	runN(h, Liveness, 1)
	code, body := serve(t, h, Liveness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestLiveness_Recovery(t *testing.T) {
	var (
		mu  sync.Mutex
		err = errors.New("down")
	)
	h := New()
	h.Register(Liveness, Check{Name: "dep", FailureThreshold: 1, Func: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		return err
	}})

	runN(h, Liveness, 1)
	code, _ := serve(t, h, Liveness)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	mu.Lock()
	err = nil
	mu.Unlock()
	runN(h, Liveness, 1)
	code, _ = serve(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code)
}

func TestReadiness(t *testing.T) {
	h := New()
	h.Register(Readiness, check("cache", nil))

	code, body := serve(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = serve(t, h, Readiness)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = serve(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadiness_OneFailing(t *testing.T) {
	h := New()
	h.Register(Readiness, check("postgres", nil))
	h.Register(Readiness, Check{Name: "broker", FailureThreshold: 1, Func: func(context.Context) error {
		return errors.New("closed")
	}})
	h.SetReady(true)

	runN(h, Readiness, 1)
	code, body := serve(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Len(t, body.Checks, 1)
	assert.Equal(t, "closed", body.Checks["broker"])
	assert.False(t, h.IsReady())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.Register(Liveness, Check{Name: "x", FailureThreshold: 1, Func: func(context.Context) error {
		return errors.New("fail")
	}})
	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	assert.Eventually(t, func() bool {
		return len(h.failures(Liveness)) == 1
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	require.NoError(t, PingCheck("db", pinger{})(context.Background()))

	err := PingCheck("db", pinger{err: errors.New("refused")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping db")
}

func TestQueueDepthCheck(t *testing.T) {
	depth := 5
	c := QueueDepthCheck(func() int { return depth }, 10)
	require.NoError(t, c(context.Background()))
	depth = 11
	require.Error(t, c(context.Background()))
}
