package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, handler http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("Passing", func(t *testing.T) {
		h := New()
		h.Add("goroutines", Liveness, passing())
		h.Evaluate(context.Background())

		w := get(t, h.LiveEndpoint, "/livez")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})
	t.Run("BelowThreshold", func(t *testing.T) {
		h := New()
		h.Add("flaky", Liveness, failing("temporary"))
		h.Evaluate(context.Background())
		h.Evaluate(context.Background())

		assert.Equal(t, http.StatusOK, get(t, h.LiveEndpoint, "/livez").Code)
	})
	t.Run("Failing", func(t *testing.T) {
		h := New()
		h.Add("goroutines", Liveness, failing("too many"))
		for range 3 {
			h.Evaluate(context.Background())
		}

		w := get(t, h.LiveEndpoint, "/livez")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"unhealthy","checks":{"goroutines":"too many"}}`, w.Body.String())
	})
	t.Run("IgnoresReadiness", func(t *testing.T) {
		h := New()
		h.Add("catalog", Readiness, failing("down"), WithThresholds(1, 1))
		h.Evaluate(context.Background())

		assert.Equal(t, http.StatusOK, get(t, h.LiveEndpoint, "/livez").Code)
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("NotReady", func(t *testing.T) {
		h := New()
		h.Add("catalog", Readiness, passing())

		w := get(t, h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())
	})
	t.Run("Ready", func(t *testing.T) {
		h := New()
		h.Add("catalog", Readiness, passing())
		h.SetReady(true)

		assert.Equal(t, http.StatusOK, get(t, h.ReadyEndpoint, "/readyz").Code)

		h.SetReady(false)
		assert.Equal(t, http.StatusServiceUnavailable, get(t, h.ReadyEndpoint, "/readyz").Code)
	})
	t.Run("OneFailing", func(t *testing.T) {
		h := New()
		h.Add("postgres", Readiness, passing())
		h.Add("catalog", Readiness, failing("fetch failed"), WithThresholds(1, 1))
		h.SetReady(true)
		h.Evaluate(context.Background())

		w := get(t, h.ReadyEndpoint, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"unhealthy","checks":{"catalog":"fetch failed"}}`, w.Body.String())
		assert.False(t, h.IsReady())
	})
}

func TestCheck_Recovery(t *testing.T) {
	var broken atomic.Bool
	broken.Store(true)

	h := New()
	h.Add("db", Readiness, func(context.Context) error {
		if broken.Load() {
			return errors.New("connection refused")
		}
		return nil
	}, WithThresholds(2, 2))
	h.SetReady(true)

	ctx := context.Background()
	h.Evaluate(ctx)
	assert.True(t, h.IsReady(), "one failure is below threshold")
	h.Evaluate(ctx)
	assert.False(t, h.IsReady())

	broken.Store(false)
	h.Evaluate(ctx)
	assert.False(t, h.IsReady(), "one success is below threshold")
	h.Evaluate(ctx)
	assert.True(t, h.IsReady())
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.Add("slow", Liveness, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(10*time.Millisecond), WithThresholds(1, 1))
	h.Evaluate(context.Background())

	w := get(t, h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "deadline exceeded")
}

func TestTask(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.Add("count", Liveness, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	task := h.Task(15 * time.Second)
	assert.Equal(t, "health", task.Name)
	assert.Equal(t, 15*time.Second, task.Interval)
	assert.True(t, task.Immediate)

	task.Run(context.Background(), time.Now())
	assert.EqualValues(t, 1, calls.Load())
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestFreshnessCheck(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	var last time.Time
	check := FreshnessCheck("catalog", time.Minute, func() time.Time { return last }, clock)

	assert.NoError(t, check(context.Background()), "never loaded")

	last = now.Add(-30 * time.Second)
	assert.NoError(t, check(context.Background()))

	last = now.Add(-5 * time.Minute)
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog is stale")
}
