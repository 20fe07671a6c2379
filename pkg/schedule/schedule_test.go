package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startScheduler(t *testing.T, s *Scheduler) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() {
		cancelCtx()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func TestScheduler_ManualTicks(t *testing.T) {
	m := NewManual()
	s := New(zap.NewNop(), WithTicker(m.NewTicker))

	var runs atomic.Int64
	s.Add(Task{
		Name:     "counter",
		Interval: 4 * time.Second,
		Run:      func(context.Context, time.Time) { runs.Add(1) },
	})
	stop := startScheduler(t, s)

	for range 5 {
		m.Fire(4*time.Second, time.Now())
	}
	// The sixth tick is only received after the fifth run returned.
	m.Fire(4*time.Second, time.Now())
	assert.GreaterOrEqual(t, runs.Load(), int64(5))

	stop()
	assert.Equal(t, int64(6), runs.Load())
}

func TestScheduler_Immediate(t *testing.T) {
	m := NewManual()
	s := New(zap.NewNop(), WithTicker(m.NewTicker))

	ran := make(chan struct{}, 1)
	s.Add(Task{
		Name:      "refresh",
		Interval:  30 * time.Second,
		Immediate: true,
		Run:       func(context.Context, time.Time) { ran <- struct{}{} },
	})
	stop := startScheduler(t, s)
	defer stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("immediate run did not happen")
	}
}

func TestScheduler_IndependentTasks(t *testing.T) {
	m := NewManual()
	s := New(zap.NewNop(), WithTicker(m.NewTicker))

	var fast, slow atomic.Int64
	s.Add(Task{Name: "fast", Interval: time.Second, Run: func(context.Context, time.Time) { fast.Add(1) }})
	s.Add(Task{Name: "slow", Interval: time.Minute, Run: func(context.Context, time.Time) { slow.Add(1) }})
	stop := startScheduler(t, s)

	m.Fire(time.Second, time.Now())
	m.Fire(time.Second, time.Now())
	m.Fire(time.Minute, time.Now())
	stop()

	assert.Equal(t, int64(2), fast.Load())
	assert.Equal(t, int64(1), slow.Load())
}

func TestScheduler_OverlapDoesNotBlockTicks(t *testing.T) {
	m := NewManual()
	s := New(zap.NewNop(), WithTicker(m.NewTicker))

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	var finished atomic.Int64
	s.Add(Task{
		Name:     "slow-fetch",
		Interval: 30 * time.Second,
		Overlap:  true,
		Run: func(context.Context, time.Time) {
			started.Done()
			<-release
			finished.Add(1)
		},
	})
	stop := startScheduler(t, s)

	m.Fire(30*time.Second, time.Now())
	m.Fire(30*time.Second, time.Now())
	started.Wait() // both runs in flight at once

	close(release)
	stop()
	assert.Equal(t, int64(2), finished.Load())
}

func TestScheduler_PanicIsRecovered(t *testing.T) {
	m := NewManual()
	s := New(zap.NewNop(), WithTicker(m.NewTicker))

	var runs atomic.Int64
	s.Add(Task{
		Name:     "boom",
		Interval: time.Second,
		Run: func(context.Context, time.Time) {
			runs.Add(1)
			panic("boom")
		},
	})
	stop := startScheduler(t, s)

	m.Fire(time.Second, time.Now())
	m.Fire(time.Second, time.Now())
	stop()
	assert.Equal(t, int64(2), runs.Load())
}

func TestScheduler_InvalidInterval(t *testing.T) {
	s := New(zap.NewNop())
	s.Add(Task{Name: "broken", Run: func(context.Context, time.Time) {}})
	require.Error(t, s.Run(context.Background()))
}
