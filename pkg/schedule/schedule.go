// Package schedule runs named periodic tasks until their context is
// cancelled.
//
// Each task owns its ticker, so tasks never wait on one another. Tickers
// come from a TickerFunc; tests substitute Manual to advance time by hand
// instead of sleeping.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealTicker is a TickerFunc backed by time.NewTicker.
func RealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Task is a periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	// Immediate runs the task once before the first tick.
	Immediate bool
	// Overlap runs every tick in its own goroutine, so a slow run does not
	// delay or absorb later ticks. Runs are never cancelled by later ticks.
	Overlap bool
	Run     func(ctx context.Context, now time.Time)
}

// Scheduler owns a set of tasks.
type Scheduler struct {
	lg        *zap.Logger
	newTicker TickerFunc
	now       func() time.Time

	mu    sync.Mutex
	tasks []Task
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTicker replaces the ticker source.
func WithTicker(f TickerFunc) Option {
	return func(s *Scheduler) { s.newTicker = f }
}

// WithClock replaces the clock used for Immediate runs.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates an empty Scheduler.
func New(lg *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		lg:        lg,
		newTicker: RealTicker,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add registers a task. Tasks added after Run has started are ignored.
func (s *Scheduler) Add(t Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
}

// Run starts every task and blocks until ctx is cancelled and all in-flight
// runs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	tasks := make([]Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	for _, t := range tasks {
		if t.Interval <= 0 {
			return errors.Errorf("task %q: interval must be positive", t.Name)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			s.loop(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	tk := s.newTicker(t.Interval)
	defer tk.Stop()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	run := func(now time.Time) {
		if !t.Overlap {
			s.runOnce(ctx, t, now)
			return
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			s.runOnce(ctx, t, now)
		}()
	}

	s.lg.Debug("Task started", zap.String("task", t.Name), zap.Duration("interval", t.Interval))
	if t.Immediate {
		run(s.now())
	}
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tk.C():
			run(now)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task, now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			s.lg.Error("Task panicked",
				zap.String("task", t.Name),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
		}
	}()
	t.Run(ctx, now)
}
