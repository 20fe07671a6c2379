package schedule

import (
	"sync"
	"time"
)

// Manual is a TickerFunc source whose ticks are fired by hand. All tickers
// with the same interval share one unbuffered channel, so Fire blocks until
// a task loop receives the tick.
type Manual struct {
	mu    sync.Mutex
	chans map[time.Duration]chan time.Time
}

// NewManual returns a Manual with no tickers.
func NewManual() *Manual {
	return &Manual{chans: make(map[time.Duration]chan time.Time)}
}

func (m *Manual) channel(d time.Duration) chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chans[d]
	if !ok {
		ch = make(chan time.Time)
		m.chans[d] = ch
	}
	return ch
}

// NewTicker implements TickerFunc.
func (m *Manual) NewTicker(d time.Duration) Ticker {
	return manualTicker{ch: m.channel(d)}
}

// Fire delivers one tick to the task running at interval d.
func (m *Manual) Fire(d time.Duration, now time.Time) {
	m.channel(d) <- now
}

type manualTicker struct {
	ch chan time.Time
}

func (t manualTicker) C() <-chan time.Time { return t.ch }
func (t manualTicker) Stop()               {}
