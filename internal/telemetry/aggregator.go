// Package telemetry keeps diagnostic throughput counters for the outbound
// audio stream. Nothing here is on the send path's critical section.
package telemetry

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWindow matches the stats interval of the reference client.
const DefaultWindow = 5 * time.Second

// Snapshot is one window's worth of counters.
type Snapshot struct {
	WindowMessages uint64
	WindowBytes    uint64
	BytesPerSecond float64
	Elapsed        time.Duration
	TotalMessages  uint64
	TotalBytes     uint64
	DroppedFrames  uint64
}

// Aggregator accumulates bytes and message counts between flushes.
type Aggregator struct {
	window time.Duration

	windowBytes    atomic.Uint64
	windowMessages atomic.Uint64
	totalMessages  atomic.Uint64
	totalBytes     atomic.Uint64
	dropped        atomic.Uint64

	mu        sync.Mutex
	lastFlush time.Time
	last      Snapshot
	// ticker is created on the first Start and released by Stop.
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	metrics *Metrics
	now     func() time.Time

	// OnSnapshot is invoked after every flush.
	OnSnapshot func(Snapshot)
}

// NewAggregator creates an aggregator. metrics may be nil.
func NewAggregator(window time.Duration, metrics *Metrics) *Aggregator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Aggregator{
		window:    window,
		metrics:   metrics,
		now:       time.Now,
		lastFlush: time.Now(),
	}
}

// Record counts one transmitted message of n bytes.
func (a *Aggregator) Record(n int) {
	if a == nil || n < 0 {
		return
	}
	a.windowBytes.Add(uint64(n))
	a.windowMessages.Add(1)
	a.totalMessages.Add(1)
	a.totalBytes.Add(uint64(n))
	a.metrics.observeSend(n)
}

// RecordDrop counts a frame that could not be sent.
func (a *Aggregator) RecordDrop() {
	if a == nil {
		return
	}
	a.dropped.Add(1)
	a.metrics.observeDrop()
}

// TotalMessages is the lifetime message counter.
func (a *Aggregator) TotalMessages() uint64 {
	if a == nil {
		return 0
	}
	return a.totalMessages.Load()
}

// TotalBytes is the lifetime byte counter.
func (a *Aggregator) TotalBytes() uint64 {
	if a == nil {
		return 0
	}
	return a.totalBytes.Load()
}

// Dropped is the number of frames dropped since the last Reset.
func (a *Aggregator) Dropped() uint64 {
	if a == nil {
		return 0
	}
	return a.dropped.Load()
}

// Start begins periodic flushing. Calling it again while running is a no-op.
func (a *Aggregator) Start() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ticker != nil {
		return
	}
	a.lastFlush = a.now()
	a.ticker = time.NewTicker(a.window)
	a.stopCh = make(chan struct{})
	a.wg.Add(1)
	go a.run(a.ticker, a.stopCh)
}

// Stop cancels the periodic flush. Safe to call when not started.
func (a *Aggregator) Stop() {
	if a == nil {
		return
	}
	a.mu.Lock()
	ticker, stopCh := a.ticker, a.stopCh
	a.ticker, a.stopCh = nil, nil
	a.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stopCh)
	a.wg.Wait()
}

// Running reports whether the periodic flush is active.
func (a *Aggregator) Running() bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ticker != nil
}

func (a *Aggregator) run(ticker *time.Ticker, stopCh <-chan struct{}) {
	defer a.wg.Done()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			a.Flush(a.now())
		}
	}
}

// Flush closes the current window: computes throughput, resets the window
// counters and keeps the lifetime ones.
func (a *Aggregator) Flush(now time.Time) Snapshot {
	a.mu.Lock()
	elapsed := now.Sub(a.lastFlush)
	a.lastFlush = now

	snap := Snapshot{
		WindowMessages: a.windowMessages.Swap(0),
		WindowBytes:    a.windowBytes.Swap(0),
		Elapsed:        elapsed,
		TotalMessages:  a.totalMessages.Load(),
		TotalBytes:     a.totalBytes.Load(),
		DroppedFrames:  a.dropped.Load(),
	}
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		seconds = 1
	}
	snap.BytesPerSecond = float64(snap.WindowBytes) / seconds
	a.last = snap
	fn := a.OnSnapshot
	a.mu.Unlock()

	a.metrics.observeThroughput(snap.BytesPerSecond)
	log.Printf("telemetry: last %.0fs: %d messages, %.2f KB/s | total: %d messages, %.2f KB",
		elapsed.Seconds(), snap.WindowMessages, snap.BytesPerSecond/1024,
		snap.TotalMessages, float64(snap.TotalBytes)/1024)

	if fn != nil {
		fn(snap)
	}
	return snap
}

// Last returns the most recent flushed snapshot.
func (a *Aggregator) Last() Snapshot {
	if a == nil {
		return Snapshot{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Reset zeroes every counter, including lifetime totals.
func (a *Aggregator) Reset() {
	if a == nil {
		return
	}
	a.windowBytes.Store(0)
	a.windowMessages.Store(0)
	a.totalMessages.Store(0)
	a.totalBytes.Store(0)
	a.dropped.Store(0)

	a.mu.Lock()
	a.lastFlush = a.now()
	a.last = Snapshot{}
	a.mu.Unlock()
}
