package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFlush_ComputesThroughputAndResetsWindow(t *testing.T) {
	a := NewAggregator(5*time.Second, nil)
	start := time.Unix(1000, 0)
	a.lastFlush = start

	a.Record(1000)
	a.Record(3000)

	snap := a.Flush(start.Add(2 * time.Second))
	if snap.WindowMessages != 2 {
		t.Errorf("window messages = %d, want 2", snap.WindowMessages)
	}
	if snap.WindowBytes != 4000 {
		t.Errorf("window bytes = %d, want 4000", snap.WindowBytes)
	}
	if snap.BytesPerSecond != 2000 {
		t.Errorf("throughput = %v, want 2000", snap.BytesPerSecond)
	}

	a.Record(500)
	snap = a.Flush(start.Add(3 * time.Second))
	if snap.WindowMessages != 1 || snap.WindowBytes != 500 {
		t.Errorf("window counters not reset: %+v", snap)
	}
	if snap.TotalMessages != 3 || snap.TotalBytes != 4500 {
		t.Errorf("lifetime counters lost: %+v", snap)
	}
	if a.Last() != snap {
		t.Errorf("Last() = %+v, want %+v", a.Last(), snap)
	}
}

func TestFlush_ZeroElapsed(t *testing.T) {
	a := NewAggregator(time.Second, nil)
	now := time.Unix(1000, 0)
	a.lastFlush = now
	a.Record(100)

	snap := a.Flush(now)
	if snap.BytesPerSecond != 100 {
		t.Errorf("zero elapsed should divide by one second, got %v", snap.BytesPerSecond)
	}
}

func TestReset(t *testing.T) {
	a := NewAggregator(time.Second, nil)
	a.Record(10)
	a.RecordDrop()
	a.Reset()

	if a.TotalMessages() != 0 {
		t.Errorf("total messages = %d after reset", a.TotalMessages())
	}
	snap := a.Flush(time.Now())
	if snap.TotalBytes != 0 || snap.DroppedFrames != 0 {
		t.Errorf("counters survived reset: %+v", snap)
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	a := NewAggregator(10*time.Millisecond, nil)
	flushed := make(chan Snapshot, 10)
	a.OnSnapshot = func(s Snapshot) {
		select {
		case flushed <- s:
		default:
		}
	}

	a.Stop() // not started
	a.Start()
	a.Start()
	if !a.Running() {
		t.Fatal("aggregator should be running")
	}
	a.Record(64)

	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("expected a periodic flush")
	}

	a.Stop()
	a.Stop()
	if a.Running() {
		t.Error("aggregator should be stopped")
	}
}

func TestNilAggregator(t *testing.T) {
	var a *Aggregator
	a.Record(10)
	a.RecordDrop()
	a.Start()
	a.Stop()
	a.Reset()
	if a.TotalMessages() != 0 || a.Running() {
		t.Error("nil aggregator should be inert")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	a := NewAggregator(time.Second, m)

	a.Record(100)
	a.Record(50)
	a.RecordDrop()
	a.lastFlush = time.Unix(0, 0)
	a.Flush(time.Unix(1, 0))

	if got := testutil.ToFloat64(m.SentBytes); got != 150 {
		t.Errorf("sent bytes = %v, want 150", got)
	}
	if got := testutil.ToFloat64(m.SentMessages); got != 2 {
		t.Errorf("sent messages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DroppedFrames); got != 1 {
		t.Errorf("dropped frames = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Throughput); got != 150 {
		t.Errorf("throughput = %v, want 150", got)
	}

	if NewMetrics(nil) != nil {
		t.Error("nil registerer should yield nil metrics")
	}
}
