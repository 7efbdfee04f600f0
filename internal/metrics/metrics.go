package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Reconciliation counts callback outcomes. The zero value is ready to use.
type Reconciliation struct {
	Callbacks         Counter
	SignatureFailures Counter
	Captured          Counter
	NotCaptured       Counter
	Settled           Counter
	DuplicateSettles  Counter
	Failures          Counter

	// totalNanos accumulates processing time for the average.
	totalNanos uint64
}

func (r *Reconciliation) Observe(d time.Duration) {
	atomic.AddUint64(&r.totalNanos, uint64(d.Nanoseconds()))
}

type Snapshot struct {
	Callbacks         uint64  `json:"callbacks"`
	SignatureFailures uint64  `json:"signature_failures"`
	Captured          uint64  `json:"captured"`
	NotCaptured       uint64  `json:"not_captured"`
	Settled           uint64  `json:"settled"`
	DuplicateSettles  uint64  `json:"duplicate_settles"`
	Failures          uint64  `json:"failures"`
	AvgProcessingMs   float64 `json:"avg_processing_ms"`
}

func (r *Reconciliation) Snapshot() Snapshot {
	s := Snapshot{
		Callbacks:         r.Callbacks.Load(),
		SignatureFailures: r.SignatureFailures.Load(),
		Captured:          r.Captured.Load(),
		NotCaptured:       r.NotCaptured.Load(),
		Settled:           r.Settled.Load(),
		DuplicateSettles:  r.DuplicateSettles.Load(),
		Failures:          r.Failures.Load(),
	}
	if s.Callbacks > 0 {
		total := time.Duration(atomic.LoadUint64(&r.totalNanos))
		s.AvgProcessingMs = float64(total.Milliseconds()) / float64(s.Callbacks)
	}
	return s
}
