// Package ringbuf provides a fixed-capacity ring buffer of model.Sample that
// overwrites its oldest entry once full. It backs the per-ticker rolling
// history of the indicator engine, so memory per ticker is bounded by the
// configured window.
//
// A Ring is not safe for concurrent use; the indicator engine serializes
// access per ticker.
package ringbuf

import "github.com/1308774130/StockSentinel/internal/model"

// Ring is a fixed-capacity circular buffer of samples.
type Ring struct {
	buf   []model.Sample
	head  int // next write position
	count int // number of valid entries, <= len(buf)

	// Evictions counter, summed by the indicator engine for metrics.
	evicted uint64
}

// New creates a ring holding at most capacity samples. Minimum capacity is 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]model.Sample, capacity)}
}

// Push appends a sample. When the ring is full the oldest sample is evicted
// and returned with evicted=true.
func (r *Ring) Push(s model.Sample) (old model.Sample, evicted bool) {
	if r.count == len(r.buf) {
		old = r.buf[r.head]
		evicted = true
		r.evicted++
	} else {
		r.count++
	}
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	return old, evicted
}

// Values returns a copy of the buffered samples, oldest first.
func (r *Ring) Values() []model.Sample {
	out := make([]model.Sample, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Last returns up to n most recent samples, oldest first.
func (r *Ring) Last(n int) []model.Sample {
	all := r.Values()
	if n >= len(all) {
		return all
	}
	if n <= 0 {
		return nil
	}
	return all[len(all)-n:]
}

// Len returns the current number of samples in the ring.
func (r *Ring) Len() int { return r.count }

// Evicted returns the total number of samples overwritten because the ring
// was full.
func (r *Ring) Evicted() uint64 { return r.evicted }
