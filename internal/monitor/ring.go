package monitor

import "time"

// Sample is one CPU observation. CPU may exceed 100 on multi-core systems
// reporting aggregate usage; it is never clamped.
type Sample struct {
	At  time.Time `json:"at"`
	CPU float64   `json:"cpu"`
}

// ring is a fixed-capacity circular sample buffer. Once full, the oldest
// entry is overwritten, so memory stays bounded regardless of how long the
// instance lives or how often it is sampled.
type ring struct {
	buf   []Sample
	start int
	count int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]Sample, capacity)}
}

func (r *ring) Push(s Sample) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = s
		r.count++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) Len() int { return r.count }

func (r *ring) Cap() int { return len(r.buf) }

// Values returns the buffered samples in chronological order as a fresh slice.
func (r *ring) Values() []Sample {
	out := make([]Sample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *ring) Reset() {
	r.start = 0
	r.count = 0
}

// Resize changes the buffer capacity in place. Growing keeps every sample;
// shrinking keeps only the most recent entries up to the new capacity.
func (r *ring) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(r.buf) {
		return
	}
	vals := r.Values()
	if len(vals) > capacity {
		vals = vals[len(vals)-capacity:]
	}
	r.buf = make([]Sample, capacity)
	r.start = 0
	r.count = copy(r.buf, vals)
}
