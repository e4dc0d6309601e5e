package monitor

import (
	"sort"
	"time"
)

// store owns every tracked instance and the global window clock. It is not
// safe for concurrent use: the monitor loop is its only writer and reader,
// per the single-timeline model. Anything published outside is a copy.
//
// All instances share one window (global synchronization), so a single
// evidence artifact reflects one coherent span of time for every monitored
// process.
type store struct {
	instances   map[Key]*instance
	capacity    int
	windowStart time.Time

	// tick bookkeeping for staleness eviction
	seq      uint64 // increments once per tick
	resetSeq uint64 // seq value at the last window reset
	now      time.Time
}

func newStore(capacity int, now time.Time) *store {
	if capacity < 1 {
		capacity = 1
	}
	return &store{
		instances:   make(map[Key]*instance),
		capacity:    capacity,
		windowStart: now,
	}
}

// BeginTick advances the tick sequence. Observe calls for this tick must
// follow before Sweep.
func (s *store) BeginTick(now time.Time) {
	s.seq++
	s.now = now
}

// Observe appends one sample for the keyed instance, creating it on first
// sight.
func (s *store) Observe(key Key, cpu float64) {
	in, ok := s.instances[key]
	if !ok {
		in = &instance{
			key:       key,
			samples:   newRing(s.capacity),
			firstSeen: s.now,
		}
		s.instances[key] = in
	}
	in.lastSeen = s.now
	in.lastSeenSeq = s.seq
	in.lastCPU = cpu
	in.samples.Push(Sample{At: s.now, CPU: cpu})
}

// Sweep evicts instances absent from the snapshot for more than one check
// interval (the process exited). Buffers are discarded, not archived.
func (s *store) Sweep() {
	for k, in := range s.instances {
		if s.seq-in.lastSeenSeq > 1 {
			delete(s.instances, k)
		}
	}
}

// WindowComplete reports whether the monitoring window has elapsed.
func (s *store) WindowComplete(now time.Time, window time.Duration) bool {
	return now.Sub(s.windowStart) >= window
}

// Snapshot returns an immutable per-instance view of every tracked instance
// holding at least one sample, ordered by identity key for determinism. It
// does not clear state; resetting is a separate explicit step so evaluation
// and reset cannot race incoherently.
func (s *store) Snapshot() []InstanceSamples {
	views := make([]InstanceSamples, 0, len(s.instances))
	for _, in := range s.instances {
		if in.samples.Len() == 0 {
			continue
		}
		views = append(views, InstanceSamples{
			Key:       in.key,
			FirstSeen: in.firstSeen,
			LastSeen:  in.lastSeen,
			LastCPU:   in.lastCPU,
			Samples:   in.samples.Values(),
		})
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Key.String() < views[j].Key.String()
	})
	return views
}

// ResetWindow clears every buffer and opens a new window at now. Instances
// unseen since the prior reset are evicted.
func (s *store) ResetWindow(now time.Time) {
	for k, in := range s.instances {
		if in.lastSeenSeq <= s.resetSeq {
			delete(s.instances, k)
			continue
		}
		in.samples.Reset()
	}
	s.windowStart = now
	s.resetSeq = s.seq
}

// Resize adjusts every instance's buffer capacity after a configuration
// reload changed the window/interval ratio. Samples survive: growing keeps
// all of them, shrinking keeps the newest. In-flight windows are never
// discarded by a reload.
func (s *store) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == s.capacity {
		return
	}
	s.capacity = capacity
	for _, in := range s.instances {
		in.samples.Resize(capacity)
	}
}

func (s *store) Len() int { return len(s.instances) }

func (s *store) WindowStart() time.Time { return s.windowStart }
