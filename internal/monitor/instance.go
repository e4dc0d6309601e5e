package monitor

import (
	"fmt"
	"time"
)

// Key identifies one tracked occurrence of a monitored process. Two snapshot
// rows with the same pid but different command lines are different instances
// (pid reuse); two rows with the same command line but different pids are also
// different instances. Instances are never merged across pid changes.
type Key struct {
	Pattern string `json:"pattern"`
	PID     int32  `json:"pid"`
	Command string `json:"command"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Pattern, k.PID, k.Command)
}

// instance is the per-process tracking state. It is owned exclusively by the
// store; everything handed outward is a copy.
type instance struct {
	key         Key
	samples     *ring
	firstSeen   time.Time
	lastSeen    time.Time
	lastSeenSeq uint64
	lastCPU     float64
}

// InstanceSamples is an immutable view of one instance's accumulated window,
// produced by the store for evaluation and status reporting.
type InstanceSamples struct {
	Key       Key
	FirstSeen time.Time
	LastSeen  time.Time
	LastCPU   float64
	Samples   []Sample
}

// InstanceStats is the evaluator's output for one instance over a window.
type InstanceStats struct {
	Key             Key       `json:"key"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	LastCPU         float64   `json:"last_cpu"`
	PercentileValue float64   `json:"percentile_value"`
	Min             float64   `json:"min_cpu"`
	Max             float64   `json:"max_cpu"`
	Mean            float64   `json:"avg_cpu"`
	Count           int       `json:"readings_count"`
	CPUValues       []float64 `json:"cpu_values"`
}
