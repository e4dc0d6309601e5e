package monitor

import (
	"sort"
	"time"
)

// Decision is the outcome of evaluating one completed monitoring window.
// Alerting holds only the instances whose percentile value exceeded the
// threshold, ordered by descending value (ties broken by identity key);
// Instances carries every tracked instance's statistics so evidence includes
// the non-alerting context too.
type Decision struct {
	At          time.Time     `json:"at"`
	WindowStart time.Time     `json:"window_start"`
	Window      time.Duration `json:"window"`
	Threshold   float64       `json:"threshold"`
	Percentile  int           `json:"percentile"`

	Alerting  []InstanceStats          `json:"alerting"`
	Instances map[string]InstanceStats `json:"instances"`
}

// Decide aggregates per-instance verdicts into the window-level decision.
// An instance is alerting iff its percentile value strictly exceeds the
// threshold; the window alerts iff at least one instance is alerting. With
// zero evaluated instances there is no decision at all: ok is false and the
// window simply resets.
func Decide(at, windowStart time.Time, window time.Duration, threshold float64, percentile int, stats []InstanceStats) (d Decision, alert, ok bool) {
	if len(stats) == 0 {
		return Decision{}, false, false
	}
	d = Decision{
		At:          at,
		WindowStart: windowStart,
		Window:      window,
		Threshold:   threshold,
		Percentile:  percentile,
		Instances:   make(map[string]InstanceStats, len(stats)),
	}
	for _, st := range stats {
		d.Instances[st.Key.String()] = st
		if st.PercentileValue > threshold {
			d.Alerting = append(d.Alerting, st)
		}
	}
	sort.Slice(d.Alerting, func(i, j int) bool {
		a, b := d.Alerting[i], d.Alerting[j]
		if a.PercentileValue != b.PercentileValue {
			return a.PercentileValue > b.PercentileValue
		}
		return a.Key.String() < b.Key.String()
	})
	return d, len(d.Alerting) > 0, true
}
