package history

import (
	"context"
	"time"

	"github.com/loykin/cpusentry/internal/monitor"
)

// Event is one alerting instance from one evaluated window, flattened for
// export to analytics/statistics systems.
type Event struct {
	OccurredAt      time.Time `json:"occurred_at"`
	Pattern         string    `json:"pattern"`
	PID             int32     `json:"pid"`
	Command         string    `json:"command"`
	Percentile      int       `json:"percentile"`
	PercentileValue float64   `json:"percentile_value"`
	Threshold       float64   `json:"threshold"`
	WindowSeconds   float64   `json:"window_seconds"`
	Readings        int       `json:"readings"`
}

// Sink is a destination for alert history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// EventsFromDecision flattens a window decision into one event per alerting
// instance.
func EventsFromDecision(d monitor.Decision) []Event {
	events := make([]Event, 0, len(d.Alerting))
	for _, st := range d.Alerting {
		events = append(events, Event{
			OccurredAt:      d.At,
			Pattern:         st.Key.Pattern,
			PID:             st.Key.PID,
			Command:         st.Key.Command,
			Percentile:      d.Percentile,
			PercentileValue: st.PercentileValue,
			Threshold:       d.Threshold,
			WindowSeconds:   d.Window.Seconds(),
			Readings:        st.Count,
		})
	}
	return events
}
