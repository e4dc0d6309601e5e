package history

import (
	"context"
	"log/slog"

	"github.com/loykin/cpusentry/internal/monitor"
)

// Dispatcher adapts a Sink to the monitor's dispatch boundary. Send failures
// are logged and dropped; history is a best-effort index, never a reason to
// stall the monitoring loop.
type Dispatcher struct {
	sink Sink
	log  *slog.Logger
}

func NewDispatcher(sink Sink, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{sink: sink, log: log}
}

func (d *Dispatcher) Dispatch(ctx context.Context, dec monitor.Decision) {
	for _, e := range EventsFromDecision(dec) {
		if err := d.sink.Send(ctx, e); err != nil {
			d.log.Error("alert history write failed",
				"pattern", e.Pattern, "pid", e.PID, "error", err)
		}
	}
}
