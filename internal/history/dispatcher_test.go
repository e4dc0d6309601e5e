package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loykin/cpusentry/internal/monitor"
)

type fakeSink struct {
	events []Event
	err    error
}

func (f *fakeSink) Send(_ context.Context, e Event) error {
	f.events = append(f.events, e)
	return f.err
}

func TestDispatcherSendsOneEventPerAlertingInstance(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.Dispatch(context.Background(), monitor.Decision{
		At:         time.Now(),
		Window:     time.Minute,
		Threshold:  95,
		Percentile: 10,
		Alerting: []monitor.InstanceStats{
			{Key: monitor.Key{Pattern: "a", PID: 1, Command: "a"}, PercentileValue: 98},
			{Key: monitor.Key{Pattern: "b", PID: 2, Command: "b"}, PercentileValue: 97},
		},
	})
	if len(sink.events) != 2 {
		t.Fatalf("events = %d, want 2", len(sink.events))
	}
}

func TestDispatcherSurvivesSinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("down")}
	d := NewDispatcher(sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	// must not panic or abort on error; both sends attempted
	d.Dispatch(context.Background(), monitor.Decision{
		Alerting: []monitor.InstanceStats{
			{Key: monitor.Key{Pattern: "a", PID: 1, Command: "a"}},
			{Key: monitor.Key{Pattern: "b", PID: 2, Command: "b"}},
		},
	})
	if len(sink.events) != 2 {
		t.Fatalf("failed send aborted dispatch: %d", len(sink.events))
	}
}
