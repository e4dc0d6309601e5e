package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/cpusentry/internal/monitor"
)

func testEvent(at time.Time) Event {
	return Event{
		OccurredAt:      at,
		Pattern:         "silverbullet",
		PID:             42,
		Command:         "/opt/silverbullet --daemon",
		Percentile:      10,
		PercentileValue: 97,
		Threshold:       95,
		WindowSeconds:   300,
		Readings:        10,
	}
}

func TestSQLSinkSQLite(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "alerts.db")
	sink, err := NewSQLSinkFromDSN(dsn)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	if err := sink.Send(ctx, testEvent(time.Now())); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := sink.Send(ctx, testEvent(time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("send second: %v", err)
	}

	var count int
	if err := sink.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_history WHERE pattern = ?`, "silverbullet").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("rows = %d, want 2", count)
	}

	var value, threshold float64
	var pid int
	if err := sink.db.QueryRowContext(ctx, `SELECT pid, percentile_value, threshold FROM alert_history LIMIT 1`).Scan(&pid, &value, &threshold); err != nil {
		t.Fatalf("select: %v", err)
	}
	if pid != 42 || value != 97 || threshold != 95 {
		t.Fatalf("row = pid=%d value=%v threshold=%v", pid, value, threshold)
	}
}

func TestSQLSinkBarePathDefaultsToSQLite(t *testing.T) {
	sink, err := NewSQLSinkFromDSN(filepath.Join(t.TempDir(), "bare.db"))
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()
	if sink.dialect != "sqlite" {
		t.Fatalf("dialect = %s, want sqlite", sink.dialect)
	}
}

func TestSQLSinkEmptyDSN(t *testing.T) {
	if _, err := NewSQLSinkFromDSN("  "); err == nil {
		t.Fatalf("empty DSN accepted")
	}
}

func TestEventsFromDecision(t *testing.T) {
	at := time.Now()
	d := monitor.Decision{
		At:         at,
		Window:     5 * time.Minute,
		Threshold:  95,
		Percentile: 10,
		Alerting: []monitor.InstanceStats{
			{Key: monitor.Key{Pattern: "a", PID: 1, Command: "a"}, PercentileValue: 99, Count: 10},
			{Key: monitor.Key{Pattern: "b", PID: 2, Command: "b"}, PercentileValue: 96, Count: 9},
		},
	}
	events := EventsFromDecision(d)
	if len(events) != 2 {
		t.Fatalf("events = %d, want one per alerting instance", len(events))
	}
	if events[0].Pattern != "a" || events[0].PercentileValue != 99 || events[0].WindowSeconds != 300 {
		t.Fatalf("event = %+v", events[0])
	}
	if events[1].Readings != 9 || !events[1].OccurredAt.Equal(at) {
		t.Fatalf("event = %+v", events[1])
	}
}
