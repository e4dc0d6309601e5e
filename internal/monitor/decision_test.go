package monitor

import (
	"testing"
	"time"
)

func TestDecideORAggregation(t *testing.T) {
	now := time.Now()
	stats := []InstanceStats{
		{Key: Key{Pattern: "a", PID: 1, Command: "a"}, PercentileValue: 96},
		{Key: Key{Pattern: "b", PID: 2, Command: "b"}, PercentileValue: 50},
	}
	d, alert, ok := Decide(now, now.Add(-time.Minute), time.Minute, 95, 50, stats)
	if !ok || !alert {
		t.Fatalf("ok=%v alert=%v, want window-level alert from single offender", ok, alert)
	}
	if len(d.Alerting) != 1 || d.Alerting[0].Key.Pattern != "a" {
		t.Fatalf("alerting = %v, want only instance a", d.Alerting)
	}
	if len(d.Instances) != 2 {
		t.Fatalf("full statistic map has %d entries, want 2 (context included)", len(d.Instances))
	}
}

func TestDecideThresholdIsStrict(t *testing.T) {
	now := time.Now()
	stats := []InstanceStats{
		{Key: Key{Pattern: "a", PID: 1, Command: "a"}, PercentileValue: 95},
	}
	_, alert, ok := Decide(now, now, time.Minute, 95, 50, stats)
	if !ok {
		t.Fatalf("expected a decision")
	}
	if alert {
		t.Fatalf("value equal to threshold must not alert")
	}
}

func TestDecideNoInstancesNoDecision(t *testing.T) {
	now := time.Now()
	_, alert, ok := Decide(now, now, time.Minute, 95, 50, nil)
	if ok || alert {
		t.Fatalf("zero tracked instances must yield no decision")
	}
}

func TestDecideAlertingOrder(t *testing.T) {
	now := time.Now()
	stats := []InstanceStats{
		{Key: Key{Pattern: "b", PID: 2, Command: "b"}, PercentileValue: 97},
		{Key: Key{Pattern: "c", PID: 3, Command: "c"}, PercentileValue: 99},
		{Key: Key{Pattern: "a", PID: 1, Command: "a"}, PercentileValue: 97},
	}
	d, alert, _ := Decide(now, now, time.Minute, 90, 50, stats)
	if !alert || len(d.Alerting) != 3 {
		t.Fatalf("alerting = %v", d.Alerting)
	}
	// descending by value, ties broken by identity key
	if d.Alerting[0].Key.Pattern != "c" || d.Alerting[1].Key.Pattern != "a" || d.Alerting[2].Key.Pattern != "b" {
		t.Fatalf("order = [%s %s %s], want [c a b]",
			d.Alerting[0].Key.Pattern, d.Alerting[1].Key.Pattern, d.Alerting[2].Key.Pattern)
	}
}
