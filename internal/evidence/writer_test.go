package evidence

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/cpusentry/internal/monitor"
)

func testDecision(at time.Time) monitor.Decision {
	hog := monitor.InstanceStats{
		Key:             monitor.Key{Pattern: "silverbullet", PID: 42, Command: "/opt/silverbullet --daemon"},
		PercentileValue: 97,
		LastCPU:         98.2,
		Min:             96,
		Max:             99,
		Mean:            97.3,
		Count:           6,
		CPUValues:       []float64{96, 97, 97, 98, 99, 97},
	}
	calm := monitor.InstanceStats{
		Key:             monitor.Key{Pattern: "1234daemon", PID: 7, Command: "/usr/bin/1234daemon"},
		PercentileValue: 12,
		LastCPU:         3,
		Count:           6,
		CPUValues:       []float64{1, 2, 3, 12, 5, 3},
	}
	return monitor.Decision{
		At:          at,
		WindowStart: at.Add(-5 * time.Minute),
		Window:      5 * time.Minute,
		Threshold:   95,
		Percentile:  10,
		Alerting:    []monitor.InstanceStats{hog},
		Instances: map[string]monitor.InstanceStats{
			hog.Key.String():  hog,
			calm.Key.String(): calm,
		},
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWritePartitionsByCaptureTime(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 8, 30, 14, 7, 9, 0, time.UTC)
	w := New(dir, quiet())

	jsonPath, reportPath, err := w.Write(context.Background(), testDecision(at))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	wantDir := filepath.Join(dir, "2026", "08", "30", "14")
	if filepath.Dir(jsonPath) != wantDir || filepath.Dir(reportPath) != wantDir {
		t.Fatalf("partition dirs %q / %q, want %q", filepath.Dir(jsonPath), filepath.Dir(reportPath), wantDir)
	}
	if filepath.Base(jsonPath) != "cpu_data_20260830_140709.json" {
		t.Fatalf("json name = %s", filepath.Base(jsonPath))
	}
	if filepath.Base(reportPath) != "report_20260830_140709.txt" {
		t.Fatalf("report name = %s", filepath.Base(reportPath))
	}
}

func TestWriteArtifactContent(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w := New(dir, quiet())
	jsonPath, reportPath, err := w.Write(context.Background(), testDecision(at))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		t.Fatalf("artifact not valid JSON: %v", err)
	}
	if a.Threshold != 95 || a.Percentile != 10 || a.MonitoringWindowSeconds != 300 {
		t.Fatalf("artifact metadata = %+v", a)
	}
	if len(a.TriggeringInstances) != 1 || a.TriggeringInstances[0].PID != 42 {
		t.Fatalf("triggering = %+v", a.TriggeringInstances)
	}
	if len(a.Instances) != 2 {
		t.Fatalf("full instance map = %d entries, want 2", len(a.Instances))
	}
	tr := a.TriggeringInstances[0]
	if tr.Readings.Count != 6 || len(tr.Readings.CPUValues) != 6 || tr.Readings.MaxCPU != 99 {
		t.Fatalf("readings = %+v", tr.Readings)
	}

	report, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	text := string(report)
	for _, want := range []string{
		"CPU Usage Alert Report",
		"Triggering Instances:",
		"SILVERBULLET (pid 42)",
		"All Instance Statistics:",
		"All CPU Readings:",
		"Reading 6:",
		"Threshold: 95.0%",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}
}

func TestDispatchRapidAlertsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, quiet())
	d1 := testDecision(time.Date(2026, 5, 1, 10, 0, 1, 0, time.UTC))
	d2 := testDecision(time.Date(2026, 5, 1, 10, 0, 2, 0, time.UTC))
	p1, _, err := w.Write(context.Background(), d1)
	if err != nil {
		t.Fatalf("write 1: %v", err)
	}
	p2, _, err := w.Write(context.Background(), d2)
	if err != nil {
		t.Fatalf("write 2: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("consecutive alerts collided on %s", p1)
	}
}

func TestWriteFailureReturnsError(t *testing.T) {
	// Parent is a file, so MkdirAll fails on every attempt.
	base := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(base, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	w := New(base, quiet())
	if _, _, err := w.Write(context.Background(), testDecision(time.Now())); err == nil {
		t.Fatalf("expected write failure")
	}
}
