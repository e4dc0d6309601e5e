package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/cpusentry/internal/metrics"
	"github.com/loykin/cpusentry/internal/monitor"
)

// Filesystem timestamp format shared by partition dirs and artifact names.
const stampFormat = "20060102_150405"

const (
	writeAttempts = 3
	retryBackoff  = 250 * time.Millisecond
)

// Writer persists alert decisions as a structured JSON artifact plus a
// human-readable report, partitioned by capture time into a
// year/month/day/hour directory tree. Timestamped filenames keep rapid
// consecutive alerts from colliding.
type Writer struct {
	dir string
	log *slog.Logger
}

func New(dir string, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{dir: dir, log: log}
}

// artifact is the JSON evidence layout. Keys follow the report fields the
// agent has always emitted so downstream tooling keeps parsing.
type artifact struct {
	Timestamp               string                    `json:"timestamp"`
	CapturedAt              time.Time                 `json:"captured_at"`
	Threshold               float64                   `json:"threshold"`
	Percentile              int                       `json:"percentile"`
	MonitoringWindowSeconds float64                   `json:"monitoring_window_seconds"`
	WindowStart             time.Time                 `json:"window_start"`
	TriggeringInstances     []instanceRecord          `json:"triggering_instances"`
	Instances               map[string]instanceRecord `json:"instances"`
}

type instanceRecord struct {
	Pattern         string    `json:"pattern"`
	PID             int32     `json:"pid"`
	Command         string    `json:"command"`
	PercentileValue float64   `json:"percentile_value"`
	CurrentCPU      float64   `json:"current_cpu"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	Readings        readings  `json:"readings"`
}

type readings struct {
	CPUValues []float64 `json:"cpu_values"`
	MinCPU    float64   `json:"min_cpu"`
	MaxCPU    float64   `json:"max_cpu"`
	AvgCPU    float64   `json:"avg_cpu"`
	Count     int       `json:"readings_count"`
}

// Dispatch implements monitor.Dispatcher. Failures are logged and the
// artifact dropped; in-memory monitoring state is unaffected.
func (w *Writer) Dispatch(ctx context.Context, d monitor.Decision) {
	jsonPath, reportPath, err := w.Write(ctx, d)
	if err != nil {
		w.log.Error("evidence write failed, dropping artifact", "error", err)
		metrics.IncEvidenceFailure()
		return
	}
	w.log.Warn("evidence captured", "data", jsonPath, "report", reportPath)
}

// Write persists both evidence files for a decision, retrying transient
// filesystem failures a bounded number of times.
func (w *Writer) Write(ctx context.Context, d monitor.Decision) (jsonPath, reportPath string, err error) {
	stamp := d.At.Format(stampFormat)
	dir := filepath.Join(w.dir,
		fmt.Sprintf("%04d", d.At.Year()),
		fmt.Sprintf("%02d", int(d.At.Month())),
		fmt.Sprintf("%02d", d.At.Day()),
		fmt.Sprintf("%02d", d.At.Hour()))

	data, err := json.MarshalIndent(buildArtifact(stamp, d), "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal evidence: %w", err)
	}
	report := renderReport(stamp, d)

	jsonPath = filepath.Join(dir, "cpu_data_"+stamp+".json")
	reportPath = filepath.Join(dir, "report_"+stamp+".txt")

	err = withRetry(ctx, func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			return err
		}
		return os.WriteFile(reportPath, []byte(report), 0o644)
	})
	if err != nil {
		return "", "", err
	}
	return jsonPath, reportPath, nil
}

func buildArtifact(stamp string, d monitor.Decision) artifact {
	a := artifact{
		Timestamp:               stamp,
		CapturedAt:              d.At,
		Threshold:               d.Threshold,
		Percentile:              d.Percentile,
		MonitoringWindowSeconds: d.Window.Seconds(),
		WindowStart:             d.WindowStart,
		TriggeringInstances:     make([]instanceRecord, 0, len(d.Alerting)),
		Instances:               make(map[string]instanceRecord, len(d.Instances)),
	}
	for _, st := range d.Alerting {
		a.TriggeringInstances = append(a.TriggeringInstances, toRecord(st))
	}
	for key, st := range d.Instances {
		a.Instances[key] = toRecord(st)
	}
	return a
}

func toRecord(st monitor.InstanceStats) instanceRecord {
	return instanceRecord{
		Pattern:         st.Key.Pattern,
		PID:             st.Key.PID,
		Command:         st.Key.Command,
		PercentileValue: st.PercentileValue,
		CurrentCPU:      st.LastCPU,
		FirstSeen:       st.FirstSeen,
		LastSeen:        st.LastSeen,
		Readings: readings{
			CPUValues: st.CPUValues,
			MinCPU:    st.Min,
			MaxCPU:    st.Max,
			AvgCPU:    st.Mean,
			Count:     st.Count,
		},
	}
}

func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == writeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
	return fmt.Errorf("after %d attempts: %w", writeAttempts, err)
}
