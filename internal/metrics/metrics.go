package metrics

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cpusentry",
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Number of sampling ticks executed.",
		},
	)
	samplingErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cpusentry",
			Subsystem: "monitor",
			Name:      "sampling_errors_total",
			Help:      "Number of ticks where process enumeration failed.",
		},
	)
	samplesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cpusentry",
			Subsystem: "monitor",
			Name:      "samples_recorded_total",
			Help:      "Number of CPU samples recorded across all instances.",
		},
	)
	trackedInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cpusentry",
			Subsystem: "monitor",
			Name:      "tracked_instances",
			Help:      "Current number of tracked process instances.",
		},
	)
	windowsEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cpusentry",
			Subsystem: "monitor",
			Name:      "windows_evaluated_total",
			Help:      "Number of completed monitoring windows evaluated.",
		},
	)
	alerts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cpusentry",
			Subsystem: "monitor",
			Name:      "alerts_total",
			Help:      "Number of windows whose decision was an alert.",
		},
	)
	evidenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cpusentry",
			Subsystem: "monitor",
			Name:      "evidence_write_failures_total",
			Help:      "Number of evidence artifacts dropped after retries.",
		},
	)
	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cpusentry",
			Subsystem: "monitor",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time spent evaluating a completed window.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		ticks, samplingErrors, samplesRecorded, trackedInstances,
		windowsEvaluated, alerts, evidenceFailures, evaluationDuration,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

func IncTick() { ticks.Inc() }

func IncSamplingError() { samplingErrors.Inc() }

func AddSamplesRecorded(n int) { samplesRecorded.Add(float64(n)) }

func SetTrackedInstances(n int) { trackedInstances.Set(float64(n)) }

func IncWindowEvaluated() { windowsEvaluated.Inc() }

func IncAlert() { alerts.Inc() }

func IncEvidenceFailure() { evidenceFailures.Inc() }

func ObserveEvaluationDuration(s float64) { evaluationDuration.Observe(s) }
