package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/cpusentry/internal/config"
	"github.com/loykin/cpusentry/internal/metrics"
	"github.com/loykin/cpusentry/internal/sampler"
)

const statusLogEvery = time.Hour

// Dispatcher consumes a window's alert decision. Implementations run on the
// monitor's dispatch goroutine and must be best-effort: a failing dispatcher
// logs and returns, it never affects the next tick.
type Dispatcher interface {
	Dispatch(ctx context.Context, d Decision)
}

// StatusSnapshot is the read-only view published for status consumers. The
// monitor updates it once per tick; readers never touch the live store.
type StatusSnapshot struct {
	At          time.Time       `json:"at"`
	WindowStart time.Time       `json:"window_start"`
	Capacity    int             `json:"window_capacity"`
	Instances   []InstanceStats `json:"instances"`
}

// Monitor drives the whole cycle: on each check-interval tick it samples
// processes, resolves them to instances, records samples, and, once the
// monitoring window has elapsed, evaluates every instance and dispatches the
// decision. All mutable window state is owned by the Run goroutine; reloads
// and status reads cross the boundary through atomics only.
type Monitor struct {
	sampler     sampler.Sampler
	dispatchers []Dispatcher
	log         *slog.Logger

	active  atomic.Pointer[config.Config]
	pending atomic.Pointer[config.Config]
	status  atomic.Pointer[StatusSnapshot]

	st            *store
	lastStatusLog time.Time
	dispatchWG    sync.WaitGroup
}

// New builds a Monitor from a validated configuration. Dispatchers are
// optional; with none, alerting windows are logged and dropped.
func New(cfg *config.Config, s sampler.Sampler, log *slog.Logger, dispatchers ...Dispatcher) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	m := &Monitor{
		sampler:     s,
		dispatchers: dispatchers,
		log:         log,
	}
	m.active.Store(cfg)
	return m
}

// Config returns the active configuration snapshot.
func (m *Monitor) Config() *config.Config { return m.active.Load() }

// Status returns the most recently published tick snapshot. Safe to call from
// any goroutine.
func (m *Monitor) Status() StatusSnapshot {
	if s := m.status.Load(); s != nil {
		return *s
	}
	cfg := m.active.Load()
	return StatusSnapshot{Capacity: cfg.WindowCapacity()}
}

// Validate checks a candidate configuration without touching the active one.
func (m *Monitor) Validate(cfg *config.Config) error { return cfg.Validate() }

// Apply validates a candidate and stages it for installation at the next tick
// boundary, so no tick observes a partially-updated configuration. In-flight
// windows survive: buffers are resized, never discarded, and window_start is
// untouched.
func (m *Monitor) Apply(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.pending.Store(cfg)
	return nil
}

// Run executes the monitoring loop until ctx is cancelled. There is no other
// way out: every error inside a tick is logged and survived.
func (m *Monitor) Run(ctx context.Context) error {
	cfg := m.active.Load()
	now := time.Now()
	m.st = newStore(cfg.WindowCapacity(), now)
	m.lastStatusLog = now

	m.log.Info("monitor starting",
		"patterns", cfg.ProcessNames,
		"threshold", cfg.CPUThreshold,
		"percentile", cfg.Percentile,
		"check_interval", cfg.CheckInterval,
		"monitoring_window", cfg.MonitoringWindow)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.dispatchWG.Wait()
			return ctx.Err()
		case <-ticker.C:
			if interval := m.tick(ctx, time.Now()); interval != cfg.CheckInterval {
				cfg = m.active.Load()
				ticker.Reset(interval)
			}
		}
	}
}

// tick runs one full cycle and returns the check interval the loop should use
// next (it changes only after a reload).
func (m *Monitor) tick(ctx context.Context, now time.Time) time.Duration {
	m.applyPending()
	cfg := m.active.Load()

	metrics.IncTick()
	rows, err := m.sampler.Sample(ctx)
	if err != nil {
		// Transient enumeration failure: zero matches this tick, keep going.
		m.log.Warn("process sampling failed, skipping tick", "error", err)
		metrics.IncSamplingError()
		rows = nil
	}

	m.st.BeginTick(now)
	recorded := resolve(m.st, rows, cfg.ProcessNames)
	m.st.Sweep()
	metrics.AddSamplesRecorded(recorded)
	metrics.SetTrackedInstances(m.st.Len())

	m.publishStatus(now, cfg)

	if m.st.WindowComplete(now, cfg.MonitoringWindow) {
		m.evaluateWindow(ctx, now, cfg)
		m.st.ResetWindow(now)
	}

	if now.Sub(m.lastStatusLog) >= statusLogEvery {
		m.logStatus(now, cfg)
		m.lastStatusLog = now
	}
	return cfg.CheckInterval
}

func (m *Monitor) applyPending() {
	cfg := m.pending.Swap(nil)
	if cfg == nil {
		return
	}
	prev := m.active.Load()
	m.active.Store(cfg)
	if m.st != nil && cfg.WindowCapacity() != prev.WindowCapacity() {
		m.st.Resize(cfg.WindowCapacity())
	}
	m.log.Info("configuration applied",
		"patterns", cfg.ProcessNames,
		"threshold", cfg.CPUThreshold,
		"percentile", cfg.Percentile,
		"check_interval", cfg.CheckInterval,
		"monitoring_window", cfg.MonitoringWindow)
}

func (m *Monitor) evaluateWindow(ctx context.Context, now time.Time, cfg *config.Config) {
	start := time.Now()
	stats := Evaluate(m.st.Snapshot(), cfg.Percentile)
	d, alert, ok := Decide(now, m.st.WindowStart(), cfg.MonitoringWindow, cfg.CPUThreshold, cfg.Percentile, stats)
	metrics.ObserveEvaluationDuration(time.Since(start).Seconds())
	if !ok {
		// Nothing tracked this window; reset silently.
		return
	}
	metrics.IncWindowEvaluated()
	if !alert {
		return
	}
	metrics.IncAlert()
	m.log.Warn("high CPU alert",
		"alerting", len(d.Alerting),
		"threshold", d.Threshold,
		"percentile", d.Percentile,
		"window", d.Window)
	for _, st := range d.Alerting {
		m.log.Warn("sustained high CPU",
			"pattern", st.Key.Pattern,
			"pid", st.Key.PID,
			"percentile_value", st.PercentileValue,
			"current", st.LastCPU,
			"readings", st.Count)
	}

	// Evidence and history writes must not delay the next tick: hand the
	// immutable decision to a short-lived goroutine and move on.
	m.dispatchWG.Add(1)
	go func() {
		defer m.dispatchWG.Done()
		for _, disp := range m.dispatchers {
			disp.Dispatch(ctx, d)
		}
	}()
}

func (m *Monitor) publishStatus(now time.Time, cfg *config.Config) {
	s := &StatusSnapshot{
		At:          now,
		WindowStart: m.st.WindowStart(),
		Capacity:    cfg.WindowCapacity(),
		Instances:   Evaluate(m.st.Snapshot(), cfg.Percentile),
	}
	m.status.Store(s)
}

func (m *Monitor) logStatus(now time.Time, cfg *config.Config) {
	stats := Evaluate(m.st.Snapshot(), cfg.Percentile)
	attrs := []any{
		"tracked", len(stats),
		"window_elapsed", now.Sub(m.st.WindowStart()).Round(time.Second),
	}
	for _, st := range stats {
		attrs = append(attrs, st.Key.String(), st.PercentileValue)
	}
	m.log.Info("monitor status", attrs...)
}
