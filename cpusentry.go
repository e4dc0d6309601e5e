package cpusentry

import (
	"log/slog"
	"net/http"

	"github.com/loykin/cpusentry/internal/config"
	"github.com/loykin/cpusentry/internal/evidence"
	"github.com/loykin/cpusentry/internal/history"
	"github.com/loykin/cpusentry/internal/history/factory"
	"github.com/loykin/cpusentry/internal/monitor"
	"github.com/loykin/cpusentry/internal/sampler"
	"github.com/loykin/cpusentry/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type HistoryConfig = config.HistoryConfig

type Monitor = monitor.Monitor

type Decision = monitor.Decision

type InstanceStats = monitor.InstanceStats

type Dispatcher = monitor.Dispatcher

type Sampler = sampler.Sampler

type HistorySink = history.Sink

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// DefaultConfig returns the default configuration with no monitored patterns.
func DefaultConfig() *Config { return config.Default() }

// New builds a Monitor sampling real OS processes, with the given dispatchers
// consuming alert decisions. Pass NewEvidenceWriter's result to persist
// evidence files, or any custom Dispatcher for embedding.
func New(cfg *Config, log *slog.Logger, dispatchers ...Dispatcher) *Monitor {
	return monitor.New(cfg, sampler.PS{}, log, dispatchers...)
}

// NewWithSampler is New with a caller-supplied sampler, for embedding and
// tests.
func NewWithSampler(cfg *Config, s Sampler, log *slog.Logger, dispatchers ...Dispatcher) *Monitor {
	return monitor.New(cfg, s, log, dispatchers...)
}

// NewEvidenceWriter returns a Dispatcher persisting evidence artifacts under
// dir in the year/month/day/hour layout.
func NewEvidenceWriter(dir string, log *slog.Logger) Dispatcher {
	return evidence.New(dir, log)
}

// NewHistorySink builds an alert history sink from configuration.
func NewHistorySink(cfg HistoryConfig) (HistorySink, error) {
	return factory.NewSink(cfg)
}

// NewHistoryDispatcher adapts a sink into a Dispatcher.
func NewHistoryDispatcher(sink HistorySink, log *slog.Logger) Dispatcher {
	return history.NewDispatcher(sink, log)
}

// NewStatusHandler returns an embeddable read-only HTTP handler exposing the
// monitor's status, config, health and metrics endpoints under basePath.
func NewStatusHandler(m *Monitor, basePath string) http.Handler {
	return server.NewRouter(m, basePath).Handler()
}
