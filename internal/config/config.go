package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Defaults match the agent's original deployment profile: a conservative
// sustained-usage check sampled every 30s over a 5 minute window.
const (
	DefaultCPUThreshold     = 95.0
	DefaultCheckInterval    = 30 * time.Second
	DefaultMonitoringWindow = 5 * time.Minute
	DefaultPercentile       = 50
	DefaultEvidenceDir      = "cpu_evidence"
)

// Config is an immutable snapshot of the agent configuration. A reload
// produces a fresh snapshot that is fully validated before it replaces the
// active one; no tick ever observes a partially-updated configuration.
type Config struct {
	ProcessNames     []string      `toml:"process_names" mapstructure:"process_names"`
	CPUThreshold     float64       `toml:"cpu_threshold" mapstructure:"cpu_threshold"`
	CheckInterval    time.Duration `toml:"check_interval" mapstructure:"check_interval"`
	MonitoringWindow time.Duration `toml:"monitoring_window" mapstructure:"monitoring_window"`
	Percentile       int           `toml:"percentile" mapstructure:"percentile"`
	EvidenceDir      string        `toml:"evidence_dir" mapstructure:"evidence_dir"`

	Log     LogConfig     `toml:"log" mapstructure:"log"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
}

type LogConfig struct {
	File       string `toml:"file" mapstructure:"file"`
	Level      string `toml:"level" mapstructure:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
	Console    bool   `toml:"console" mapstructure:"console"`
}

// HistoryConfig selects an optional durable alert index, independent of the
// evidence files. DSN decides the SQL dialect (sqlite path or postgres URL);
// Table applies to ClickHouse only.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Type    string `toml:"type" mapstructure:"type"`
	DSN     string `toml:"dsn" mapstructure:"dsn"`
	Table   string `toml:"table" mapstructure:"table"`
}

// ServerConfig controls the optional read-only status endpoint. Disabled by
// default; the monitoring core carries no mandatory network surface.
type ServerConfig struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Default returns a config populated with defaults and no monitored patterns.
func Default() *Config {
	return &Config{
		CPUThreshold:     DefaultCPUThreshold,
		CheckInterval:    DefaultCheckInterval,
		MonitoringWindow: DefaultMonitoringWindow,
		Percentile:       DefaultPercentile,
		EvidenceDir:      DefaultEvidenceDir,
		Log: LogConfig{
			File:  "cpusentry.log",
			Level: "warn",
		},
		Server: ServerConfig{Listen: "127.0.0.1:9525"},
	}
}

// Load reads a TOML config file and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the whole candidate and reports every violation, not just
// the first, so an operator can fix a config file in one pass.
func (c *Config) Validate() error {
	var errs []error
	if len(c.ProcessNames) == 0 {
		errs = append(errs, errors.New("process_names must list at least one pattern"))
	}
	for i, p := range c.ProcessNames {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("process_names[%d] is blank", i))
		}
	}
	if c.CPUThreshold < 0 || c.CPUThreshold > 100 {
		errs = append(errs, fmt.Errorf("cpu_threshold %.1f outside [0,100]", c.CPUThreshold))
	}
	if c.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("check_interval %v must be positive", c.CheckInterval))
	}
	if c.MonitoringWindow <= 0 {
		errs = append(errs, fmt.Errorf("monitoring_window %v must be positive", c.MonitoringWindow))
	}
	if c.CheckInterval > 0 && c.MonitoringWindow > 0 {
		if c.MonitoringWindow < c.CheckInterval {
			errs = append(errs, fmt.Errorf("monitoring_window %v shorter than check_interval %v", c.MonitoringWindow, c.CheckInterval))
		}
		if c.WindowCapacity() < 1 {
			errs = append(errs, fmt.Errorf("monitoring_window %v / check_interval %v yields no sample capacity", c.MonitoringWindow, c.CheckInterval))
		}
	}
	if c.Percentile < 1 || c.Percentile > 99 {
		errs = append(errs, fmt.Errorf("percentile %d outside [1,99]", c.Percentile))
	}
	if strings.TrimSpace(c.EvidenceDir) == "" {
		errs = append(errs, errors.New("evidence_dir must not be empty"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q not one of debug|info|warn|error", c.Log.Level))
	}
	if c.History.Enabled {
		switch strings.ToLower(c.History.Type) {
		case "", "sql", "clickhouse":
		default:
			errs = append(errs, fmt.Errorf("history.type %q not one of sql|clickhouse", c.History.Type))
		}
		if strings.TrimSpace(c.History.DSN) == "" {
			errs = append(errs, errors.New("history.dsn required when history is enabled"))
		}
	}
	if c.Server.Enabled {
		if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
			errs = append(errs, fmt.Errorf("server.listen %q: %w", c.Server.Listen, err))
		}
	}
	return errors.Join(errs...)
}

// WindowCapacity is the per-instance sample buffer size:
// ceil(monitoring_window / check_interval).
func (c *Config) WindowCapacity() int {
	if c.CheckInterval <= 0 {
		return 0
	}
	return int(math.Ceil(float64(c.MonitoringWindow) / float64(c.CheckInterval)))
}

// Watch installs a file watcher on path and calls apply with each candidate
// that loads and validates cleanly. Invalid candidates are logged and
// discarded; the active configuration stays in force.
func Watch(path string, log *slog.Logger, apply func(*Config)) error {
	if log == nil {
		log = slog.Default()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := Load(path)
		if err != nil {
			log.Warn("config reload rejected, keeping active configuration", "path", path, "error", err)
			return
		}
		apply(cfg)
	})
	v.WatchConfig()
	return nil
}
