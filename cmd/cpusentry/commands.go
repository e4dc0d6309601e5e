package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/cpusentry/internal/config"
	"github.com/loykin/cpusentry/internal/evidence"
	"github.com/loykin/cpusentry/internal/history"
	"github.com/loykin/cpusentry/internal/history/factory"
	"github.com/loykin/cpusentry/internal/logger"
	"github.com/loykin/cpusentry/internal/metrics"
	"github.com/loykin/cpusentry/internal/monitor"
	"github.com/loykin/cpusentry/internal/sampler"
	"github.com/loykin/cpusentry/internal/server"
)

var version = "dev"

func buildRoot() *cobra.Command {
	startFlags := &StartFlags{}
	validateFlags := &ValidateFlags{}

	root := &cobra.Command{
		Use:   "cpusentry",
		Short: "Background agent that captures evidence of sustained high CPU usage",
		Long: `Cpusentry samples CPU usage of a configured set of processes and, when an
instance sustains high usage across a monitoring window (judged by a
configurable percentile), writes an evidence artifact with the full window
data.

Examples:
  cpusentry start --config cpusentry.toml
  cpusentry validate --config cpusentry.toml`,
	}

	root.AddCommand(
		createStartCommand(startFlags),
		createValidateCommand(validateFlags),
		createVersionCommand(),
	)
	return root
}

func createStartCommand(flags *StartFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the monitoring agent until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "cpusentry.toml", "path to TOML config file")
	cmd.Flags().BoolVar(&flags.NoWatch, "no-watch", false, "disable config hot reload")
	return cmd
}

func createValidateCommand(flags *ValidateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config file and report every violation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(flags.ConfigPath); err != nil {
				return fmt.Errorf("config %s invalid:\n%w", flags.ConfigPath, err)
			}
			cmd.Printf("config %s is valid\n", flags.ConfigPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "cpusentry.toml", "path to TOML config file")
	return cmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("cpusentry", version)
		},
	}
}

func runStart(flags StartFlags) error {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}

	log, logCloser, err := logger.Setup(logger.Config{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Console:    cfg.Log.Console,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	dispatchers := []monitor.Dispatcher{evidence.New(cfg.EvidenceDir, log)}
	if cfg.History.Enabled {
		sink, err := factory.NewSink(cfg.History)
		if err != nil {
			// History is a best-effort index; monitoring runs without it.
			log.Warn("alert history disabled", "error", err)
		} else {
			dispatchers = append(dispatchers, history.NewDispatcher(sink, log))
			if c, ok := sink.(io.Closer); ok {
				defer func() { _ = c.Close() }()
			}
		}
	}

	mon := monitor.New(cfg, sampler.PS{}, log, dispatchers...)

	if cfg.Server.Enabled {
		srv := server.NewServer(cfg.Server.Listen, cfg.Server.BasePath, mon)
		defer func() { _ = srv.Close() }()
		log.Info("status server listening", "addr", cfg.Server.Listen)
	}

	if !flags.NoWatch {
		if err := config.Watch(flags.ConfigPath, log, func(candidate *config.Config) {
			if err := mon.Apply(candidate); err != nil {
				log.Warn("config reload rejected", "error", err)
				return
			}
			log.Info("config reloaded", "path", flags.ConfigPath)
		}); err != nil {
			log.Warn("config watch unavailable, hot reload disabled", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("monitor stopped")
	return nil
}
