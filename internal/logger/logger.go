package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters (lumberjack semantics).
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the agent log destination. The agent runs unattended in
// the background, so the default level is warn; periodic status lines go out
// at info when the operator raises the level.
type Config struct {
	File       string // log file path; empty means stderr only
	Level      string // debug|info|warn|error (default warn)
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // gzip rotated files
	Console    bool   // also echo colorized output to stderr
}

// Setup builds the agent's slog.Logger and installs it as the default.
// The returned closer flushes/closes the rotating file writer.
func Setup(c Config) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	var closer io.Closer
	if c.File != "" {
		w := &lj.Logger{
			Filename:   c.File,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
		closer = w
		handlers = append(handlers, slog.NewTextHandler(w, opts))
	}
	if c.Console || c.File == "" {
		handlers = append(handlers, NewColorTextHandler(os.Stderr, opts))
	}

	var h slog.Handler
	if len(handlers) == 1 {
		h = handlers[0]
	} else {
		h = multiHandler(handlers)
	}
	log := slog.New(h)
	slog.SetDefault(log)
	return log, nopCloserIfNil(closer), nil
}

// ParseLevel maps a config level string onto slog levels; unknown values fall
// back to warn, the background-operation default.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func nopCloserIfNil(c io.Closer) io.Closer {
	if c == nil {
		return nopCloser{}
	}
	return c
}
