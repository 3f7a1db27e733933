// Package logfile builds the process logger: slog with a rotating JSON log
// file, or a plain text handler on stderr when no file is configured.
package logfile

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mboersen/telwerk/internal/config"
)

// Rotation defaults applied when the config leaves them zero.
const (
	defaultMaxSizeMB  = 20
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// Setup builds a logger from cfg. With a log file configured the logger
// writes JSON lines through a size-rotated file; otherwise it writes text to
// stderr. The returned close function flushes and closes the file writer and
// is a no-op for stderr logging.
//
// The caller decides whether to install the logger as the slog default.
func Setup(cfg config.LogConfig) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: level(cfg.Level)}

	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() error { return nil }
	}

	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: orDefault(cfg.MaxBackups, defaultMaxBackups),
		MaxAge:     orDefault(cfg.MaxAgeDays, defaultMaxAgeDays),
		Compress:   true,
	}
	l := slog.New(slog.NewJSONHandler(w, opts))

	l.Info("logging started",
		slog.Time("start", time.Now()),
		slog.String("GOOS", runtime.GOOS),
		slog.String("GOARCH", runtime.GOARCH),
		slog.Int("NumCPUs", runtime.NumCPU()),
	)
	return l, w.Close
}

func level(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
