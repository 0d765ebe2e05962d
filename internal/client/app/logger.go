package app

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iudanet/fitsync/internal/client/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger creates the process logger. With a log file configured, output
// goes to a size-rotated file instead of fallback.
func NewLogger(cfg config.LogConfig, fallback io.Writer) (*slog.Logger, io.Closer) {
	var (
		out    io.Writer = fallback
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		out, closer = rotating, rotating
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
