package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/forgefit/forge/internal/config"
)

// New builds the process logger from the log config section. Without a file
// it writes to stdout; with a file it writes to a rotating log, tee'd to stdout
// when cfg.Stdout is set.
func New(cfg config.LogConfig) *slog.Logger {
	return slog.New(NewHandler(cfg, Writer(cfg)))
}

// Writer returns the destination for log output.
func Writer(cfg config.LogConfig) io.Writer {
	if cfg.File == "" {
		return os.Stdout
	}

	name := cfg.File
	if !strings.HasSuffix(name, ".log") {
		name += ".log"
	}
	rotating := &lumberjack.Logger{
		Filename:   name,
		MaxSize:    50, // megabytes
		MaxBackups: 10,
		LocalTime:  false,
		Compress:   true,
	}
	if cfg.Stdout {
		return io.MultiWriter(os.Stdout, rotating)
	}
	return rotating
}

// NewHandler returns a text or JSON handler at the configured level.
func NewHandler(cfg config.LogConfig, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: Level(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Level maps a config level name to a slog level. Unknown names are info.
func Level(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
