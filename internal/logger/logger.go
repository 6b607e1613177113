package logger

import (
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters, same defaults the teacher applied per
// managed-process log file, now applied to the bridge's own log files.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where the bridge writes its own structured logs.
// FilePath, when set, receives every log record in addition to stderr.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      slog.Level
	Color      bool // colorize the stderr handler (ignored for the file sink)
}

// New builds the bridge's root slog.Logger. It always writes to stderr;
// when cfg.FilePath is set, records are duplicated to a rotating file via
// lumberjack so a deployment can keep bridge logs on disk without an
// external log collector attached to stderr.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var consoleHandler slog.Handler
	if cfg.Color {
		consoleHandler = NewColorTextHandler(os.Stderr, opts)
	} else {
		consoleHandler = slog.NewTextHandler(os.Stderr, opts)
	}

	if cfg.FilePath == "" {
		return slog.New(consoleHandler)
	}

	fileWriter := rotatingWriter(cfg)
	fileHandler := slog.NewJSONHandler(fileWriter, opts)
	return slog.New(multiHandler{consoleHandler, fileHandler})
}

func rotatingWriter(cfg Config) io.Writer {
	return &lj.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   cfg.Compress,
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
