package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ekisa-team/edgeport/internal/env"
	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

type options struct {
	writer    io.Writer
	level     slog.Leveler
	logFile   string
	logToFile bool
}

// Option configures the logger.
type Option func(*options)

// WithLogToFile enables or disables teeing log output into a rotating file.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the log file path used when logging to file is enabled.
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFile = path
	}
}

// WithWriter replaces the console writer (stderr by default).
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithLevel overrides the environment's default level.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) {
		o.level = level
	}
}

// New builds a tint-backed slog.Logger for the given environment.
// Development logs at debug level with colors; production logs at info
// level without colors.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := &options{
		writer: os.Stderr,
		level:  slog.LevelDebug,
	}
	if environment.IsProduction() {
		o.level = slog.LevelInfo
	}

	for _, opt := range opts {
		opt(o)
	}

	w := o.writer
	noColor := environment.IsProduction()

	if o.logToFile && o.logFile != "" {
		if err := os.MkdirAll(filepath.Dir(o.logFile), 0o755); err == nil {
			w = io.MultiWriter(w, &lumberjack.Logger{
				Filename:   o.logFile,
				MaxSize:    defaultMaxSizeMB,
				MaxBackups: defaultMaxBackups,
				MaxAge:     defaultMaxAgeDays,
			})
			// Color escapes would end up in the file
			noColor = true
		}
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      o.level,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	}))
}
