// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "cnvix", "logs", "cnvix.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
// Console output goes to stderr so that JSON results on stdout stay clean.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(writer).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level names a supported log level.
func ValidLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// WithDate adds a trading date to the logger context.
func WithDate(logger zerolog.Logger, date time.Time) zerolog.Logger {
	return logger.With().Str("date", date.Format("2006-01-02")).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogPreprocess logs the outcome of input filtering.
func LogPreprocess(logger zerolog.Logger, first, last time.Time, input, skipped, unresolvable, expired, kept, days int) {
	logger.Info().
		Str("event", "preprocess").
		Str("first", first.Format("2006-01-02")).
		Str("last", last.Format("2006-01-02")).
		Int("input", input).
		Int("skipped", skipped).
		Int("unresolvable", unresolvable).
		Int("expired", expired).
		Int("kept", kept).
		Int("days", days).
		Msg("Quotes preprocessed")
}

// LogUnusableMaturity logs a maturity excluded from a day's candidates.
func LogUnusableMaturity(logger zerolog.Logger, expiry time.Time, err error) {
	logger.Debug().
		Str("event", "unusable_maturity").
		Str("expiry", expiry.Format("2006-01-02")).
		Err(err).
		Msg("Maturity excluded")
}

// LogSkippedDay logs a trading day that produced no index value.
func LogSkippedDay(logger zerolog.Logger, date time.Time, reason string, usable int) {
	logger.Debug().
		Str("event", "skipped_day").
		Str("date", date.Format("2006-01-02")).
		Str("reason", reason).
		Int("usable_maturities", usable).
		Msg("Day skipped")
}

// LogIndexPoint logs a computed index value.
func LogIndexPoint(logger zerolog.Logger, date time.Time, cnvix float64, nearDays, nextDays int) {
	logger.Debug().
		Str("event", "index_point").
		Str("date", date.Format("2006-01-02")).
		Float64("cnvix", cnvix).
		Int("near_days", nearDays).
		Int("next_days", nextDays).
		Msg("Index computed")
}

// LogRunSummary logs the totals of an engine run.
func LogRunSummary(logger zerolog.Logger, days, points, skipped, unusable, workers int, tasks uint64, duration time.Duration) {
	logger.Info().
		Str("event", "run_summary").
		Int("days", days).
		Int("points", points).
		Int("skipped_days", skipped).
		Int("unusable_maturities", unusable).
		Int("workers", workers).
		Uint64("tasks", tasks).
		Dur("duration", duration).
		Msg("Index run completed")
}
