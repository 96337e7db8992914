// Package log provides the process-wide zerolog logger and the
// component/entity child-logger helpers every scheduling-core component
// tags its output with.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance.
	Logger zerolog.Logger
)

// Level represents a log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	// Sensible default before Init is called by cmd/orbit, so package
	// tests and early-boot code never log to a zero-value logger.
	Init(Config{Level: InfoLevel})
}

// WithComponent creates a child logger tagged with the owning component
// (actor, actions, deploy, tracker, repository, health, cluster...).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRunSpecID creates a child logger with a runSpecId field.
func WithRunSpecID(id string) zerolog.Logger {
	return Logger.With().Str("run_spec_id", id).Logger()
}

// WithInstanceID creates a child logger with an instanceId field.
func WithInstanceID(id string) zerolog.Logger {
	return Logger.With().Str("instance_id", id).Logger()
}

// WithPlanID creates a child logger with a deployment planId field.
func WithPlanID(id string) zerolog.Logger {
	return Logger.With().Str("plan_id", id).Logger()
}

func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
