// Package log provides structured logging for poseml, backed by zerolog.
//
// Loggers are component-scoped: each pipeline stage (store, sampler, trainer,
// exporter, gate) gets a logger tagged with its component name so training
// runs and per-frame inference faults can be filtered apart.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// Setup configures the process-wide root logger. level is one of
// "debug", "info", "warn", "error"; unknown values fall back to info.
func Setup(level string, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	root = zerolog.New(w).Level(toLevel(level)).With().Timestamp().Logger()
}

// SetOutput replaces the root logger's writer. Tests use this to silence or
// capture log output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	root = root.Output(w)
}

// GetLogger returns a logger tagged with the given component name.
func GetLogger(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str(ComponentKey, component).Logger()
}

func toLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
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
