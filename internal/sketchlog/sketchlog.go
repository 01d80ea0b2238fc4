// Package sketchlog provides the default zap-backed Notifier, grounded on
// the teacher's log/log.go (a package-level zap.Logger behind a
// sync.Once init), trimmed of the teacher's OpenTelemetry Resource
// plumbing: this module has no service-resource concept to attach, only a
// library call to narrate.
package sketchlog

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envLogLevel = "SKETCHSEARCH_LOG_LEVEL"

var (
	globalLogger     *zap.Logger
	globalLoggerInit sync.Once
)

// Get returns the package-level logger, initializing it from
// SKETCHSEARCH_LOG_LEVEL on first use (teacher idiom: lazily built, not
// eagerly constructed at package init).
func Get() *zap.Logger {
	globalLoggerInit.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(os.Getenv(envLogLevel))); err != nil {
			level.SetLevel(zapcore.InfoLevel)
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.EncoderConfig.TimeKey = "" // keep gather/search logs compact
		logger, err := cfg.Build()
		if err != nil {
			logger = zap.NewNop()
		}
		globalLogger = logger
	})
	return globalLogger
}

// Notifier is the default sketchsearch.Notifier implementation: Notify logs
// at info level, Errorf logs at error level and returns a formatted error
// for the caller to propagate (the Go analogue of the reference
// implementation's notify()/error() sinks, which the spec's external
// interfaces section names explicitly).
type Notifier struct {
	logger *zap.Logger
}

// New returns a Notifier backed by the package-level zap logger.
func New() *Notifier {
	return &Notifier{logger: Get()}
}

func (n *Notifier) Notify(format string, args ...any) {
	n.logger.Sugar().Infof(format, args...)
}

func (n *Notifier) Errorf(format string, args ...any) error {
	n.logger.Sugar().Errorf(format, args...)
	return fmt.Errorf(format, args...)
}
