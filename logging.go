// logging.go - structured logging for the simulator and controller.
//
// Package-level configuration for structured logging, grounded on the
// teacher's SetStructuredLogger/getGlobalLogger design but backed by
// github.com/joeycumines/logiface (the generic logger/builder API) with
// github.com/joeycumines/stumpy as the default JSON backend, rather than a
// bespoke Logger interface.
//
// Usage:
//
//	specsim.SetLogger(stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr))))

package specsim

import (
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type every Controller and Simulator logs
// through: a logiface.Logger bound to stumpy's concrete event type.
type Logger = logiface.Logger[*stumpy.Event]

var globalLogger struct {
	sync.RWMutex
	logger *Logger
}

// SetLogger installs the package-level default logger, used by any
// Controller constructed without an explicit WithLogger option.
func SetLogger(l *Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = l
}

// getGlobalLogger returns the installed default logger, or a disabled
// logger (writes nothing) if none has been set.
func getGlobalLogger() *Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return noopLogger
}

// noopLogger discards everything; it is the default until SetLogger (or
// WithLogger) installs a real one, so Controller construction never nil-
// checks its logger field.
var noopLogger = stumpy.L.New(stumpy.L.WithLevel(logiface.LevelDisabled))

// DefaultLogger is a convenience stderr JSON logger at informational level,
// for embedders that want structured logging without composing their own
// stumpy options.
func DefaultLogger() *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(logiface.LevelInformational),
	)
}
