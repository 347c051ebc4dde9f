package cachedconfig

import (
	"sync"

	"github.com/rs/zerolog"
)

var (
	// loggerMu protects Logger from concurrent access in tests.
	loggerMu sync.RWMutex

	// Logger is the package-level logger used by stores and sources
	// constructed without an explicit logger. Uses a no-op logger by
	// default to avoid logging until explicitly configured.
	Logger = zerolog.Nop()
)

// SetLogger sets the package-level logger. Call this during application
// initialization to enable logging for stores that were not given their own
// logger. The logger is automatically tagged with component: cachedconfig.
//
// Example:
//
//	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
//	cachedconfig.SetLogger(&logger)
func SetLogger(l *zerolog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	Logger = l.With().Str("component", "cachedconfig").Logger()
}

// packageLogger returns the current package logger.
func packageLogger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return Logger
}

// resolveLogger picks the store logger: the caller's, or the package one.
func resolveLogger(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return packageLogger()
	}
	return l.With().Str("component", "cachedconfig").Logger()
}
