// Package logging provides the upstream pool manager's internal logging,
// keyed by subsystem the way the teacher's internal/util/logger package
// keys loggers by subsystem name.
//
// It is a thin wrapper over the standard library's log/slog: no vendored
// logging library, no abstraction interface, consistent with the house
// convention of using slog directly for library-internal logging.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	loggers = map[string]*slog.Logger{}
	level   = levelFromEnv()
)

// Logger returns the logger for subsystem, creating and caching it on
// first use. Repeated calls with the same subsystem return the same
// instance.
func Logger(subsystem string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[subsystem]; ok {
		return l
	}

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	l := slog.New(h).With("subsystem", subsystem)
	loggers[subsystem] = l
	return l
}

// levelFromEnv reads UPSTREAM_LOG_LEVEL (debug|info|warn|error), defaulting
// to warn so a library stays quiet unless the embedding process asks for
// more detail.
func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("UPSTREAM_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
