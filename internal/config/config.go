// Package config centralizes the small set of environment-variable
// overrides kstate honors. Production code paths never call os.Getenv
// directly; they go through here instead, so every tunable has one
// place it's read from.
package config

import (
	"os"
	"strconv"

	"github.com/kynesim/kstate/internal/logging"
)

// LogLevel returns the logging level named by KSTATE_LOG_LEVEL
// ("debug", "info", "warn", "error"), or ok=false if unset/unrecognized.
func LogLevel() (logging.LogLevel, bool) {
	switch os.Getenv("KSTATE_LOG_LEVEL") {
	case "debug":
		return logging.LevelDebug, true
	case "info":
		return logging.LevelInfo, true
	case "warn":
		return logging.LevelWarn, true
	case "error":
		return logging.LevelError, true
	default:
		return 0, false
	}
}

// PageSizeOverride returns a test-only override for the page size used
// for newly created regions, from KSTATE_TEST_PAGE_SIZE. It exists so
// boundary-condition tests can exercise non-default page sizes without
// depending on the host's actual page size. ok is false unless the
// variable is set to a valid positive integer.
func PageSizeOverride() (int, bool) {
	v := os.Getenv("KSTATE_TEST_PAGE_SIZE")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
