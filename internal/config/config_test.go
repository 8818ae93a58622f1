package config

import (
	"os"
	"testing"

	"github.com/kynesim/kstate/internal/logging"
)

func TestLogLevelUnsetReturnsFalse(t *testing.T) {
	os.Unsetenv("KSTATE_LOG_LEVEL")
	if _, ok := LogLevel(); ok {
		t.Error("expected ok=false when KSTATE_LOG_LEVEL is unset")
	}
}

func TestLogLevelRecognizesEachName(t *testing.T) {
	cases := map[string]logging.LogLevel{
		"debug": logging.LevelDebug,
		"info":  logging.LevelInfo,
		"warn":  logging.LevelWarn,
		"error": logging.LevelError,
	}
	for name, want := range cases {
		os.Setenv("KSTATE_LOG_LEVEL", name)
		got, ok := LogLevel()
		if !ok || got != want {
			t.Errorf("LogLevel() for %q = (%v, %v), want (%v, true)", name, got, ok, want)
		}
	}
	os.Unsetenv("KSTATE_LOG_LEVEL")
}

func TestLogLevelRejectsUnrecognizedValue(t *testing.T) {
	os.Setenv("KSTATE_LOG_LEVEL", "verbose")
	defer os.Unsetenv("KSTATE_LOG_LEVEL")

	if _, ok := LogLevel(); ok {
		t.Error("expected ok=false for an unrecognized level name")
	}
}

func TestPageSizeOverrideUnsetReturnsFalse(t *testing.T) {
	os.Unsetenv("KSTATE_TEST_PAGE_SIZE")
	if _, ok := PageSizeOverride(); ok {
		t.Error("expected ok=false when KSTATE_TEST_PAGE_SIZE is unset")
	}
}

func TestPageSizeOverrideParsesPositiveInt(t *testing.T) {
	os.Setenv("KSTATE_TEST_PAGE_SIZE", "256")
	defer os.Unsetenv("KSTATE_TEST_PAGE_SIZE")

	n, ok := PageSizeOverride()
	if !ok || n != 256 {
		t.Errorf("PageSizeOverride() = (%d, %v), want (256, true)", n, ok)
	}
}

func TestPageSizeOverrideRejectsNonPositive(t *testing.T) {
	for _, v := range []string{"0", "-1", "not-a-number"} {
		os.Setenv("KSTATE_TEST_PAGE_SIZE", v)
		if _, ok := PageSizeOverride(); ok {
			t.Errorf("PageSizeOverride() with KSTATE_TEST_PAGE_SIZE=%q should be rejected", v)
		}
	}
	os.Unsetenv("KSTATE_TEST_PAGE_SIZE")
}
