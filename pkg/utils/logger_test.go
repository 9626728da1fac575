package utils

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(true) returned nil logger")
		}
		_ = logger.Sync()
	})

	t.Run("production mode returns production logger", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(false) returned nil logger")
		}
		_ = logger.Sync()
	})
}

func TestNewLogger_levels(t *testing.T) {
	for _, tc := range []struct {
		debug     bool
		wantDebug bool
	}{
		{debug: true, wantDebug: true},
		{debug: false, wantDebug: false},
	} {
		logger, err := NewLogger(tc.debug)
		if err != nil {
			t.Fatalf("NewLogger(%v) error: %v", tc.debug, err)
		}
		core := logger.Core()
		if got := core.Enabled(zap.DebugLevel); got != tc.wantDebug {
			t.Errorf("NewLogger(%v): debug enabled = %v, want %v", tc.debug, got, tc.wantDebug)
		}
		if !core.Enabled(zap.InfoLevel) {
			t.Errorf("NewLogger(%v): info should be enabled", tc.debug)
		}
	}
}

func TestQuietLogger(t *testing.T) {
	t.Run("debug keeps the logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatal(err)
		}
		quiet := QuietLogger(logger, true)
		if quiet != logger {
			t.Error("QuietLogger(debug) should return the same logger")
		}
		if !quiet.Core().Enabled(zap.DebugLevel) {
			t.Error("debug should stay enabled")
		}
	})

	t.Run("production raises to warn", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatal(err)
		}
		quiet := QuietLogger(logger, false)
		core := quiet.Core()
		if core.Enabled(zap.InfoLevel) {
			t.Error("info should be dropped")
		}
		if !core.Enabled(zap.WarnLevel) || !core.Enabled(zap.ErrorLevel) {
			t.Error("warn and error should stay enabled")
		}
		if !logger.Core().Enabled(zap.InfoLevel) {
			t.Error("the original logger should keep info")
		}
	})
}
