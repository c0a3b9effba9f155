package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		level     Level
		wantError bool
		wantWarn  bool
		wantInfo  bool
		wantDebug bool
	}{
		{LevelError, true, false, false, false},
		{LevelWarn, true, true, false, false},
		{LevelInfo, true, true, true, false},
		{LevelDebug, true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)

			logger.Errorf("error message")
			logger.Warnf("warn message")
			logger.Infof("info message")
			logger.Debugf("debug message")

			output := buf.String()
			if got := strings.Contains(output, "ERROR "); got != tt.wantError {
				t.Errorf("Error logged: got %v, want %v", got, tt.wantError)
			}
			if got := strings.Contains(output, "WARN "); got != tt.wantWarn {
				t.Errorf("Warn logged: got %v, want %v", got, tt.wantWarn)
			}
			if got := strings.Contains(output, "INFO "); got != tt.wantInfo {
				t.Errorf("Info logged: got %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(output, "DEBUG "); got != tt.wantDebug {
				t.Errorf("Debug logged: got %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestDefaultLoggerFatalfCallsHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelError)

	var got string
	logger.SetFatalHandler(func(msg string) { got = msg })
	logger.Fatalf("boom %d", 1)

	if !strings.Contains(buf.String(), "FATAL boom 1") {
		t.Errorf("fatal message not logged, got: %s", buf.String())
	}
	if got != "boom 1" {
		t.Errorf("fatal handler received %q, want %q", got, "boom 1")
	}
}

func TestDiscardLoggerDoesNotPanic(t *testing.T) {
	Discard.Errorf("error %d", 1)
	Discard.Warnf("warn %d", 1)
	Discard.Infof("info %d", 1)
	Discard.Debugf("debug %d", 1)
	Discard.Fatalf("fatal %d", 1)
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelError, "ERROR"},
		{LevelWarn, "WARN"},
		{LevelInfo, "INFO"},
		{LevelDebug, "DEBUG"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestNamespaceConstants(t *testing.T) {
	namespaces := []string{NSPool, NSTree, NSRecovery, NSFacade}
	for _, ns := range namespaces {
		if !strings.HasPrefix(ns, "[") || !strings.Contains(ns, "]") {
			t.Errorf("namespace %q should be in [name] format", ns)
		}
	}
}

func TestIsNilAndOrDefault(t *testing.T) {
	var l Logger
	if !IsNil(l) {
		t.Error("nil interface should be detected as nil")
	}

	var typedNil *DefaultLogger
	l = typedNil
	if !IsNil(l) {
		t.Error("typed-nil pointer should be detected as nil")
	}

	if OrDefault(nil) == nil {
		t.Error("OrDefault(nil) should never return nil")
	}

	real := NewDefaultLogger(LevelInfo)
	if OrDefault(real) != real {
		t.Error("OrDefault should pass through a valid logger unchanged")
	}
}
