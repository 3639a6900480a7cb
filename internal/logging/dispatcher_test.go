package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiltpilot/navsim/internal/dispatcher"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return logEntry
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	dl.Debug("test message", "key1", "value1", "key2", 42)

	logEntry := decode(t, &buf)
	if logEntry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", logEntry["level"])
	}
	if logEntry["message"] != "test message" {
		t.Errorf("expected message 'test message', got %v", logEntry["message"])
	}
	if logEntry["key1"] != "value1" {
		t.Errorf("expected key1='value1', got %v", logEntry["key1"])
	}
	if logEntry["key2"] != float64(42) {
		t.Errorf("expected key2=42, got %v", logEntry["key2"])
	}
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("handler registered", "command", ":STATUS:")

	logEntry := decode(t, &buf)
	if logEntry["level"] != "info" {
		t.Errorf("expected level 'info', got %v", logEntry["level"])
	}
	if logEntry["command"] != ":STATUS:" {
		t.Errorf("expected command=':STATUS:', got %v", logEntry["command"])
	}
}

func TestDispatcherLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("handler failed", "command", ":WAYPOINT:HIT:", "error", errors.New("backend closed"))

	logEntry := decode(t, &buf)
	if logEntry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", logEntry["level"])
	}
	if logEntry["error"] != "backend closed" {
		t.Errorf("expected error='backend closed', got %v", logEntry["error"])
	}
}

func TestDispatcherLogger_KeepsArgumentOrder(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("event dropped", "queue", "status", "size", 1024)

	want := `{"level":"info","queue":"status","size":1024,"message":"event dropped"}` + "\n"
	if buf.String() != want {
		t.Errorf("expected %s, got %s", want, buf.String())
	}
}

func TestDispatcherLogger_BadKeys(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	// a non-string key stands alone, the rest still pairs up
	dl.Info("simple message", "a", 1, 2, "b", "paired")

	logEntry := decode(t, &buf)
	if logEntry["a"] != float64(1) {
		t.Errorf("expected a=1, got %v", logEntry["a"])
	}
	if logEntry[badKey] != float64(2) {
		t.Errorf("expected %s=2, got %v", badKey, logEntry[badKey])
	}
	if logEntry["b"] != "paired" {
		t.Errorf("expected b='paired', got %v", logEntry["b"])
	}
}

func TestDispatcherLogger_DanglingKey(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("dangling", "tick", 3, "orphan")

	logEntry := decode(t, &buf)
	if logEntry[badKey] != "orphan" {
		t.Errorf("expected %s='orphan', got %v", badKey, logEntry[badKey])
	}
}

func TestDispatcherLogger_DebugFilteredAtInfo(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestDispatcherLogger_DurationInMilliseconds(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	dl.Debug("event complete", "duration", 1500*time.Microsecond)

	logEntry := decode(t, &buf)
	if logEntry["duration"] != 1.5 {
		t.Errorf("expected duration=1.5 (ms), got %v", logEntry["duration"])
	}
}
