package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: "json"}, buf, "runkit")
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "invalid-level")
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("expected invalid level to fall back to info")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected info message to be written")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	l := NewFromEnv("env-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestWithRun_AddsRunFields(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "debug").WithRun("run-1", "run-0", "upper", "chain")
	l.Info("run finished")

	line := decodeLine(t, &buf)
	want := map[string]string{
		FieldRunID:       "run-1",
		FieldParentRunID: "run-0",
		FieldRunnable:    "upper",
		FieldRunKind:     "chain",
		FieldService:     "runkit",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("field %s = %v, want %q", k, line[k], v)
		}
	}
}

func TestWithRun_OmitsEmpty(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "info").WithRun("run-1", "", "root", "").Info("x")
	line := decodeLine(t, &buf)
	if _, ok := line[FieldParentRunID]; ok {
		t.Error("expected no parent_run_id for a root run")
	}
	if _, ok := line[FieldRunKind]; ok {
		t.Error("expected no run_kind when empty")
	}
}

func TestWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").WithComponent("engine").WithFields(map[string]interface{}{"key": "value"})
	l.Warn("careful", Fields(FieldAttempt, 2))

	line := decodeLine(t, &buf)
	if line[FieldComponent] != "engine" {
		t.Errorf("expected component engine, got %v", line[FieldComponent])
	}
	if line["key"] != "value" {
		t.Errorf("expected key=value, got %v", line["key"])
	}
	if line[FieldAttempt] != float64(2) {
		t.Errorf("expected attempt=2, got %v", line[FieldAttempt])
	}
	if line["level"] != "warn" {
		t.Errorf("expected level warn, got %v", line["level"])
	}
}

func TestWithContext_SpanIDs(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info")

	if got := l.WithContext(context.Background()); got != l {
		t.Error("expected logger unchanged without an active span")
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	l.WithContext(ctx).Info("traced")

	line := decodeLine(t, &buf)
	if line[FieldTraceID] != sc.TraceID().String() {
		t.Errorf("expected trace id %s, got %v", sc.TraceID(), line[FieldTraceID])
	}
	if line[FieldSpanID] != sc.SpanID().String() {
		t.Errorf("expected span id %s, got %v", sc.SpanID(), line[FieldSpanID])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "info").WithError(fmt.Errorf("boom")).Error("failed")
	line := decodeLine(t, &buf)
	if line["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", line["error"])
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("nothing")
	l.WithRun("a", "b", "c", "d").Info("still nothing")
}

func TestInit(t *testing.T) {
	Init(&Config{Level: "info", Format: "console", Output: "stdout"})
	if GetGlobalLogger() == nil {
		t.Fatal("expected global logger to be set after Init")
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	globalLogger.Store(nil)
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
}

func TestSetGlobalLogger(t *testing.T) {
	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	Init(&Config{Level: "debug", Format: "console", Output: "stdout"})
	// These should not panic
	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output 'stdout', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console"}, false},
		{"valid pretty", Config{Level: "warn", Format: "pretty"}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := NewDefault("custom-component")
	Register("my-component", l)

	if Get("my-component") != l {
		t.Error("expected Get to return the registered logger")
	}
	if Get("unregistered-component") == nil {
		t.Fatal("expected non-nil logger for unregistered component")
	}
}

func TestRegisterDefaults(t *testing.T) {
	Init(&Config{Level: "info", Format: "json", Output: "stdout"})
	RegisterDefaults("engine", "callbacks", "serve")

	for _, name := range []string{"engine", "callbacks", "serve"} {
		if Get(name) == nil {
			t.Errorf("expected non-nil logger for %q", name)
		}
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name     string
		input    []interface{}
		expected map[string]interface{}
	}{
		{"key-value pairs", []interface{}{"op", "invoke", "id", 42}, map[string]interface{}{"op": "invoke", "id": 42}},
		{"odd number of args", []interface{}{"op", "invoke", "trailing"}, map[string]interface{}{"op": "invoke"}},
		{"empty", []interface{}{}, map[string]interface{}{}},
		{"non-string key skipped", []interface{}{123, "value", "key", "val"}, map[string]interface{}{"key": "val"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Fields(tc.input...)
			if len(result) != len(tc.expected) {
				t.Errorf("expected %d fields, got %d", len(tc.expected), len(result))
			}
			for k, v := range tc.expected {
				if result[k] != v {
					t.Errorf("Fields[%q] = %v, expected %v", k, result[k], v)
				}
			}
		})
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	fields := ErrorFields("invoke", fmt.Errorf("something broke"))
	if fields[FieldOperation] != "invoke" || fields[FieldError] != "something broke" {
		t.Errorf("unexpected error fields %v", fields)
	}

	d := DurationFields("stream", 150*time.Millisecond)
	if d[FieldDuration] != int64(150) {
		t.Errorf("expected duration 150, got %v", d[FieldDuration])
	}

	merged := MergeWithDuration(MergeWithError(nil, fmt.Errorf("x")), 200*time.Millisecond)
	if merged[FieldError] != "x" || merged[FieldDuration] != int64(200) {
		t.Errorf("unexpected merged fields %v", merged)
	}
}
