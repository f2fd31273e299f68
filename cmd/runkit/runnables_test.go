package main

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/runkit/config"
	"github.com/kbukum/runkit/runnable"
)

func TestAnalyze(t *testing.T) {
	out, err := runnable.Invoke(context.Background(), demoRunnables()["analyze"], "  Hello   World ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected a map, got %T", out)
	}
	if stats["words"] != 2 || stats["chars"] != 11 || stats["shout"] != "HELLO WORLD!" {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestClean(t *testing.T) {
	clean := demoRunnables()["clean"]

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"single", " A  B ", "a b"},
		{"list", []any{"A  B", "C"}, "[a b c]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runnable.Invoke(context.Background(), clean, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := out
			if list, ok := out.([]any); ok {
				parts := make([]string, len(list))
				for i, v := range list {
					parts[i] = v.(string)
				}
				got = "[" + strings.Join(parts, " ") + "]"
			}
			if got != tt.want {
				t.Errorf("expected %q, got %v", tt.want, got)
			}
		})
	}
}

func TestEcho_Stream(t *testing.T) {
	ctx := context.Background()
	it, err := runnable.Stream(ctx, demoRunnables()["echo"], "Streams ARRIVE word by word")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks, err := runnable.Collect(ctx, it)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 5 || chunks[0] != "streams" || chunks[1] != " arrive" {
		t.Errorf("unexpected chunks %v", chunks)
	}

	out, err := runnable.Invoke(ctx, demoRunnables()["echo"], "Streams ARRIVE")
	if err != nil || out != "streams arrive" {
		t.Errorf("expected concatenated output, got %v, %v", out, err)
	}
}

func TestDemoRunnables_WithRetry(t *testing.T) {
	engine := config.EngineConfig{Retry: config.RetryConfig{Enabled: true}}
	engine.ApplyDefaults()

	for path, r := range demoRunnables() {
		wrapped := engine.Retry.Wrap(r)
		if _, ok := wrapped.(*runnable.Retry); !ok {
			t.Errorf("%s: expected a retry wrapper, got %T", path, wrapped)
		}
	}
}
