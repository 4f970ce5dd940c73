package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewTextByDefault(t *testing.T) {
	t.Setenv("GO_ENV", "")

	var buf bytes.Buffer
	l := New(&buf, "info")
	l.Debug("hidden")
	l.Info("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Debug message written at info level")
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "k=v") {
		t.Errorf("Unexpected text output: %s", out)
	}
}

func TestNewJSONInProduction(t *testing.T) {
	t.Setenv("GO_ENV", "production")

	var buf bytes.Buffer
	New(&buf, "debug").Debug("hello")

	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("Expected JSON output, got %s", buf.String())
	}
}

func TestComponent(t *testing.T) {
	t.Setenv("GO_ENV", "")

	var buf bytes.Buffer
	Component(New(&buf, "info"), "selection").Info("started")

	if !strings.Contains(buf.String(), "component=selection") {
		t.Errorf("Expected component attribute, got %s", buf.String())
	}

	if Component(nil, "x") == nil {
		t.Error("Component with nil base should fall back to the global logger")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled")
	}
}
