package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/sweeney/andon-agent/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewBuildsBothFormats(t *testing.T) {
	for _, format := range []string{"text", "json", ""} {
		log := New(config.LoggingConfig{Level: "info", Format: format, Output: "stderr"}, "1.0.0")
		if log == nil || log.Logger == nil {
			t.Fatalf("format %q: expected usable logger", format)
		}
	}
}

func TestWithReturnsChild(t *testing.T) {
	log := Discard()
	child := log.With("component", "delivery")

	if child == nil {
		t.Fatal("expected non-nil child logger")
	}
	if child == log {
		t.Error("expected child logger distinct from parent")
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("expected non-nil default logger")
	}
}

func TestOutputCarriesServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	handler2 := handler.WithAttrs([]slog.Attr{
		slog.String("service", "andon-agent"),
		slog.String("version", "1.0.0"),
	})

	log := &Logger{Logger: slog.New(handler2)}
	log.Info("collector reachable", "addr", "192.168.1.128:5000")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse JSON log line: %v", err)
	}
	if entry["service"] != "andon-agent" {
		t.Errorf("service: got %v", entry["service"])
	}
	if entry["version"] != "1.0.0" {
		t.Errorf("version: got %v", entry["version"])
	}
	if entry["msg"] != "collector reachable" {
		t.Errorf("msg: got %v", entry["msg"])
	}
	if entry["addr"] != "192.168.1.128:5000" {
		t.Errorf("addr: got %v", entry["addr"])
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	log := Discard()
	// Must not panic and must accept the usual call shapes.
	log.Debug("dropped")
	log.Info("dropped", "key", "value")
	log.With("component", "x").Warn("dropped")
}
