package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"mediafetch/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := logger.ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}

		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesJSON(t *testing.T) {
	defaultLog := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLog) })

	var buf bytes.Buffer

	log, err := logger.New(&logger.Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	log.Info("dropped")
	log.Warn("kept", slog.String("package", "test"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}

	if rec["msg"] != "kept" || rec["package"] != "test" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewNilOptions(t *testing.T) {
	if _, err := logger.New(nil); err == nil {
		t.Errorf("expected error for nil options")
	}
}
