package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: " WARN ", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "loud", want: zapcore.InfoLevel, wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseLevel(%q) err=%v wantErr=%v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseLevel(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error")
	}
	if l := MustNew(Config{Level: "loud"}); l == nil {
		t.Fatalf("MustNew returned nil")
	}
}

// TestNew_JSONToFile verifies production loggers write JSON lines with the
// expected keys and honor the level.
func TestNew_JSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log.json")
	l, err := New(Config{Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("hidden")
	l.Info("fetched page", zap.String("kind", "case"))
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal(b, &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", b, err)
	}
	if line["message"] != "fetched page" || line["kind"] != "case" || line["level"] != "info" {
		t.Fatalf("unexpected line: %#v", line)
	}
}
