package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saveenergy/brofiler/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logging.Level
	}{
		{"debug", logging.LevelDebug},
		{"INFO", logging.LevelInfo},
		{"warn", logging.LevelWarn},
		{"warning", logging.LevelWarn},
		{"error", logging.LevelError},
		{"", logging.LevelInfo},
		{"verbose", logging.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := logging.ParseLevel(tt.in); got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := logging.NewWithCore(core).With(logging.Field{Key: "session", Value: "abc"})

	l.Info("cycle complete",
		logging.Field{Key: "cycle", Value: 3},
		logging.Field{Key: "rolling_success", Value: 0.9})
	l.Warn("cycle failed", logging.Field{Key: "error", Value: errors.New("broctl exited 1")})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["session"] != "abc" || ctx["cycle"] != int64(3) {
		t.Fatalf("context = %v", ctx)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("level = %v, want warn", entries[1].Level)
	}
	if got := entries[1].ContextMap()["error"]; got != "broctl exited 1" {
		t.Fatalf("error field = %v", got)
	}
}

func TestSetLevelFiltersDebug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brofiler.log")
	if err := logging.Configure(logging.Options{Level: logging.LevelInfo, Format: "json", File: path}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	l := logging.NewLogger("test")
	l.Debug("hidden")
	l.Info("shown")
	l.SetLevel(logging.LevelDebug)
	l.Debug("now visible")
	logging.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level:\n%s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "now visible") {
		t.Fatalf("missing lines:\n%s", out)
	}
	if !strings.Contains(out, `"logger":"test"`) {
		t.Fatalf("logger name missing:\n%s", out)
	}
}

func TestConfigureRejectsUnknownFormat(t *testing.T) {
	if err := logging.Configure(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
