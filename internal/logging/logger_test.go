package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bmschain-logger/internal/config"
)

func TestNewLoggerConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("Skipped frame")
	_ = logger.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered: %s", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "Skipped frame") {
		t.Fatalf("missing warning: %s", out)
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bms.log")
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "bogus", Filename: path, MaxSize: 1}, &buf)
	logger.Info("Wrote CSV")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"Wrote CSV"`) {
		t.Fatalf("unexpected log file: %s", data)
	}
}
