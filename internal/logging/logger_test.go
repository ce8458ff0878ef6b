package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("probe started", String("path", "/tmp/in.mkv"))
	if !strings.Contains(buf.String(), `"path":"/tmp/in.mkv"`) {
		t.Fatalf("expected structured field in output, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record missing, got %q", out)
	}
}

func TestNewFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "transcode-abc.log")
	for _, msg := range []string{"first run", "second run"} {
		logger, closer, err := NewFileLogger(path, "info")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		logger.Info(msg)
		if err := closer.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "first run") || !strings.Contains(out, "second run") {
		t.Fatalf("expected both records appended, got %q", out)
	}
}

func TestNewFileLoggerEmptyPathDiscards(t *testing.T) {
	logger, closer, err := NewFileLogger("", "info")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closer.Close()
	logger.Info("dropped")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected a discarding logger for an empty path")
	}
}

func TestComponentLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	NewComponentLogger(base, "thumbs").Info("extract complete")
	if !strings.Contains(buf.String(), `"component":"thumbs"`) {
		t.Fatalf("expected component attr, got %q", buf.String())
	}
}
