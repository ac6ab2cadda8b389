package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geotagger/internal/config"
	"geotagger/internal/logging"
	"geotagger/internal/services"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("hello")
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "geotagger.log")); err != nil {
		t.Fatalf("expected geotagger.log to exist: %v", err)
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without source", logging.String(logging.FieldComponent, "scanner"), logging.Int("photos", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no source information in info logs, got %q", text)
	}
	if !strings.Contains(text, "scanner: message without source") {
		t.Fatalf("expected component prefix, got %q", text)
	}
	if !strings.Contains(text, "photos=3") {
		t.Fatalf("expected attribute rendering, got %q", text)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with source")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected source information in debug logs, got %q", content)
	}
}

func TestJSONLoggerWritesStructuredRecords(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("structured", logging.String("reason", "has spaces"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, fragment := range []string{`"ts":`, `"level":"info"`, `"msg":"structured"`, `"reason":"has spaces"`} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %s in %q", fragment, text)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithStage(services.WithJobID(context.Background(), "job-1"), "match")
	logging.WithContext(ctx, logger).Info("stage started")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "job_id=job-1") || !strings.Contains(text, "stage=match") {
		t.Fatalf("expected context fields, got %q", text)
	}
}

func TestRunLogTeesToFile(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{basePath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	runLogPath := filepath.Join(dir, "run", "run_log.txt")
	runLog, err := logging.OpenRunLog(runLogPath, base)
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	runLog.Logger().Info("scan complete", logging.Int("photos", 2))
	if err := runLog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := runLog.Close(); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}

	for _, path := range []string{basePath, runLogPath} {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !strings.Contains(string(content), "scan complete photos=2") {
			t.Fatalf("expected record in %s, got %q", path, content)
		}
	}
}

func TestRunLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_log.txt")
	for _, msg := range []string{"first", "second"} {
		runLog, err := logging.OpenRunLog(path, nil)
		if err != nil {
			t.Fatalf("OpenRunLog: %v", err)
		}
		runLog.Logger().Info(msg)
		_ = runLog.Close()
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), content)
	}
	if !strings.HasSuffix(lines[0], "first") || !strings.HasSuffix(lines[1], "second") {
		t.Fatalf("unexpected order: %q", lines)
	}
}
