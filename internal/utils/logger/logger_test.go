package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerReturnsNopBeforeInit(t *testing.T) {
	prev := global
	global = nil
	t.Cleanup(func() { global = prev })

	if Logger() == nil {
		t.Fatal("expected non-nil logger before Init")
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"", "info", "debug", "warn", "error", "DEBUG"} {
		if _, err := ParseLevel(name); err != nil {
			t.Errorf("ParseLevel(%q) returned error: %v", name, err)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSetupWithFile(t *testing.T) {
	prev := global
	t.Cleanup(func() { global = prev })

	logFile := filepath.Join(t.TempDir(), "logs", "rpmkit.log")
	if err := Setup("debug", logFile); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	Logger().Infof("hello %s", "file")
	_ = Logger().Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Fatalf("expected log line in file, got %q", data)
	}
}

func TestSetupClosesPreviousLogFile(t *testing.T) {
	prev, prevFile := global, logFile
	t.Cleanup(func() { global, logFile = prev, prevFile })

	dir := t.TempDir()
	if err := Setup("info", filepath.Join(dir, "first.log")); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	first := logFile
	if first == nil {
		t.Fatal("expected Setup to keep the log file")
	}

	if err := Setup("info", filepath.Join(dir, "second.log")); err != nil {
		t.Fatalf("second Setup failed: %v", err)
	}
	if _, err := first.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected previous log file to be closed, got %v", err)
	}

	if err := Setup("info", ""); err != nil {
		t.Fatalf("Setup without file failed: %v", err)
	}
	if logFile != nil {
		t.Fatal("expected no log file after Setup without a path")
	}
}

func TestReportWriteToDir(t *testing.T) {
	dir := t.TempDir()
	r := NewReport("verify results")
	r.Addf("%s: %s", "a.rpm", "OK")
	r.Addf("%s: %s", "b.rpm", "FAILED")

	path, err := r.WriteToDir(dir)
	if err != nil {
		t.Fatalf("WriteToDir failed: %v", err)
	}
	if filepath.Base(path) != "report-verify_results.txt" {
		t.Fatalf("unexpected report name %q", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if string(data) != "a.rpm: OK\nb.rpm: FAILED\n\n" {
		t.Fatalf("unexpected report content %q", data)
	}
	if len(r.Items()) != 0 {
		t.Fatal("expected report to be cleared after writing")
	}
}
