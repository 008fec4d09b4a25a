package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	log, err := New(&Config{
		LogFile:     logFile,
		MaxSize:     1,
		MaxAge:      1,
		MaxBackups:  1,
		Development: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Info("dispatcher booted")
	_ = log.Sync()

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "dispatcher booted") {
		t.Errorf("log file missing entry: %s", content)
	}
}

func TestContextHelpers(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	log, err := New(&Config{LogFile: logFile, Development: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.WithTransaction("PX123").Info("submitted")
	log.WithCycle().Info("cycle began")
	log.WithComponent("intake").Info("loaded")
	_ = log.Sync()

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	for _, want := range []string{"PX123", "cycle_id", "intake"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("log file missing %q", want)
		}
	}
}

func TestNewDefaultsWhenConfigNil(t *testing.T) {
	log, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil) error = %v", err)
	}
	if log.config.LogFile != DefaultConfig().LogFile {
		t.Errorf("expected default log file, got %s", log.config.LogFile)
	}
}
