package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Capture.Sink != SinkFile {
		t.Errorf("expected Sink=file, got %s", cfg.Capture.Sink)
	}
	if cfg.Capture.LogDir != "logs" {
		t.Errorf("expected LogDir=logs, got %s", cfg.Capture.LogDir)
	}
	if !cfg.Browser.Headless {
		t.Error("expected Headless=true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected Level=info, got %s", cfg.Logging.Level)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("WEBTRACE_SINK", "")
	t.Setenv("WEBTRACE_LOG_DIR", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "webtrace.yaml")

	cfg := DefaultConfig()
	cfg.Capture.Sink = SinkConsole
	cfg.Browser.NavigationTimeoutMs = 5000

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Capture.Sink != SinkConsole {
		t.Errorf("expected Sink=console, got %s", loaded.Capture.Sink)
	}
	if loaded.Browser.NavigationTimeoutMs != 5000 {
		t.Errorf("expected NavigationTimeoutMs=5000, got %d", loaded.Browser.NavigationTimeoutMs)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("WEBTRACE_SINK", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Capture.Sink != SinkFile {
		t.Errorf("expected default sink, got %s", cfg.Capture.Sink)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	os.Setenv("WEBTRACE_SINK", "log")
	os.Setenv("WEBTRACE_LOG_DIR", "/tmp/capture-logs")
	os.Setenv("WEBTRACE_HEADLESS", "false")
	defer func() {
		os.Unsetenv("WEBTRACE_SINK")
		os.Unsetenv("WEBTRACE_LOG_DIR")
		os.Unsetenv("WEBTRACE_HEADLESS")
	}()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Capture.Sink != SinkLog {
		t.Errorf("expected Sink=log, got %s", cfg.Capture.Sink)
	}
	if cfg.Capture.LogDir != "/tmp/capture-logs" {
		t.Errorf("expected env log dir, got %s", cfg.Capture.LogDir)
	}
	if cfg.Browser.Headless {
		t.Error("expected Headless=false from env")
	}
}

func TestLoad_RejectsUnknownSink(t *testing.T) {
	t.Setenv("WEBTRACE_SINK", "carrier-pigeon")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for unknown sink")
	}
}
