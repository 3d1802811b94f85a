package config

import (
	"os"
	"testing"
)

func chdirTemp(t *testing.T) {
	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(prev)
	})
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorePath != DefaultStorePath {
		t.Errorf("StorePath = %q, want %q", cfg.StorePath, DefaultStorePath)
	}
	if cfg.BufferMaxEntries != DefaultBufferMaxEntries {
		t.Errorf("BufferMaxEntries = %d, want %d", cfg.BufferMaxEntries, DefaultBufferMaxEntries)
	}
	if cfg.Debug {
		t.Errorf("Debug = true, want false")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("KVSTORE_STORE_PATH", "/tmp/other")
	t.Setenv("KVSTORE_BUFFER_MAX_ENTRIES", "7")
	t.Setenv("KVSTORE_LOG_DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorePath != "/tmp/other" {
		t.Errorf("StorePath = %q, want /tmp/other", cfg.StorePath)
	}
	if cfg.BufferMaxEntries != 7 {
		t.Errorf("BufferMaxEntries = %d, want 7", cfg.BufferMaxEntries)
	}
	if !cfg.Debug {
		t.Errorf("Debug = false, want true")
	}
}

func TestLoadRejectsNonPositiveCapacity(t *testing.T) {
	chdirTemp(t)
	t.Setenv("KVSTORE_BUFFER_MAX_ENTRIES", "0")

	if _, err := Load(); err == nil {
		t.Errorf("expected error for zero buffer capacity")
	}
}
