package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with no file should fall back to defaults: %v", err)
	}
	if cfg.Locale != "en_US.UTF-8" {
		t.Errorf("locale = %q", cfg.Locale)
	}
	if cfg.Shell != "/bin/bash" {
		t.Errorf("shell = %q", cfg.Shell)
	}
	if cfg.Cache.MemoryEntries != 128 {
		t.Errorf("memory entries = %d", cfg.Cache.MemoryEntries)
	}
	if cfg.Cache.Path == "" || cfg.Remote.KnownHostsPath == "" {
		t.Error("paths should have defaults")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "locale: en_DK.UTF-8\nshell: /usr/bin/bash\ncache:\n  memory_entries: 4\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Locale != "en_DK.UTF-8" {
		t.Errorf("locale = %q", cfg.Locale)
	}
	if cfg.Shell != "/usr/bin/bash" {
		t.Errorf("shell = %q", cfg.Shell)
	}
	if cfg.Cache.MemoryEntries != 4 {
		t.Errorf("memory entries = %d", cfg.Cache.MemoryEntries)
	}
}

func TestExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("an explicitly named missing config must be an error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SHELLBAKE_REMOTE_ADDR", "10.0.0.5:22")
	t.Setenv("SHELLBAKE_REMOTE_USER", "deploy")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Remote.Addr != "10.0.0.5:22" || cfg.Remote.User != "deploy" {
		t.Errorf("env overrides not applied: %+v", cfg.Remote)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	got, err := WriteDefault(path)
	if err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	if got != path {
		t.Errorf("path = %q", got)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("written default did not load: %v", err)
	}
	if cfg.Locale != "en_US.UTF-8" {
		t.Errorf("locale = %q", cfg.Locale)
	}
}
