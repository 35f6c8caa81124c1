// Package config loads shellbake's YAML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the tool configuration. Everything has a usable default; a
// missing config file is not an error.
type Config struct {
	Locale string `yaml:"locale"`
	Shell  string `yaml:"shell"`

	Cache struct {
		Path          string `yaml:"path"`
		MemoryEntries int    `yaml:"memory_entries"`
	} `yaml:"cache"`

	Remote struct {
		Addr           string `yaml:"addr"`
		User           string `yaml:"user"`
		KeyPath        string `yaml:"key_path"`
		KnownHostsPath string `yaml:"known_hosts_path"`
	} `yaml:"remote"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	cfg.Locale = "en_US.UTF-8"
	cfg.Shell = "/bin/bash"
	cfg.Cache.Path = defaultCachePath()
	cfg.Cache.MemoryEntries = 128
	cfg.Remote.KnownHostsPath = filepath.Join(configDir(), "known_hosts")
	return cfg
}

// Load reads YAML configuration from path. If path is empty, it resolves
// $XDG_CONFIG_HOME/shellbake/config.yaml or ~/.config/shellbake/config.yaml;
// when that file does not exist the defaults are returned. Remote
// credentials may be overridden from secrets.env and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if path == "" {
		path = filepath.Join(configDir(), "config.yaml")
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			applyOverrides(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyOverrides(&cfg)
	return cfg, nil
}

// applyOverrides merges secrets.env and environment variables so SSH
// settings need not live in the YAML file.
func applyOverrides(cfg *Config) {
	secrets, _ := LoadSecretsEnv("")
	for k, v := range map[string]*string{
		"SHELLBAKE_REMOTE_ADDR": &cfg.Remote.Addr,
		"SHELLBAKE_REMOTE_USER": &cfg.Remote.User,
		"SHELLBAKE_SSH_KEY":     &cfg.Remote.KeyPath,
	} {
		if s, ok := secrets[k]; ok && s != "" {
			*v = s
		}
		if s := os.Getenv(k); s != "" {
			*v = s
		}
	}
}

func configDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "shellbake")
}

func defaultCachePath() string {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "shellbake", "scripts.db")
}

// WriteDefault writes the default configuration to path (or the resolved
// default location when empty) unless a file already exists. It returns the
// path written or found.
func WriteDefault(path string) (string, error) {
	if path == "" {
		path = filepath.Join(configDir(), "config.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}
	out, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
