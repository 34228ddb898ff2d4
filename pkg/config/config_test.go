package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 0 || cfg.PoolSize() < 1 {
		t.Fatalf("workers default: %d pool=%d", cfg.Workers, cfg.PoolSize())
	}
	if cfg.Store.Shards != 64 || cfg.Store.Isolation != "off" {
		t.Fatalf("store defaults: %+v", cfg.Store)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Fatalf("log defaults: %+v", cfg.Log)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TTSCHED_WORKERS", "3")
	t.Setenv("TTSCHED_STORE_ISOLATION", "cbor")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 3 || cfg.PoolSize() != 3 {
		t.Fatalf("env workers not applied: %+v", cfg)
	}
	if cfg.Store.Isolation != "cbor" {
		t.Fatalf("env isolation not applied: %q", cfg.Store.Isolation)
	}
}

func TestFileLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ttsched.yaml")
	body := []byte("workers: 2\nmax_pending: 10\nstore:\n  isolation: json\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 2 || cfg.MaxPending != 10 || cfg.Store.Isolation != "json" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Setenv("TTSCHED_LOG_LEVEL", "silly")
	if _, err := Load(""); err == nil {
		t.Fatalf("invalid level must fail")
	}
}
