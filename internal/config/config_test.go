package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "pntx.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "origin: example.com\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Origin != "example.com" {
		t.Fatalf("Origin = %q, want example.com", cfg.Origin)
	}
	if cfg.BufMax != 8192 {
		t.Fatalf("BufMax = %d, want default 8192", cfg.BufMax)
	}
	if !cfg.KeepAliveEnabled {
		t.Fatal("KeepAliveEnabled = false, want default true")
	}
}

func TestLoadRejectsUnsatisfiedMinEngineVersion(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "min_engine_version: \">= 999.0.0\"\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded, want error for unsatisfiable min_engine_version")
	}
}

func TestStoreSwapIsolatesPriorSnapshot(t *testing.T) {
	first := &Config{Origin: "a.example.com", KeepAliveTimeout: time.Second}
	store := NewStore(first)

	snapshot := store.Get()

	second := &Config{Origin: "b.example.com", KeepAliveTimeout: time.Hour}
	store.Set(second)

	if snapshot.Origin != "a.example.com" {
		t.Fatalf("snapshot.Origin = %q, want unchanged a.example.com after Set", snapshot.Origin)
	}
	if store.Get().Origin != "b.example.com" {
		t.Fatalf("store.Get().Origin = %q, want b.example.com", store.Get().Origin)
	}
}
