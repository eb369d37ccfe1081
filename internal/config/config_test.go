package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if len(cfg.Watch.Paths) != 0 {
		t.Errorf("expected 0 watch paths, got %d", len(cfg.Watch.Paths))
	}
	if len(cfg.Calendar.Aggregators) == 0 {
		t.Error("expected default aggregators to be populated")
	}
	if cfg.Calendar.MinAttestations < 1 {
		t.Errorf("expected positive min_attestations, got %d", cfg.Calendar.MinAttestations)
	}

	if !strings.Contains(cfg.Storage.PendingDBPath, ".otsgo") {
		t.Errorf("pending db path should contain .otsgo: %s", cfg.Storage.PendingDBPath)
	}
	if !strings.Contains(cfg.Storage.ProofDir, ".otsgo") {
		t.Errorf("proof dir should contain .otsgo: %s", cfg.Storage.ProofDir)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, ".otsgo") {
		t.Errorf("config path should contain .otsgo: %s", path)
	}
}

func TestOtsgoDir(t *testing.T) {
	dir := OtsgoDir()
	if dir == "" {
		t.Error("OtsgoDir returned empty string")
	}
	if !strings.HasSuffix(dir, ".otsgo") {
		t.Errorf("expected dir ending with .otsgo, got %s", dir)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.Calendar.MinAttestations != DefaultConfig().Calendar.MinAttestations {
		t.Errorf("expected default min_attestations, got %d", cfg.Calendar.MinAttestations)
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
version = 1

[watch]
paths = ["/tmp/docs", "/tmp/notes"]
debounce_ms = 3000

[storage]
pending_db_path = "/custom/path/pending.db"
proof_dir = "/custom/path/proofs"

[calendar]
aggregators = ["https://a.example", "https://b.example"]
min_attestations = 2
timeout_sec = 20
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Watch.Paths) != 2 {
		t.Errorf("expected 2 watch paths, got %d", len(cfg.Watch.Paths))
	}
	if cfg.Watch.Paths[0] != "/tmp/docs" {
		t.Errorf("expected first path /tmp/docs, got %s", cfg.Watch.Paths[0])
	}
	if cfg.Watch.DebounceMs != 3000 {
		t.Errorf("expected debounce_ms 3000, got %d", cfg.Watch.DebounceMs)
	}
	if cfg.Storage.PendingDBPath != "/custom/path/pending.db" {
		t.Errorf("expected pending db path /custom/path/pending.db, got %s", cfg.Storage.PendingDBPath)
	}
	if len(cfg.Calendar.Aggregators) != 2 {
		t.Errorf("expected 2 aggregators, got %d", len(cfg.Calendar.Aggregators))
	}
	if cfg.Calendar.MinAttestations != 2 {
		t.Errorf("expected min_attestations 2, got %d", cfg.Calendar.MinAttestations)
	}
	if cfg.Calendar.TimeoutSec != 20 {
		t.Errorf("expected timeout_sec 20, got %d", cfg.Calendar.TimeoutSec)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
[calendar]
min_attestations = 1
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Calendar.MinAttestations != 1 {
		t.Errorf("expected min_attestations 1, got %d", cfg.Calendar.MinAttestations)
	}
	if !strings.Contains(cfg.Storage.PendingDBPath, ".otsgo") {
		t.Errorf("pending db path should have default value")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
this is not valid toml {{{
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestValidateInvalidTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calendar.TimeoutSec = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero timeout_sec")
	}
}

func TestValidateMissingAggregators(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calendar.Aggregators = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing aggregators")
	}
}

func TestValidateMinAttestationsExceedsAggregators(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calendar.Aggregators = []string{"https://only.example"}
	cfg.Calendar.MinAttestations = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when min_attestations exceeds aggregator count")
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.PendingDBPath = filepath.Join(tmpDir, "subdir1", "pending.db")
	cfg.Storage.ProofDir = filepath.Join(tmpDir, "subdir2", "proofs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "subdir1")); os.IsNotExist(err) {
		t.Error("subdir1 was not created")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "subdir2")); os.IsNotExist(err) {
		t.Error("subdir2 was not created")
	}
}

func TestEnsureDirectoriesEmptyPaths(t *testing.T) {
	cfg := &Config{}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Errorf("EnsureDirectories failed with empty paths: %v", err)
	}
}

func TestConfigMultipleWatchPaths(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
[watch]
paths = [
    "/path/one",
    "/path/two",
    "/path/three",
    "/path/four",
    "/path/five"
]
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Watch.Paths) != 5 {
		t.Errorf("expected 5 watch paths, got %d", len(cfg.Watch.Paths))
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	cfg := DefaultConfig()
	cfg.Calendar.MinAttestations = 3
	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	reloaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.Calendar.MinAttestations != 3 {
		t.Errorf("expected min_attestations 3 after reload, got %d", reloaded.Calendar.MinAttestations)
	}
}
