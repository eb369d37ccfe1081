package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAggregatorsFileValid(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "aggregators.json")
	content := `{"aggregators": ["https://a.example", "https://b.example"]}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write aggregators file: %v", err)
	}

	aggregators, err := LoadAggregatorsFile(path)
	if err != nil {
		t.Fatalf("LoadAggregatorsFile failed: %v", err)
	}
	if len(aggregators) != 2 {
		t.Fatalf("expected 2 aggregators, got %d", len(aggregators))
	}
	if aggregators[0] != "https://a.example" {
		t.Errorf("expected first aggregator https://a.example, got %s", aggregators[0])
	}
}

func TestLoadAggregatorsFileRejectsEmptyList(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "aggregators.json")
	content := `{"aggregators": []}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write aggregators file: %v", err)
	}

	if _, err := LoadAggregatorsFile(path); err == nil {
		t.Error("expected error for empty aggregators list")
	}
}

func TestLoadAggregatorsFileRejectsBadURL(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "aggregators.json")
	content := `{"aggregators": ["not-a-url"]}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write aggregators file: %v", err)
	}

	if _, err := LoadAggregatorsFile(path); err == nil {
		t.Error("expected error for non-URL aggregator entry")
	}
}

func TestLoadAggregatorsFileMissing(t *testing.T) {
	if _, err := LoadAggregatorsFile("/nonexistent/aggregators.json"); err == nil {
		t.Error("expected error for missing aggregators file")
	}
}

func TestLoadOverridesAggregatorsFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	aggPath := filepath.Join(tmpDir, "aggregators.json")
	if err := os.WriteFile(aggPath, []byte(`{"aggregators": ["https://override.example"]}`), 0600); err != nil {
		t.Fatalf("failed to write aggregators file: %v", err)
	}

	configPath := filepath.Join(tmpDir, "config.toml")
	content := `
[calendar]
aggregators_file = "` + aggPath + `"
min_attestations = 1
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Calendar.Aggregators) != 1 || cfg.Calendar.Aggregators[0] != "https://override.example" {
		t.Errorf("expected aggregators overridden from file, got %v", cfg.Calendar.Aggregators)
	}
}
