package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RegistryURL == "" {
		t.Error("expected default registry URL")
	}
	if cfg.CheckIntervalSeconds != 60 {
		t.Errorf("expected default check interval 60, got %d", cfg.CheckIntervalSeconds)
	}
	if !cfg.SyncOnStart {
		t.Error("expected sync_on_start default true")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.RegistryURL = "https://registry.example.com"
	cfg.DBPath = "/tmp/skills.db"
	cfg.PageSize = 250
	cfg.HNSW.M = 32
	cfg.HNSW.Disabled = true

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.RegistryURL != cfg.RegistryURL || got.DBPath != cfg.DBPath || got.PageSize != 250 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.HNSW.M != 32 || !got.HNSW.Disabled {
		t.Errorf("hnsw block lost: %+v", got.HNSW)
	}
}

func TestLoadFromInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("registry_url: [unclosed"), 0o644)

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDatabasePathPrecedence(t *testing.T) {
	cfg := Default()

	cfg.DBPath = "/explicit/skills.db"
	if got := cfg.DatabasePath(); got != "/explicit/skills.db" {
		t.Errorf("expected explicit path, got %q", got)
	}

	cfg.DBPath = ""
	t.Setenv("SKILLSYNC_DB", "/from/env/skills.db")
	if got := cfg.DatabasePath(); got != "/from/env/skills.db" {
		t.Errorf("expected env path, got %q", got)
	}
}

func TestIndexSnapshotPathDefaultsNextToDB(t *testing.T) {
	cfg := Default()
	cfg.DBPath = "/data/skills.db"

	if got := cfg.IndexSnapshotPath(); got != "/data/skills.db.index" {
		t.Errorf("expected sibling snapshot path, got %q", got)
	}

	cfg.SnapshotPath = "/elsewhere/index.snap"
	if got := cfg.IndexSnapshotPath(); got != "/elsewhere/index.snap" {
		t.Errorf("expected explicit snapshot path, got %q", got)
	}
}
