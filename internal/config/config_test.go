package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sectionsYAML = `
document:
  sections:
    - file_path: "intro.pdf"
      name: "Introduction"
      start_page: 1
      end_page: 10
    - file_path: "engine.pdf"
      name: "Engine"
      title: "Engine Maintenance"
      category: "maintenance"
      start_page: 11
      end_page: 20
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
cache:
  database_path: "cache.db"
`+sectionsYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Cache.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if len(cfg.Document.Sections) != 2 {
		t.Fatalf("sections: got %d", len(cfg.Document.Sections))
	}
	if cfg.Document.Sections[1].Title != "Engine Maintenance" || cfg.Document.Sections[1].Category != "maintenance" {
		t.Errorf("section 2: got %+v", cfg.Document.Sections[1])
	}
	if cfg.Document.BaseDir != filepath.Dir(path) {
		t.Errorf("base_dir = %s, want config dir %s", cfg.Document.BaseDir, filepath.Dir(path))
	}
}

func TestLoad_durations(t *testing.T) {
	path := writeConfig(t, `
cache:
  text_ttl: "48h"
  search_ttl: "10m"
extract:
  timeout: "5s"
search:
  debounce: "150ms"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.TextTTL.Std() != 48*time.Hour {
		t.Errorf("text_ttl = %v", cfg.Cache.TextTTL.Std())
	}
	if cfg.Cache.SearchTTL.Std() != 10*time.Minute {
		t.Errorf("search_ttl = %v", cfg.Cache.SearchTTL.Std())
	}
	if cfg.Extract.Timeout.Std() != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Extract.Timeout.Std())
	}
	if cfg.Search.Debounce.Std() != 150*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Search.Debounce.Std())
	}
}

func TestLoad_zeroContextKept(t *testing.T) {
	path := writeConfig(t, "search:\n  context_before: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	before, after := cfg.Search.ContextLines()
	if before != 0 {
		t.Errorf("context_before = %d, want 0", before)
	}
	if after != 1 {
		t.Errorf("context_after = %d, want default 1", after)
	}
}

func TestLoad_invalidDuration(t *testing.T) {
	path := writeConfig(t, "extract:\n  timeout: \"soon\"\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoad_overlappingSections(t *testing.T) {
	path := writeConfig(t, `
document:
  sections:
    - {file_path: "a.pdf", name: "A", start_page: 1, end_page: 10}
    - {file_path: "b.pdf", name: "B", start_page: 10, end_page: 20}
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for overlapping sections")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
cache:
  database_path: "./data/cache.db"
  blob_dir: "./data/blobs"
document:
  base_dir: "./docs"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "cache.db"); cfg.Cache.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Cache.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "blobs"); cfg.Cache.BlobDir != want {
		t.Errorf("blob_dir = %s, want %s", cfg.Cache.BlobDir, want)
	}
	if want := filepath.Join(dir, "docs"); cfg.Document.BaseDir != want {
		t.Errorf("base_dir = %s, want %s", cfg.Document.BaseDir, want)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "auto" {
		t.Errorf("default backend: got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.TextTTL.Std() != 7*24*time.Hour {
		t.Errorf("default text ttl: got %v", cfg.Cache.TextTTL.Std())
	}
	if cfg.Cache.SearchTTL.Std() != time.Hour {
		t.Errorf("default search ttl: got %v", cfg.Cache.SearchTTL.Std())
	}
	if cfg.Extract.Timeout.Std() != 30*time.Second {
		t.Errorf("default extract timeout: got %v", cfg.Extract.Timeout.Std())
	}
	if cfg.Search.Debounce.Std() != 300*time.Millisecond {
		t.Errorf("default debounce: got %v", cfg.Search.Debounce.Std())
	}
	if before, after := cfg.Search.ContextLines(); before != 2 || after != 1 {
		t.Errorf("default context: got %d/%d", before, after)
	}
	if cfg.Search.DefaultLimit != 50 || cfg.Search.MaxLimit != 500 {
		t.Errorf("default limits: got %d/%d", cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
	if !cfg.Watch.EnabledOrDefault() {
		t.Error("watch should default to enabled")
	}
}

func TestWatchConfig_EnabledOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.EnabledOrDefault(); !got {
			t.Errorf("EnabledOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Enabled: &f}
		if got := w.EnabledOrDefault(); got {
			t.Errorf("EnabledOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Cache:  CacheConfig{DatabasePath: "/tmp/cache.db", SearchTTL: Duration(2 * time.Hour)},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Cache.SearchTTL.Std() != 2*time.Hour {
		t.Errorf("loaded search ttl: got %v", loaded.Cache.SearchTTL.Std())
	}
}
