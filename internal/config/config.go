// Package config provides configuration loading and structs for the shiori server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/shiori/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Document DocumentConfig `yaml:"document"`
	Cache    CacheConfig    `yaml:"cache"`
	Extract  ExtractConfig  `yaml:"extract"`
	Search   SearchConfig   `yaml:"search"`
	Watch    WatchConfig    `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DocumentConfig describes the partitioned document.
// BaseDir resolves relative section file paths; Sections must be ordered and non-overlapping.
type DocumentConfig struct {
	BaseDir  string           `yaml:"base_dir"`
	Sections []models.Section `yaml:"sections"`
}

// CacheConfig holds tiered cache settings.
type CacheConfig struct {
	// Backend is one of auto, sqlite, disk, memory. auto prefers sqlite and falls back to disk.
	Backend           string   `yaml:"backend"`
	DatabasePath      string   `yaml:"database_path"`
	BlobDir           string   `yaml:"blob_dir"`
	BlobCapacityBytes int64    `yaml:"blob_capacity_bytes"`
	MaxEntries        int      `yaml:"max_entries"`
	SweepInterval     Duration `yaml:"sweep_interval"`
	TextTTL           Duration `yaml:"text_ttl"`
	SearchTTL         Duration `yaml:"search_ttl"`
}

// ExtractConfig holds text extraction settings.
type ExtractConfig struct {
	Timeout     Duration `yaml:"timeout"`
	Concurrency int      `yaml:"concurrency"`
}

// SearchConfig holds search settings.
type SearchConfig struct {
	// Lines of context around a match. Unset (nil) uses the default; 0 turns that side off.
	ContextBefore *int     `yaml:"context_before"`
	ContextAfter  *int     `yaml:"context_after"`
	DefaultLimit  int      `yaml:"default_limit"`
	MaxLimit      int      `yaml:"max_limit"`
	Debounce      Duration `yaml:"debounce"`
}

const (
	defaultContextBefore = 2
	defaultContextAfter  = 1
)

// ContextLines returns how many lines before and after a match form its context.
func (s SearchConfig) ContextLines() (before, after int) {
	before, after = defaultContextBefore, defaultContextAfter
	if s.ContextBefore != nil {
		before = *s.ContextBefore
	}
	if s.ContextAfter != nil {
		after = *s.ContextAfter
	}
	return before, after
}

// WatchConfig controls source file watching.
type WatchConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// EnabledOrDefault returns whether to watch section sources; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Duration is a time.Duration that reads and writes as a string like "30s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed, or if the sections are invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Cache.DatabasePath = expandPath(cfg.Cache.DatabasePath, configDir)
	cfg.Cache.BlobDir = expandPath(cfg.Cache.BlobDir, configDir)
	if cfg.Document.BaseDir == "" {
		cfg.Document.BaseDir = configDir
	} else {
		cfg.Document.BaseDir = expandPath(cfg.Document.BaseDir, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks that every section is well formed and that the ranges are
// ascending and non-overlapping.
func (c *Config) Validate() error {
	return ValidateSections(c.Document.Sections)
}

// ValidateSections checks the section registry invariants.
func ValidateSections(sections []models.Section) error {
	seen := make(map[string]bool, len(sections))
	for i, s := range sections {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.FilePath] {
			return fmt.Errorf("duplicate section file_path %q", s.FilePath)
		}
		seen[s.FilePath] = true
		if i > 0 && s.StartPage <= sections[i-1].EndPage {
			return fmt.Errorf("section %q (pages %d-%d) overlaps or precedes section %q (pages %d-%d)",
				s.Name, s.StartPage, s.EndPage, sections[i-1].Name, sections[i-1].StartPage, sections[i-1].EndPage)
		}
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
