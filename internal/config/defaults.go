package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "auto"
	}
	if cfg.Cache.DatabasePath == "" {
		cfg.Cache.DatabasePath = "/usr/local/var/shiori/cache/cache.db"
	}
	if cfg.Cache.BlobDir == "" {
		cfg.Cache.BlobDir = "/usr/local/var/shiori/cache/blobs"
	}
	if cfg.Cache.BlobCapacityBytes == 0 {
		cfg.Cache.BlobCapacityBytes = 50 << 20
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1000
	}
	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = Duration(5 * time.Minute)
	}
	if cfg.Cache.TextTTL == 0 {
		cfg.Cache.TextTTL = Duration(7 * 24 * time.Hour)
	}
	if cfg.Cache.SearchTTL == 0 {
		cfg.Cache.SearchTTL = Duration(time.Hour)
	}
	if cfg.Extract.Timeout == 0 {
		cfg.Extract.Timeout = Duration(30 * time.Second)
	}
	if cfg.Extract.Concurrency == 0 {
		cfg.Extract.Concurrency = 4
	}
	if cfg.Search.ContextBefore == nil {
		n := defaultContextBefore
		cfg.Search.ContextBefore = &n
	}
	if cfg.Search.ContextAfter == nil {
		n := defaultContextAfter
		cfg.Search.ContextAfter = &n
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 50
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 500
	}
	if cfg.Search.Debounce == 0 {
		cfg.Search.Debounce = Duration(300 * time.Millisecond)
	}
	// Watching defaults to on when unset (nil).
	if cfg.Watch.Enabled == nil {
		t := true
		cfg.Watch.Enabled = &t
	}
}
