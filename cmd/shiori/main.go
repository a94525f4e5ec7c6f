// Command shiori searches a document split into page-range sections.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/cache"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/pipeline"
	"github.com/hyperjump/shiori/internal/search"
	"github.com/hyperjump/shiori/internal/sections"
	"github.com/hyperjump/shiori/internal/source"
	"github.com/hyperjump/shiori/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shiori/config.yaml"

// loadConfig loads config from path. When path is the default and a config.yaml
// exists in the current working directory, that file is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components holds initialized application components.
type Components struct {
	Config   *config.Config
	Registry *sections.Registry
	Store    *cache.Store
	Resolver *source.Resolver
	Pipeline *pipeline.Pipeline
	Engine   *search.Engine
}

// Close flushes and closes the cache store.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	registry, err := sections.NewRegistry(cfg.Document.Sections, sections.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	store, err := cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	resolver := source.NewResolver(cfg.Document.BaseDir, source.WithLogger(logger))
	pipe := pipeline.New(store, resolver,
		pipeline.WithLogger(logger),
		pipeline.WithTimeout(cfg.Extract.Timeout.Std()),
		pipeline.WithTextTTL(cfg.Cache.TextTTL.Std()),
		pipeline.WithConcurrency(cfg.Extract.Concurrency),
	)
	engine := search.NewEngine(registry, pipe, store, cfg.Search,
		search.WithLogger(logger),
		search.WithResultTTL(cfg.Cache.SearchTTL.Std()),
	)
	return &Components{
		Config:   cfg,
		Registry: registry,
		Store:    store,
		Resolver: resolver,
		Pipeline: pipe,
		Engine:   engine,
	}, nil
}

// setup loads config and components for one-shot commands, which log to stderr.
func setup(ctx context.Context) (*Components, *zap.Logger, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.NewCLILogger(cfg.Debug || debug)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return c, logger, nil
}

func main() {
	Execute()
}
