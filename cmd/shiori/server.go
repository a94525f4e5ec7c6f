package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/server"
	"github.com/hyperjump/shiori/internal/watcher"
	"github.com/hyperjump/shiori/pkg/utils"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the HTTP API",
	Long:  `Run the HTTP API. Section sources on local disk are watched and their cached text is dropped when they change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer() error {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Int("sections", len(cfg.Document.Sections)),
	)

	ctx, stop := signalContext()
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	components.Store.StartSweeper(ctx, cfg.Cache.SweepInterval.Std())

	if cfg.Watch.EnabledOrDefault() {
		files, bySource := watchedSources(components)
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(files, invalidateOnChange(components, bySource, logger), watchOpts...)
		if err := watchSvc.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Registry,
		components.Pipeline,
		components.Engine,
		components.Store,
		cfg,
		logger,
		version,
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// watchedSources returns the absolute paths of local section sources and the
// section each one belongs to. Remote sections are not watched.
func watchedSources(c *Components) ([]string, map[string]models.Section) {
	files := make([]string, 0, c.Registry.Len())
	bySource := make(map[string]models.Section, c.Registry.Len())
	for _, sec := range c.Registry.Sections() {
		path := c.Resolver.Path(sec.FilePath)
		if path == "" {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		path = filepath.Clean(path)
		files = append(files, path)
		bySource[path] = sec
	}
	return files, bySource
}

// invalidateOnChange drops a section's cached text and every cached search
// result when its source file is written or removed.
func invalidateOnChange(c *Components, bySource map[string]models.Section, logger *zap.Logger) watcher.ChangeFunc {
	return func(path string, removed bool) {
		sec, ok := bySource[path]
		if !ok {
			return
		}
		ctx := context.Background()
		if err := c.Pipeline.Invalidate(ctx, sec); err != nil {
			logger.Warn("invalidate section failed", zap.String("section", sec.FilePath), zap.Error(err))
			return
		}
		if _, err := c.Engine.ClearCache(ctx); err != nil {
			logger.Warn("clear search cache failed", zap.Error(err))
		}
		logger.Info("section source changed",
			zap.String("section", sec.FilePath),
			zap.Bool("removed", removed),
		)
	}
}
