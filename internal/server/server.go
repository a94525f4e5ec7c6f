// Package server provides the HTTP API for shiori.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/cache"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/pipeline"
	"github.com/hyperjump/shiori/internal/search"
	"github.com/hyperjump/shiori/internal/sections"
)

// Server is the HTTP server for the shiori API.
type Server struct {
	registry  *sections.Registry
	pipeline  *pipeline.Pipeline
	engine    *search.Engine
	store     *cache.Store
	// debouncer is shared by all clients: the API serves one reader, so a
	// task from any client supersedes whatever is still pending.
	debouncer *search.Debouncer
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
	version   string
	startedAt time.Time

	// tasks outlive the request that submitted them.
	tasksCtx    context.Context
	cancelTasks context.CancelFunc
}

// NewServer creates a server with the given dependencies.
func NewServer(
	registry *sections.Registry,
	pipe *pipeline.Pipeline,
	engine *search.Engine,
	store *cache.Store,
	cfg *config.Config,
	logger *zap.Logger,
	version string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	tasksCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		registry:    registry,
		pipeline:    pipe,
		engine:      engine,
		store:       store,
		debouncer:   search.NewDebouncer(cfg.Search.Debounce.Std(), engine.Search, search.WithDebounceLogger(logger)),
		config:      cfg,
		logger:      logger,
		version:     version,
		startedAt:   time.Now(),
		tasksCtx:    tasksCtx,
		cancelTasks: cancel,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Delete("/search/cache", s.handleClearSearchCache)
		r.Post("/search/tasks", s.handleSubmitTask)
		r.Get("/search/tasks/{id}", s.handleGetTask)
		r.Delete("/search/tasks/{id}", s.handleCancelTask)

		r.Get("/sections", s.handleSections)
		r.Post("/sections/extract", s.handleExtract)
		r.Post("/sections/extract-all", s.handleExtractAll)
		r.Delete("/sections/text", s.handleInvalidate)

		r.Get("/pages/resolve", s.handleResolvePage)
		r.Get("/pages/{page}", s.handlePage)
		r.Get("/pages/{page}/next", s.handleNextPage)
		r.Get("/pages/{page}/previous", s.handlePreviousPage)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/purge", s.handleCachePurge)

		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop cancels pending search tasks and gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.cancelTasks()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
