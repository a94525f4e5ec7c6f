package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/pipeline"
	"github.com/hyperjump/shiori/internal/search"
	"github.com/hyperjump/shiori/internal/storage"
)

// statusClientClosedRequest is reported when the caller went away before the work finished.
const statusClientClosedRequest = 499

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.respondFailure(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleClearSearchCache(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.ClearCache(r.Context())
	if err != nil {
		s.respondFailure(w, "clear search cache", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// taskView is the JSON shape of a search task.
type taskView struct {
	ID       string                 `json:"id"`
	Query    string                 `json:"query"`
	State    search.State           `json:"state"`
	Response *models.SearchResponse `json:"response,omitempty"`
	Error    *errorView             `json:"error,omitempty"`
}

type errorView struct {
	Kind      apperr.Kind `json:"kind"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
}

func viewTask(t *search.Task) taskView {
	view := taskView{ID: t.ID, Query: t.Query.Query, State: t.State()}
	resp, err := t.Result()
	view.Response = resp
	if err != nil && view.State == search.StateFailed {
		kind := apperr.KindOf(err)
		view.Error = &errorView{Kind: kind, Message: err.Error(), Retryable: apperr.Retryable(kind)}
	}
	return view
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	task := s.debouncer.Submit(s.tasksCtx, query)
	s.logger.Debug("search task submitted", zap.String("task", task.ID), zap.String("query", query.Query))
	s.respondJSON(w, http.StatusAccepted, viewTask(task))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.debouncer.Task(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if wait, err := time.ParseDuration(r.URL.Query().Get("wait")); err == nil && wait > 0 {
		select {
		case <-task.Done():
		case <-time.After(wait):
		case <-r.Context().Done():
		}
	}
	s.respondJSON(w, http.StatusOK, viewTask(task))
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.debouncer.Task(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	cancelled := task.Cancel()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": task.ID, "cancelled": cancelled, "state": task.State()})
}

// sectionView is a section plus whether its text is cached.
type sectionView struct {
	models.Section
	Pages  int  `json:"pages"`
	Cached bool `json:"cached"`
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	list := s.registry.Sections()
	views := make([]sectionView, 0, len(list))
	for _, sec := range list {
		views = append(views, sectionView{
			Section: sec,
			Pages:   sec.PageCount(),
			Cached:  s.pipeline.Cached(r.Context(), sec),
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sections":   views,
		"first_page": s.registry.FirstPage(),
		"last_page":  s.registry.LastPage(),
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	section, ok := s.registry.FindSection(path)
	if !ok {
		s.respondError(w, http.StatusNotFound, "section not found")
		return
	}
	cached := s.pipeline.Cached(r.Context(), section)
	pages, err := s.pipeline.Extract(r.Context(), section)
	if err != nil {
		s.respondFailure(w, "extract", err)
		return
	}
	s.respondJSON(w, http.StatusOK, pipeline.Outcome{Section: section, Pages: len(pages), Cached: cached})
}

func (s *Server) handleExtractAll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcomes := s.pipeline.ExtractAll(r.Context(), s.registry.Sections())
	if r.Context().Err() != nil {
		s.respondFailure(w, "extract all", apperr.New(apperr.KindCancelled, "extract all", "", r.Context().Err()))
		return
	}
	failed := 0
	for _, o := range outcomes {
		if o.Kind != "" {
			failed++
		}
	}
	s.logger.Info("extract all finished",
		zap.Int("sections", len(outcomes)),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)),
	)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"outcomes": outcomes, "failed": failed})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	section, ok := s.registry.FindSection(path)
	if !ok {
		s.respondError(w, http.StatusNotFound, "section not found")
		return
	}
	if err := s.pipeline.Invalidate(r.Context(), section); err != nil {
		s.respondFailure(w, "invalidate", err)
		return
	}
	if _, err := s.engine.ClearCache(r.Context()); err != nil {
		s.logger.Warn("clearing search cache failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"path": section.FilePath, "status": "invalidated"})
}

func (s *Server) pageParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "page must be an integer")
		return 0, false
	}
	return page, true
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, ok := s.pageParam(w, r)
	if !ok {
		return
	}
	coord, found := s.registry.FindPageInfo(page)
	if !found {
		s.respondError(w, http.StatusNotFound, "no section contains this page")
		return
	}
	s.respondJSON(w, http.StatusOK, coord)
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	if page, ok := s.pageParam(w, r); ok {
		s.respondJSON(w, http.StatusOK, s.registry.Next(page))
	}
}

func (s *Server) handlePreviousPage(w http.ResponseWriter, r *http.Request) {
	if page, ok := s.pageParam(w, r); ok {
		s.respondJSON(w, http.StatusOK, s.registry.Previous(page))
	}
}

// handleResolvePage turns a section-relative page into a coordinate, clamping it into the section.
func (s *Server) handleResolvePage(w http.ResponseWriter, r *http.Request) {
	section, ok := s.registry.FindSection(r.URL.Query().Get("path"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "section not found")
		return
	}
	rel, err := strconv.Atoi(r.URL.Query().Get("relative"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "relative must be an integer")
		return
	}
	s.respondJSON(w, http.StatusOK, s.registry.Coordinate(section, rel))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	removed, err := s.store.PurgeExpired(r.Context())
	if err != nil {
		s.respondFailure(w, "purge", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is the shape of GET /api/v1/status.
type StatusResponse struct {
	Version        string `json:"version"`
	Sections       int    `json:"sections"`
	CachedSections int    `json:"cached_sections"`
	FirstPage      int    `json:"first_page"`
	LastPage       int    `json:"last_page"`
	CacheBackend   string `json:"cache_backend"`
	CacheEntries   int    `json:"cache_entries"`
	CacheBytes     int64  `json:"cache_bytes"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
	WatchEnabled   bool   `json:"watch_enabled"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	resp := StatusResponse{
		Version:       s.version,
		Sections:      s.registry.Len(),
		FirstPage:     s.registry.FirstPage(),
		LastPage:      s.registry.LastPage(),
		CacheBackend:  stats.Backend,
		CacheEntries:  stats.Entries,
		CacheBytes:    stats.SizeBytes,
		WatchEnabled:  s.config.Watch.EnabledOrDefault(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	for _, sec := range s.registry.Sections() {
		if s.pipeline.Cached(r.Context(), sec) {
			resp.CachedSections++
		}
	}
	var onDisk []string
	switch stats.Backend {
	case "sqlite":
		onDisk = append(onDisk, s.config.Cache.DatabasePath)
	case "disk":
		onDisk = append(onDisk, s.config.Cache.BlobDir)
	}
	if len(onDisk) > 0 {
		diskBytes, err := storage.DiskUsageBytes(onDisk...)
		if err != nil {
			s.logger.Debug("disk usage failed", zap.Error(err))
		} else {
			resp.DiskUsageBytes = &diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondFailure maps an error to a status code. Cancelled work is not reported as an error.
func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, search.ErrUnknownSection), errors.Is(err, search.ErrInvalidQuery):
		status = http.StatusBadRequest
	case kind == apperr.KindCancelled:
		w.WriteHeader(statusClientClosedRequest)
		return
	case kind == apperr.KindSourceUnavailable:
		status = http.StatusBadGateway
	case kind == apperr.KindNoExtractableText:
		status = http.StatusUnprocessableEntity
	case kind == apperr.KindInvalidPageCoordinate:
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondJSON(w, status, map[string]interface{}{
		"error":     err.Error(),
		"kind":      kind,
		"retryable": apperr.Retryable(kind),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
