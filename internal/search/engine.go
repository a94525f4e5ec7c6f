// Package search finds query lines in cached section text and groups them by page.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/cache"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/fileid"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/sections"
)

// DefaultResultTTL is how long a computed result list stays cached.
const DefaultResultTTL = time.Hour

var (
	// ErrUnknownSection is returned when a query names a section the registry does not have.
	ErrUnknownSection = errors.New("unknown section")
	// ErrInvalidQuery is returned for malformed queries such as a negative offset.
	ErrInvalidQuery = errors.New("invalid query")
)

// TextSource supplies extracted section text keyed by section-relative page.
type TextSource interface {
	Lookup(ctx context.Context, section models.Section) (models.PageText, bool)
	Extract(ctx context.Context, section models.Section) (models.PageText, error)
}

// Engine runs line searches over every section's cached text.
type Engine struct {
	registry  *sections.Registry
	texts     TextSource
	store     *cache.Store
	config    config.SearchConfig
	resultTTL time.Duration
	logger    *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithResultTTL sets how long computed results stay cached.
func WithResultTTL(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.resultTTL = d
		}
	}
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	registry *sections.Registry,
	texts TextSource,
	store *cache.Store,
	cfg config.SearchConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		registry:  registry,
		texts:     texts,
		store:     store,
		config:    cfg,
		resultTTL: DefaultResultTTL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// cachedResults is what the result cache holds for one query and scope.
type cachedResults struct {
	Results []*models.SearchResult `json:"results"`
}

// sectionScan is the outcome of scanning one section.
type sectionScan struct {
	results []*models.SearchResult
	skipped bool
	failure *models.SectionFailure
}

// Search returns every line matching all query tokens, ordered by absolute
// page and grouped by (section, page). Limit and Offset page over groups.
// Sections whose text is not cached are skipped unless ExtractMissing is set;
// sections that fail to extract are reported in the response and do not fail
// the search. A query with no tokens completes with no groups.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.config.DefaultLimit, e.config.MaxLimit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	selected, unknown := e.registry.Select(query.Sections)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSection, unknown)
	}

	tokens := Tokenize(query.Query)
	normalized := NormalizeQuery(query.Query)
	response := &models.SearchResponse{
		Query:  query.Query,
		Status: models.StatusCompleted,
		Groups: []*models.GroupedResult{},
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if len(tokens) == 0 {
		response.QueryTime = time.Since(startTime).Milliseconds()
		return response, nil
	}

	var scope []string
	if len(query.Sections) > 0 {
		for _, s := range selected {
			scope = append(scope, s.FilePath)
		}
	}
	key := fileid.SearchKey(normalized, scope)

	var results []*models.SearchResult
	var hit cachedResults
	if ok, _ := e.store.Get(ctx, key, &hit); ok {
		results = hit.Results
		response.Cached = true
	} else {
		scans := e.scanSections(ctx, selected, tokens, query.ExtractMissing)
		if err := ctx.Err(); err != nil {
			return nil, apperr.New(apperr.KindCancelled, "search", "", err)
		}
		for i, scan := range scans {
			results = append(results, scan.results...)
			if scan.skipped {
				response.Skipped = append(response.Skipped, selected[i].FilePath)
			}
			if scan.failure != nil {
				response.Failed = append(response.Failed, scan.failure)
			}
		}
		SortResults(results)
		// Partial result lists are not cached so text extracted later is found.
		if len(response.Skipped) == 0 && len(response.Failed) == 0 {
			if err := e.store.Set(ctx, key, cachedResults{Results: results}, e.resultTTL, cache.PriorityLow); err != nil {
				e.logger.Warn("caching search results failed", zap.String("query", normalized), zap.Error(err))
			}
		}
	}

	groups := GroupResults(results)
	response.TotalMatches = len(results)
	response.TotalGroups = len(groups)
	response.Groups = paginate(groups, query.Offset, query.Limit)
	response.QueryTime = time.Since(startTime).Milliseconds()

	e.logger.Debug("search completed",
		zap.String("query", normalized),
		zap.Int("sections", len(selected)),
		zap.Int("matches", response.TotalMatches),
		zap.Int("groups", response.TotalGroups),
		zap.Bool("cached", response.Cached),
		zap.Int64("query_time_ms", response.QueryTime),
	)
	return response, nil
}

// scanSections scans every section concurrently. Results are indexed like sections.
func (e *Engine) scanSections(ctx context.Context, selected []models.Section, tokens []string, extractMissing bool) []sectionScan {
	scans := make([]sectionScan, len(selected))
	var wg sync.WaitGroup
	for i, section := range selected {
		i, section := i, section
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			pages, ok := e.texts.Lookup(ctx, section)
			if !ok {
				if !extractMissing {
					scans[i].skipped = true
					return
				}
				var err error
				pages, err = e.texts.Extract(ctx, section)
				if err != nil {
					kind := apperr.KindOf(err)
					if kind != apperr.KindCancelled {
						e.logger.Warn("section unavailable for search", zap.String("section", section.FilePath), zap.Error(err))
						scans[i].failure = &models.SectionFailure{
							SectionPath: section.FilePath,
							Kind:        string(kind),
							Message:     err.Error(),
							Retryable:   apperr.Retryable(kind),
						}
					}
					return
				}
			}
			scans[i].results = e.scanSection(section, pages, tokens)
		}()
	}
	wg.Wait()
	return scans
}

func (e *Engine) scanSection(section models.Section, pages models.PageText, tokens []string) []*models.SearchResult {
	var results []*models.SearchResult
	before, after := e.config.ContextLines()
	for _, rel := range pages.Pages() {
		if !sections.IsValidRelativePage(section, rel) {
			continue
		}
		abs := sections.ToAbsolute(section, rel)
		for _, m := range ScanPage(pages[rel], tokens, before, after) {
			results = append(results, &models.SearchResult{
				Page:        abs,
				Text:        m.Text,
				Context:     m.Context,
				SectionName: section.DisplayName(),
				SectionPath: section.FilePath,
				Category:    section.Category,
			})
		}
	}
	return results
}

// SortResults orders results by ascending absolute page. The sort is stable,
// so matches on one page keep their line order.
func SortResults(results []*models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Page < results[j].Page
	})
}

// GroupResults groups sorted results by (section, page), keeping their order.
func GroupResults(results []*models.SearchResult) []*models.GroupedResult {
	var groups []*models.GroupedResult
	index := make(map[string]*models.GroupedResult)
	for _, r := range results {
		key := r.SectionPath + "#" + strconv.Itoa(r.Page)
		g, ok := index[key]
		if !ok {
			g = &models.GroupedResult{
				Key:         key,
				Page:        r.Page,
				SectionPath: r.SectionPath,
				SectionName: r.SectionName,
			}
			index[key] = g
			groups = append(groups, g)
		}
		g.Results = append(g.Results, r)
		g.Count++
	}
	return groups
}

func paginate(groups []*models.GroupedResult, offset, limit int) []*models.GroupedResult {
	start := offset
	end := offset + limit
	if start > len(groups) {
		start = len(groups)
	}
	if end > len(groups) {
		end = len(groups)
	}
	return append([]*models.GroupedResult{}, groups[start:end]...)
}

// ClearCache drops every cached result list and returns how many were removed.
func (e *Engine) ClearCache(ctx context.Context) (int, error) {
	return e.store.Clear(ctx, fileid.SearchPrefix)
}
