// Package pipeline turns section sources into cached per-page text.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/cache"
	"github.com/hyperjump/shiori/internal/extract"
	"github.com/hyperjump/shiori/internal/fileid"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/source"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultTextTTL     = 7 * 24 * time.Hour
	DefaultConcurrency = 4
)

// Pipeline extracts section text page by page and stores it in the cache.
type Pipeline struct {
	store       *cache.Store
	fetcher     source.Fetcher
	opener      extract.Opener
	timeout     time.Duration
	textTTL     time.Duration
	concurrency int
	logger      *zap.Logger
	group       singleflight.Group
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTimeout bounds fetch plus extraction of one section.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithTextTTL sets how long extracted text stays cached.
func WithTextTTL(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.textTTL = d
		}
	}
}

// WithConcurrency bounds how many sections ExtractAll works on at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithOpener replaces the document parser.
func WithOpener(o extract.Opener) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.opener = o
		}
	}
}

// New creates a pipeline that reads sources through fetcher and caches into store.
func New(store *cache.Store, fetcher source.Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		fetcher:     fetcher,
		opener:      extract.NewExtractor(),
		timeout:     DefaultTimeout,
		textTTL:     DefaultTextTTL,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Lookup returns the cached text for section without extracting.
func (p *Pipeline) Lookup(ctx context.Context, section models.Section) (models.PageText, bool) {
	var pages models.PageText
	ok, err := p.store.Get(ctx, fileid.TextKey(section.FilePath), &pages)
	if err != nil || !ok || len(pages) == 0 {
		return nil, false
	}
	return pages, true
}

// Cached reports whether section's text is in the cache.
func (p *Pipeline) Cached(ctx context.Context, section models.Section) bool {
	return p.store.Has(ctx, fileid.TextKey(section.FilePath))
}

// Extract returns section's text keyed by section-relative page number.
//
// A cached result is returned without touching the source. Otherwise the
// source is fetched and pages are read in ascending order; pages that fail
// are logged and left out. Concurrent calls for the same section share one
// extraction. The returned map must not be modified.
//
// Errors carry an apperr kind: SourceUnavailable when the source cannot be
// fetched in time, NoExtractableText when no page yields text, and Cancelled
// when ctx ends first. Nothing is cached on error.
func (p *Pipeline) Extract(ctx context.Context, section models.Section) (models.PageText, error) {
	if pages, ok := p.Lookup(ctx, section); ok {
		return pages, nil
	}
	key := fileid.TextKey(section.FilePath)
	for {
		v, err, shared := p.group.Do(key, func() (any, error) {
			return p.extract(ctx, section, key)
		})
		// The caller that led a shared extraction went away; run our own.
		if shared && apperr.KindOf(err) == apperr.KindCancelled && ctx.Err() == nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		return v.(models.PageText), nil
	}
}

func (p *Pipeline) extract(parent context.Context, section models.Section, key string) (models.PageText, error) {
	if pages, ok := p.Lookup(parent, section); ok {
		return pages, nil
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	content, err := p.fetcher.Fetch(ctx, section.FilePath)
	if err != nil {
		return nil, p.failure(parent, ctx, section, "fetch", err)
	}
	doc, err := p.opener.Open(content, source.Ext(section.FilePath))
	if err != nil {
		return nil, apperr.New(apperr.KindNoExtractableText, "open", section.FilePath, err)
	}

	numPages := doc.NumPages()
	if numPages > section.PageCount() {
		p.logger.Warn("document has more pages than its section, ignoring the rest",
			zap.String("section", section.FilePath),
			zap.Int("document_pages", numPages),
			zap.Int("section_pages", section.PageCount()),
		)
		numPages = section.PageCount()
	}

	pages := make(models.PageText, numPages)
	failed := 0
	for i := 1; i <= numPages; i++ {
		if ctx.Err() != nil {
			return nil, p.failure(parent, ctx, section, "extract", ctx.Err())
		}
		text, err := pageText(doc, i)
		if err != nil {
			failed++
			p.logger.Warn("page extraction failed",
				zap.String("section", section.FilePath),
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages[i] = text
	}
	if ctx.Err() != nil {
		return nil, p.failure(parent, ctx, section, "extract", ctx.Err())
	}
	if len(pages) == 0 {
		return nil, apperr.New(apperr.KindNoExtractableText, "extract", section.FilePath,
			fmt.Errorf("%d pages, %d failed", numPages, failed))
	}

	if err := p.store.Set(parent, key, pages, p.textTTL, cache.PriorityHigh); err != nil {
		p.logger.Warn("caching extracted text failed", zap.String("section", section.FilePath), zap.Error(err))
	}
	p.logger.Info("section extracted",
		zap.String("section", section.FilePath),
		zap.Int("pages", len(pages)),
		zap.Int("failed_pages", failed),
		zap.Duration("took", time.Since(start)),
	)
	return pages, nil
}

// pageText reads one page, turning a parser panic into an error.
func pageText(doc extract.Document, page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: panic: %v", page, r)
		}
	}()
	return doc.PageText(page)
}

// failure classifies an error that happened under the pipeline's timeout context.
func (p *Pipeline) failure(parent, ctx context.Context, section models.Section, op string, err error) error {
	switch {
	case parent.Err() != nil:
		return apperr.New(apperr.KindCancelled, op, section.FilePath, parent.Err())
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperr.New(apperr.KindSourceUnavailable, op, section.FilePath,
			fmt.Errorf("timed out after %s: %w", p.timeout, err))
	default:
		return apperr.New(apperr.KindSourceUnavailable, op, section.FilePath, err)
	}
}

// Invalidate drops section's cached text so the next Extract reads the source again.
func (p *Pipeline) Invalidate(ctx context.Context, section models.Section) error {
	return p.store.Delete(ctx, fileid.TextKey(section.FilePath))
}

// Outcome is the result of extracting one section in ExtractAll.
type Outcome struct {
	Section models.Section `json:"section"`
	Pages   int            `json:"pages"`
	Cached  bool           `json:"cached"`
	Kind    apperr.Kind    `json:"kind,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ExtractAll extracts every section, a bounded number at a time. A failing
// section does not stop the others. Outcomes are in the order of sections.
func (p *Pipeline) ExtractAll(ctx context.Context, sections []models.Section) []Outcome {
	outcomes := make([]Outcome, len(sections))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, section := range sections {
		i, section := i, section
		g.Go(func() error {
			out := Outcome{Section: section, Cached: p.Cached(ctx, section)}
			pages, err := p.Extract(ctx, section)
			if err != nil {
				out.Kind = apperr.KindOf(err)
				out.Error = err.Error()
			} else {
				out.Pages = len(pages)
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
