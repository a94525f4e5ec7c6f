package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/storage"
)

// Store is a TTL cache over a single storage backend with priority-aware eviction.
//
// The backend holds the entries; Store keeps an in-memory index of their
// bookkeeping so eviction does not need to scan the backend. Access counters
// updated by Get are written back to the backend on Flush (run by the sweeper
// and on Close) rather than on every read.
type Store struct {
	backend    storage.Backend
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger

	mu    sync.Mutex
	index map[string]EntryInfo
	dirty map[string]bool
	stats counters

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

type counters struct {
	hits          int64
	misses        int64
	evictions     int64
	expired       int64
	writeFailures int64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMaxEntries bounds the number of entries. Zero or less means unbounded.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store over backend and loads the bookkeeping of entries already in it.
func New(ctx context.Context, backend storage.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		now:     time.Now,
		logger:  zap.NewNop(),
		index:   make(map[string]EntryInfo),
		dirty:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.PurgeExpired(ctx); err != nil {
		return nil, fmt.Errorf("load cache index: %w", err)
	}
	return s, nil
}

// Backend returns the name of the backend in use.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// Set stores value under key for ttl. When the store is full, the entry with
// the lowest priority (then the least recently accessed) is evicted first. If
// the backend reports it is out of space, expired entries are purged and the
// write is retried once.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration, priority Priority) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperr.New(apperr.KindCacheWriteFailed, "cache set", "", fmt.Errorf("marshal %s: %w", key, err))
	}
	now := s.now()
	entry := &Entry{
		Value:          raw,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
		Priority:       priority,
		SizeBytes:      len(raw),
	}
	blob, err := json.Marshal(entry)
	if err != nil {
		return apperr.New(apperr.KindCacheWriteFailed, "cache set", "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[key]; !exists && s.maxEntries > 0 {
		for len(s.index) >= s.maxEntries {
			if !s.evictOneLocked(ctx) {
				break
			}
		}
	}

	err = s.backend.Put(ctx, key, blob)
	if errors.Is(err, storage.ErrCapacity) {
		s.logger.Debug("cache backend full, purging expired entries", zap.String("key", key))
		if _, purgeErr := s.purgeExpiredLocked(ctx); purgeErr != nil {
			s.logger.Warn("cache purge failed", zap.Error(purgeErr))
		}
		err = s.backend.Put(ctx, key, blob)
	}
	if err != nil {
		s.stats.writeFailures++
		return apperr.New(apperr.KindCacheWriteFailed, "cache set", "", fmt.Errorf("%s: %w", key, err))
	}
	s.index[key] = infoOf(key, entry)
	delete(s.dirty, key)
	return nil
}

// evictOneLocked removes the best eviction candidate. Returns false if nothing could be evicted.
func (s *Store) evictOneLocked(ctx context.Context) bool {
	var victim *EntryInfo
	for _, info := range s.index {
		info := info
		if victim == nil || evictsBefore(info, *victim) {
			victim = &info
		}
	}
	if victim == nil {
		return false
	}
	if err := s.backend.Delete(ctx, victim.Key); err != nil {
		s.logger.Warn("cache eviction failed", zap.String("key", victim.Key), zap.Error(err))
		return false
	}
	delete(s.index, victim.Key)
	delete(s.dirty, victim.Key)
	s.stats.evictions++
	s.logger.Debug("cache evicted entry",
		zap.String("key", victim.Key),
		zap.String("priority", victim.Priority.String()),
		zap.Time("last_accessed_at", victim.LastAccessedAt),
	)
	return true
}

// Get decodes the value under key into dst. It returns false when the key is
// missing, expired, or unreadable; expired and unreadable entries are deleted.
// dst may be nil to only test for a live entry and record the access.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	entry, ok, err := s.load(ctx, key)
	if err != nil || !ok {
		s.mu.Lock()
		s.stats.misses++
		s.mu.Unlock()
		return false, err
	}
	if dst != nil {
		if err := json.Unmarshal(entry.Value, dst); err != nil {
			s.logger.Warn("cached value does not decode, dropping", zap.String("key", key), zap.Error(err))
			s.drop(ctx, key)
			s.mu.Lock()
			s.stats.misses++
			s.mu.Unlock()
			return false, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.hits++
	// A Delete or Clear may have removed the key since load read it.
	info, indexed := s.index[key]
	if !indexed {
		return true, nil
	}
	info.AccessCount++
	info.LastAccessedAt = s.now()
	s.index[key] = info
	s.dirty[key] = true
	return true, nil
}

// Has reports whether a live entry exists under key. It does not count as an access.
func (s *Store) Has(ctx context.Context, key string) bool {
	_, ok, err := s.load(ctx, key)
	return err == nil && ok
}

// Info returns the bookkeeping for key, if the store knows it.
func (s *Store) Info(key string) (EntryInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.index[key]
	return info, ok
}

// load reads and decodes an entry, lazily deleting it when expired or corrupt.
func (s *Store) load(ctx context.Context, key string) (*Entry, bool, error) {
	blob, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if !ok {
		s.mu.Lock()
		delete(s.index, key)
		delete(s.dirty, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	entry, err := decodeEntry(blob)
	if err != nil {
		s.logger.Warn("corrupt cache entry, dropping", zap.String("key", key), zap.Error(err))
		s.drop(ctx, key)
		return nil, false, nil
	}
	if entry.Expired(s.now()) {
		s.drop(ctx, key)
		s.mu.Lock()
		s.stats.expired++
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry, true, nil
}

func (s *Store) drop(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
	s.mu.Lock()
	delete(s.index, key)
	delete(s.dirty, key)
	s.mu.Unlock()
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	delete(s.index, key)
	delete(s.dirty, key)
	return nil
}

// Clear deletes every entry whose key starts with prefix and returns how many were removed.
// An empty prefix clears the whole store.
func (s *Store) Clear(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	err := s.backend.Iterate(ctx, func(key string, _ []byte) error {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	for _, key := range keys {
		if err := s.backend.Delete(ctx, key); err != nil {
			return 0, fmt.Errorf("cache clear %s: %w", key, err)
		}
		delete(s.index, key)
		delete(s.dirty, key)
	}
	return len(keys), nil
}

// PurgeExpired deletes every expired or unreadable entry and rebuilds the index
// from what remains. It returns the number of entries removed.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeExpiredLocked(ctx)
}

func (s *Store) purgeExpiredLocked(ctx context.Context) (int, error) {
	now := s.now()
	live := make(map[string]EntryInfo, len(s.index))
	var stale []string
	err := s.backend.Iterate(ctx, func(key string, blob []byte) error {
		entry, err := decodeEntry(blob)
		if err != nil || entry.Expired(now) {
			stale = append(stale, key)
			return nil
		}
		info := infoOf(key, entry)
		// Accesses not yet flushed are newer than what the backend holds.
		if known, ok := s.index[key]; ok && s.dirty[key] {
			info.AccessCount = known.AccessCount
			info.LastAccessedAt = known.LastAccessedAt
		}
		live[key] = info
		return nil
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range stale {
		if err := s.backend.Delete(ctx, key); err != nil {
			s.logger.Warn("cache purge delete failed", zap.String("key", key), zap.Error(err))
			continue
		}
		delete(s.dirty, key)
		removed++
	}
	s.index = live
	for key := range s.dirty {
		if _, ok := live[key]; !ok {
			delete(s.dirty, key)
		}
	}
	s.stats.expired += int64(removed)
	return removed, nil
}

// Flush writes pending access counters back to the backend.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.dirty))
	for key := range s.dirty {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := s.flushKey(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) flushKey(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.index[key]
	if !ok || !s.dirty[key] {
		return nil
	}
	blob, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		delete(s.index, key)
		delete(s.dirty, key)
		return nil
	}
	entry, err := decodeEntry(blob)
	if err != nil {
		return err
	}
	entry.AccessCount = info.AccessCount
	entry.LastAccessedAt = info.LastAccessedAt
	out, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, key, out); err != nil {
		return err
	}
	delete(s.dirty, key)
	return nil
}

// Stats summarizes the store.
type Stats struct {
	Backend       string         `json:"backend"`
	Entries       int            `json:"entries"`
	MaxEntries    int            `json:"max_entries"`
	SizeBytes     int64          `json:"size_bytes"`
	ByPriority    map[string]int `json:"by_priority"`
	ByPrefix      map[string]int `json:"by_prefix"`
	Hits          int64          `json:"hits"`
	Misses        int64          `json:"misses"`
	Evictions     int64          `json:"evictions"`
	Expired       int64          `json:"expired"`
	WriteFailures int64          `json:"write_failures"`
	Oldest        *time.Time     `json:"oldest,omitempty"`
}

// Stats returns counters and a summary of the indexed entries.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Backend:       s.backend.Name(),
		Entries:       len(s.index),
		MaxEntries:    s.maxEntries,
		ByPriority:    map[string]int{},
		ByPrefix:      map[string]int{},
		Hits:          s.stats.hits,
		Misses:        s.stats.misses,
		Evictions:     s.stats.evictions,
		Expired:       s.stats.expired,
		WriteFailures: s.stats.writeFailures,
	}
	for key, info := range s.index {
		st.SizeBytes += int64(info.SizeBytes)
		st.ByPriority[info.Priority.String()]++
		if i := strings.Index(key, ":"); i > 0 {
			st.ByPrefix[key[:i]]++
		}
		if st.Oldest == nil || info.CreatedAt.Before(*st.Oldest) {
			created := info.CreatedAt
			st.Oldest = &created
		}
	}
	return st
}

// StartSweeper purges expired entries and flushes access counters every
// interval until ctx is done or Close is called. Calling it again is a no-op.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if s.sweepCancel != nil || interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.sweepCancel = cancel
	s.sweepDone = make(chan struct{})
	go s.sweep(ctx, interval, s.sweepDone)
}

func (s *Store) sweep(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.PurgeExpired(ctx)
			if err != nil {
				s.logger.Warn("cache sweep failed", zap.Error(err))
				continue
			}
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("cache flush failed", zap.Error(err))
			}
			s.logger.Debug("cache sweep", zap.Int("removed", removed), zap.Int("entries", s.Stats().Entries))
		}
	}
}

// Close stops the sweeper, flushes access counters, and closes the backend.
func (s *Store) Close() error {
	s.sweepMu.Lock()
	if s.sweepCancel != nil {
		s.sweepCancel()
		<-s.sweepDone
		s.sweepCancel = nil
	}
	s.sweepMu.Unlock()
	if err := s.Flush(context.Background()); err != nil {
		s.logger.Warn("cache flush on close failed", zap.Error(err))
	}
	return s.backend.Close()
}
