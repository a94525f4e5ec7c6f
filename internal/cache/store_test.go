package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock, storage.Backend) {
	t.Helper()
	clock := newFakeClock()
	backend := storage.NewMemoryBackend(0)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := New(context.Background(), backend, opts...)
	require.NoError(t, err)
	return s, clock, backend
}

func TestStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	require.NoError(t, s.Set(ctx, "text:a", map[int]string{1: "hello"}, time.Hour, PriorityHigh))

	var got map[int]string
	ok, err := s.Get(ctx, "text:a", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got[1])

	ok, err = s.Get(ctx, "text:missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	st := s.Stats()
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 1, st.Misses)
	assert.Equal(t, "memory", st.Backend)
}

func TestStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock, backend := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", "v", 100*time.Millisecond, PriorityNormal))

	clock.Advance(50 * time.Millisecond)
	var v string
	ok, err := s.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(150 * time.Millisecond)
	ok, err = s.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok, "entry read at 200ms with a 100ms ttl must be absent")

	_, present, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, present, "expired entry is deleted on read")
	assert.Equal(t, 0, s.Stats().Entries)
}

func TestStore_HasMatchesGet(t *testing.T) {
	ctx := context.Background()
	s, clock, _ := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", 1, time.Second, PriorityNormal))
	assert.True(t, s.Has(ctx, "k"))
	assert.EqualValues(t, 0, s.Stats().Hits, "Has does not count as an access")

	clock.Advance(2 * time.Second)
	assert.False(t, s.Has(ctx, "k"))
	ok, err := s.Get(ctx, "k", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_EvictionKeepsHighPriority(t *testing.T) {
	ctx := context.Background()
	s, clock, _ := newTestStore(t, WithMaxEntries(2))

	require.NoError(t, s.Set(ctx, "text:a", "A", time.Hour, PriorityHigh))
	clock.Advance(time.Second)
	require.NoError(t, s.Set(ctx, "search:b", "B", time.Hour, PriorityLow))
	clock.Advance(time.Second)
	require.NoError(t, s.Set(ctx, "c", "C", time.Hour, PriorityNormal))

	assert.True(t, s.Has(ctx, "text:a"))
	assert.False(t, s.Has(ctx, "search:b"), "low priority entry is evicted first")
	assert.True(t, s.Has(ctx, "c"))

	clock.Advance(time.Second)
	require.NoError(t, s.Set(ctx, "d", "D", time.Hour, PriorityNormal))
	assert.True(t, s.Has(ctx, "text:a"), "high priority entry survives while lower ones exist")
	assert.False(t, s.Has(ctx, "c"))
	assert.True(t, s.Has(ctx, "d"))
	assert.EqualValues(t, 2, s.Stats().Evictions)
}

func TestStore_EvictionLeastRecentlyAccessed(t *testing.T) {
	ctx := context.Background()
	s, clock, _ := newTestStore(t, WithMaxEntries(2))

	require.NoError(t, s.Set(ctx, "a", 1, time.Hour, PriorityNormal))
	clock.Advance(time.Second)
	require.NoError(t, s.Set(ctx, "b", 2, time.Hour, PriorityNormal))
	clock.Advance(time.Second)
	ok, err := s.Get(ctx, "a", nil)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(time.Second)
	require.NoError(t, s.Set(ctx, "c", 3, time.Hour, PriorityNormal))

	assert.True(t, s.Has(ctx, "a"))
	assert.False(t, s.Has(ctx, "b"))
	assert.True(t, s.Has(ctx, "c"))
}

func TestStore_OverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, WithMaxEntries(2))

	require.NoError(t, s.Set(ctx, "a", 1, time.Hour, PriorityNormal))
	require.NoError(t, s.Set(ctx, "b", 2, time.Hour, PriorityNormal))
	require.NoError(t, s.Set(ctx, "a", 3, time.Hour, PriorityNormal))

	assert.True(t, s.Has(ctx, "b"))
	var v int
	ok, err := s.Get(ctx, "a", &v)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.EqualValues(t, 0, s.Stats().Evictions)
}

// fullBackend rejects the next failPuts writes with ErrCapacity.
type fullBackend struct {
	*storage.MemoryBackend
	mu       sync.Mutex
	failPuts int
}

func (f *fullBackend) Put(ctx context.Context, key string, blob []byte) error {
	f.mu.Lock()
	if f.failPuts > 0 {
		f.failPuts--
		f.mu.Unlock()
		return storage.ErrCapacity
	}
	f.mu.Unlock()
	return f.MemoryBackend.Put(ctx, key, blob)
}

func TestStore_CapacityPurgesExpiredAndRetries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := &fullBackend{MemoryBackend: storage.NewMemoryBackend(0)}
	s, err := New(ctx, backend, WithClock(clock.Now))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "old", "x", time.Millisecond, PriorityNormal))
	clock.Advance(time.Second)

	backend.failPuts = 1
	require.NoError(t, s.Set(ctx, "new", "y", time.Hour, PriorityNormal))

	_, present, err := backend.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, present, "expired entry purged before retry")
	assert.True(t, s.Has(ctx, "new"))
}

func TestStore_CapacityStillFullFails(t *testing.T) {
	ctx := context.Background()
	backend := &fullBackend{MemoryBackend: storage.NewMemoryBackend(0), failPuts: 2}
	s, err := New(ctx, backend)
	require.NoError(t, err)

	err = s.Set(ctx, "k", "v", time.Hour, PriorityNormal)
	require.Error(t, err)
	assert.Equal(t, apperr.KindCacheWriteFailed, apperr.KindOf(err))
	assert.ErrorIs(t, err, apperr.ErrCacheWriteFailed)
	assert.EqualValues(t, 1, s.Stats().WriteFailures)
	assert.False(t, s.Has(ctx, "k"))
}

func TestStore_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	s, _, backend := newTestStore(t)

	require.NoError(t, backend.Put(ctx, "bad", []byte("not json")))
	ok, err := s.Get(ctx, "bad", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, present, err := backend.Get(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestStore_CorruptDiskFileReclaimedOnCapacity(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := storage.NewDiskBackend(dir, 600)
	require.NoError(t, err)
	s, err := New(ctx, backend, WithClock(newFakeClock().Now))
	require.NoError(t, err)

	value := strings.Repeat("a", 200)
	require.NoError(t, s.Set(ctx, "k1", value, time.Hour, PriorityNormal))
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, os.WriteFile(files[0], []byte(strings.Repeat("#", 300)), 0600))

	// The second entry only fits once the corrupt file is gone.
	require.NoError(t, s.Set(ctx, "k2", value, time.Hour, PriorityNormal))

	var got string
	ok, err := s.Get(ctx, "k2", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, s.Has(ctx, "k1"))
	assert.Equal(t, 1, s.Stats().Entries)

	files, err = filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.LessOrEqual(t, backend.Used(), int64(600))
}

func TestStore_CorruptDiskFileDroppedOnReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := storage.NewDiskBackend(dir, 600)
	require.NoError(t, err)
	s, err := New(ctx, backend)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k1", "v", time.Hour, PriorityNormal))
	files, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	require.Len(t, files, 1)
	require.NoError(t, os.WriteFile(files[0], []byte("garbage"), 0600))

	reopenedBackend, err := storage.NewDiskBackend(dir, 600)
	require.NoError(t, err)
	reopened, err := New(ctx, reopenedBackend)
	require.NoError(t, err)

	assert.Zero(t, reopenedBackend.Used())
	assert.Zero(t, reopened.Stats().Entries)
	ok, err := reopened.Get(ctx, "k1", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

// racingBackend runs onGet once, after a read and before it returns.
type racingBackend struct {
	storage.Backend
	onGet func(key string)
}

func (b *racingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	blob, ok, err := b.Backend.Get(ctx, key)
	if f := b.onGet; f != nil {
		b.onGet = nil
		f(key)
	}
	return blob, ok, err
}

func TestStore_GetDoesNotResurrectDeletedKey(t *testing.T) {
	ctx := context.Background()
	backend := &racingBackend{Backend: storage.NewMemoryBackend(0)}
	s, err := New(ctx, backend)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "text:a", "v", time.Hour, PriorityHigh))

	backend.onGet = func(key string) {
		require.NoError(t, s.Delete(ctx, key))
	}
	_, err = s.Get(ctx, "text:a", nil)
	require.NoError(t, err)

	_, known := s.Info("text:a")
	assert.False(t, known)
	assert.Zero(t, s.Stats().Entries)
	assert.False(t, s.Has(ctx, "text:a"))
}

func TestStore_UndecodableValueIsMiss(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", "a string", time.Hour, PriorityNormal))
	var n int
	ok, err := s.Get(ctx, "k", &n)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.Has(ctx, "k"))
}

func TestStore_ClearPrefix(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	require.NoError(t, s.Set(ctx, "search:1", 1, time.Hour, PriorityLow))
	require.NoError(t, s.Set(ctx, "search:2", 2, time.Hour, PriorityLow))
	require.NoError(t, s.Set(ctx, "text:1", 3, time.Hour, PriorityHigh))

	n, err := s.Clear(ctx, "search:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, s.Has(ctx, "search:1"))
	assert.True(t, s.Has(ctx, "text:1"))

	st := s.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, map[string]int{"text": 1}, st.ByPrefix)
	assert.Equal(t, map[string]int{"high": 1}, st.ByPriority)
}

func TestStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	s, clock, _ := newTestStore(t)

	require.NoError(t, s.Set(ctx, "short", 1, time.Minute, PriorityNormal))
	require.NoError(t, s.Set(ctx, "long", 2, time.Hour, PriorityNormal))
	clock.Advance(2 * time.Minute)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.Stats().Entries)
	_, ok := s.Info("long")
	assert.True(t, ok)
}

func TestStore_FlushPersistsAccess(t *testing.T) {
	ctx := context.Background()
	s, clock, backend := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", 1, time.Hour, PriorityNormal))
	clock.Advance(time.Minute)
	for i := 0; i < 2; i++ {
		ok, err := s.Get(ctx, "k", nil)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, s.Flush(ctx))

	reopened, err := New(ctx, backend, WithClock(clock.Now))
	require.NoError(t, err)
	info, ok := reopened.Info("k")
	require.True(t, ok)
	assert.Equal(t, 2, info.AccessCount)
	assert.True(t, info.LastAccessedAt.Equal(clock.Now()))
}

func TestStore_SweeperRemovesExpired(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, storage.NewMemoryBackend(0))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", 1, 10*time.Millisecond, PriorityNormal))
	s.StartSweeper(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return s.Stats().Entries == 0
	}, time.Second, 5*time.Millisecond)
}

func TestOpen_BackendSelection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// A regular file where a directory is expected makes SQLite unusable.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	tests := []struct {
		name string
		cfg  config.CacheConfig
		want string
	}{
		{"sqlite", config.CacheConfig{Backend: "auto", DatabasePath: filepath.Join(dir, "db", "cache.db"), BlobDir: filepath.Join(dir, "blobs")}, "sqlite"},
		{"fallback to disk", config.CacheConfig{Backend: "sqlite", DatabasePath: filepath.Join(blocker, "cache.db"), BlobDir: filepath.Join(dir, "blobs2")}, "disk"},
		{"fallback to memory", config.CacheConfig{Backend: "auto", DatabasePath: filepath.Join(blocker, "cache.db"), BlobDir: filepath.Join(blocker, "blobs")}, "memory"},
		{"explicit disk", config.CacheConfig{Backend: "disk", BlobDir: filepath.Join(dir, "blobs3")}, "disk"},
		{"explicit memory", config.CacheConfig{Backend: "memory"}, "memory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg, nil)
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, tt.want, s.Backend())
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.CacheConfig{Backend: "redis"}, nil)
	assert.Error(t, err)
}
