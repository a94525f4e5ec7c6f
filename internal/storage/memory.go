package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryBackend keeps blobs in process memory, bounded by capacity bytes.
type MemoryBackend struct {
	capacity int64
	mu       sync.RWMutex
	blobs    map[string][]byte
	used     int64
}

// NewMemoryBackend returns an empty backend. capacity <= 0 means unbounded.
func NewMemoryBackend(capacity int64) *MemoryBackend {
	return &MemoryBackend{capacity: capacity, blobs: make(map[string][]byte)}
}

// Get returns the blob stored under key.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

// Put stores a copy of blob, returning ErrCapacity when it would not fit.
func (m *MemoryBackend) Put(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := int64(len(key) + len(blob))
	old := int64(0)
	if prev, ok := m.blobs[key]; ok {
		old = int64(len(key) + len(prev))
	}
	if m.capacity > 0 && m.used-old+size > m.capacity {
		return fmt.Errorf("%w: %d bytes used of %d, need %d", ErrCapacity, m.used, m.capacity, size)
	}
	m.blobs[key] = append([]byte(nil), blob...)
	m.used += size - old
	return nil
}

// Delete removes key.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.blobs[key]; ok {
		m.used -= int64(len(key) + len(prev))
		delete(m.blobs, key)
	}
	return nil
}

// Iterate walks a snapshot of the entries in key order.
func (m *MemoryBackend) Iterate(ctx context.Context, fn func(key string, blob []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	snapshot := make(map[string][]byte, len(m.blobs))
	for k, v := range m.blobs {
		snapshot[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

// Name identifies the backend.
func (m *MemoryBackend) Name() string {
	return "memory"
}

// Close drops all entries.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs = make(map[string][]byte)
	m.used = 0
	return nil
}
