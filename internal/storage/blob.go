package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const blobExt = ".json"

var errCorruptBlob = errors.New("corrupt blob")

// blobFile is the on-disk layout: one file per key.
type blobFile struct {
	Key  string          `json:"key"`
	Blob json.RawMessage `json:"blob"`
}

// DiskBackend is the small fallback tier. Each key is one JSON file in dir, and
// the total size of all files is bounded by capacity bytes.
type DiskBackend struct {
	dir      string
	capacity int64
	mu       sync.Mutex
	sizes    map[string]int64 // file name -> size
	used     int64
}

// NewDiskBackend opens dir, creating it if needed, and accounts for files already present.
// capacity <= 0 means unbounded.
func NewDiskBackend(dir string, capacity int64) (*DiskBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob directory: %w", err)
	}
	d := &DiskBackend{dir: dir, capacity: capacity, sizes: make(map[string]int64)}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), blobExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		d.sizes[e.Name()] = info.Size()
		d.used += info.Size()
	}
	return d, nil
}

func blobName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + blobExt
}

// Get returns the blob stored under key. A corrupt file is removed and reported as missing.
func (d *DiskBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	name := blobName(key)
	f, ok, err := d.read(name)
	if errors.Is(err, errCorruptBlob) {
		return nil, false, d.removeLocked(name)
	}
	if err != nil || !ok {
		return nil, false, err
	}
	if f.Key != key {
		return nil, false, nil
	}
	return f.Blob, true, nil
}

func (d *DiskBackend) read(name string) (*blobFile, bool, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var f blobFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, false, fmt.Errorf("%w %s: %v", errCorruptBlob, name, err)
	}
	return &f, true, nil
}

// Put writes the blob, returning ErrCapacity when it would not fit.
func (d *DiskBackend) Put(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(blob) {
		return fmt.Errorf("blob for %q is not valid JSON", key)
	}
	data, err := json.Marshal(blobFile{Key: key, Blob: blob})
	if err != nil {
		return err
	}
	name := blobName(key)
	d.mu.Lock()
	defer d.mu.Unlock()
	size := int64(len(data))
	if d.capacity > 0 && d.used-d.sizes[name]+size > d.capacity {
		return fmt.Errorf("%w: %d bytes used of %d, need %d", ErrCapacity, d.used, d.capacity, size)
	}
	path := filepath.Join(d.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	d.used += size - d.sizes[name]
	d.sizes[name] = size
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DiskBackend) Delete(ctx context.Context, key string) error {
	name := blobName(key)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removeLocked(name)
}

func (d *DiskBackend) removeLocked(name string) error {
	if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	d.used -= d.sizes[name]
	delete(d.sizes, name)
	return nil
}

// Iterate walks every readable blob in file name order. Corrupt files are
// removed so their space is reclaimed; other unreadable files are skipped.
func (d *DiskBackend) Iterate(ctx context.Context, fn func(key string, blob []byte) error) error {
	d.mu.Lock()
	names := make([]string, 0, len(d.sizes))
	for name := range d.sizes {
		names = append(names, name)
	}
	d.mu.Unlock()
	sort.Strings(names)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.mu.Lock()
		f, ok, err := d.read(name)
		if errors.Is(err, errCorruptBlob) {
			if rmErr := d.removeLocked(name); rmErr != nil {
				d.mu.Unlock()
				return rmErr
			}
		}
		d.mu.Unlock()
		if err != nil || !ok {
			continue
		}
		if err := fn(f.Key, f.Blob); err != nil {
			return err
		}
	}
	return nil
}

// Used returns the bytes currently on disk.
func (d *DiskBackend) Used() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

// Name identifies the backend.
func (d *DiskBackend) Name() string {
	return "disk"
}

// Close is a no-op; files are written synchronously.
func (d *DiskBackend) Close() error {
	return nil
}
