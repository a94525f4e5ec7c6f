package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// backendContract exercises the behavior every backend shares.
func backendContract(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := b.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}
	if err := b.Put(ctx, "text:a", []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	got, ok, err := b.Get(ctx, "text:a")
	if err != nil || !ok {
		t.Fatalf("Get after Put: ok %v, err %v", ok, err)
	}
	if string(got) != `{"v":1}` {
		t.Errorf("got %s", got)
	}

	// Last write wins.
	if err := b.Put(ctx, "text:a", []byte(`{"v":2}`)); err != nil {
		t.Fatal(err)
	}
	got, _, _ = b.Get(ctx, "text:a")
	if string(got) != `{"v":2}` {
		t.Errorf("after overwrite got %s", got)
	}

	if err := b.Put(ctx, "search:b", []byte(`{"v":3}`)); err != nil {
		t.Fatal(err)
	}
	var keys []string
	if err := b.Iterate(ctx, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("Iterate saw %v", keys)
	}

	stop := errors.New("stop")
	n := 0
	err = b.Iterate(ctx, func(string, []byte) error { n++; return stop })
	if !errors.Is(err, stop) || n != 1 {
		t.Errorf("Iterate should stop on fn error: n=%d err=%v", n, err)
	}

	if err := b.Delete(ctx, "text:a"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b.Get(ctx, "text:a"); ok {
		t.Error("expected miss after delete")
	}
	if err := b.Delete(ctx, "text:a"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestSQLiteBackend_Contract(t *testing.T) {
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	backendContract(t, b)
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()
	b, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Put(ctx, "k", []byte(`"v"`)); err != nil {
		t.Fatal(err)
	}
	_ = b.Close()

	b, err = NewSQLiteBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	got, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || string(got) != `"v"` {
		t.Errorf("after reopen: %q ok=%v err=%v", got, ok, err)
	}
	n, err := b.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count: %d, %v", n, err)
	}
}

func TestSQLiteBackend_IterateAllowsWrites(t *testing.T) {
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = b.Put(ctx, fmt.Sprintf("k%d", i), []byte(`1`))
	}
	err = b.Iterate(ctx, func(key string, _ []byte) error {
		return b.Delete(ctx, key)
	})
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := b.Count(ctx); n != 0 {
		t.Errorf("expected all deleted during iteration, %d left", n)
	}
}

func TestDiskBackend_Contract(t *testing.T) {
	b, err := NewDiskBackend(filepath.Join(t.TempDir(), "blobs"), 0)
	if err != nil {
		t.Fatal(err)
	}
	backendContract(t, b)
}

func TestMemoryBackend_Contract(t *testing.T) {
	backendContract(t, NewMemoryBackend(0))
}
