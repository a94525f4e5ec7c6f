package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type change struct {
	path    string
	removed bool
}

type recorder struct {
	mu      sync.Mutex
	changes []change
}

func (r *recorder) onChange(path string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change{path, removed})
}

func (r *recorder) snapshot() []change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]change(nil), r.changes...)
}

func waitFor(t *testing.T, r *recorder, want int) []change {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= want {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	got := r.snapshot()
	t.Fatalf("expected %d change(s), got %v", want, got)
	return got
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "manual.txt")
	if err := writeFile(file, "v1"); err != nil {
		t.Fatal(err)
	}

	var r recorder
	w := NewWatcher([]string{file}, r.onChange, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for _, v := range []string{"v2", "v3", "v4"} {
		if err := writeFile(file, v); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, &r, 1)
	time.Sleep(300 * time.Millisecond)
	got := r.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one debounced change, got %v", got)
	}
	if got[0].path != cleanPath(file) || got[0].removed {
		t.Errorf("change = %+v", got[0])
	}
}

func TestWatcher_IgnoresUnwatchedFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "manual.txt")
	if err := writeFile(file, "v1"); err != nil {
		t.Fatal(err)
	}

	var r recorder
	w := NewWatcher([]string{file}, r.onChange, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "other.txt"), "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := r.snapshot(); len(got) != 0 {
		t.Errorf("unexpected changes: %v", got)
	}
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "manual.txt")
	if err := writeFile(file, "v1"); err != nil {
		t.Fatal(err)
	}

	var r recorder
	w := NewWatcher([]string{file}, r.onChange)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	got := waitFor(t, &r, 1)
	if !got[0].removed {
		t.Errorf("expected a removal, got %+v", got[0])
	}
}

func TestWatcher_AddRemove(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")

	w := NewWatcher(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.Add(a); err != nil {
		t.Fatal(err)
	}
	if err := w.Add(b); err != nil {
		t.Fatal(err)
	}
	if err := w.Add(a); err != nil {
		t.Fatal(err)
	}
	if files := w.Files(); len(files) != 2 {
		t.Errorf("Files() = %v", files)
	}
	if w.dirs[filepath.Dir(cleanPath(a))] != 2 {
		t.Errorf("dir refcount = %d, want 2", w.dirs[filepath.Dir(cleanPath(a))])
	}

	if err := w.Remove(a); err != nil {
		t.Fatal(err)
	}
	if err := w.Remove(b); err != nil {
		t.Fatal(err)
	}
	if len(w.Files()) != 0 || len(w.dirs) != 0 {
		t.Errorf("after remove: files=%v dirs=%v", w.Files(), w.dirs)
	}
}

func TestWatcher_AddMissingDirectory(t *testing.T) {
	w := NewWatcher(nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	missing := filepath.Join(t.TempDir(), "nope", "a.txt")
	if err := w.Add(missing); err == nil {
		t.Error("expected an error for a file in a missing directory")
	}
	if len(w.Files()) != 0 {
		t.Errorf("failed add should not be remembered: %v", w.Files())
	}
}

func TestWatcher_StartSkipsMissingDirectories(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope", "a.txt")
	w := NewWatcher([]string{missing}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start should tolerate missing directories: %v", err)
	}
	w.Stop()
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
