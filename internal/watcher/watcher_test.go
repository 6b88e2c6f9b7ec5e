package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, extensions []string, onIngest, onRemove func(string)) *Watcher {
	t.Helper()
	w := New(extensions, onIngest, onRemove, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_IngestOnWrite(t *testing.T) {
	dir := t.TempDir()
	var ingested recorder
	w := startWatcher(t, []string{".txt"}, ingested.record, nil)

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if dirs := w.Directories(); len(dirs) != 1 {
		t.Fatalf("Directories() = %v", dirs)
	}

	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	got := ingested.snapshot()
	if len(got) < 1 {
		t.Fatalf("no ingest callback fired: %v", got)
	}
	for _, p := range got {
		if strings.HasSuffix(p, "skip.xyz") {
			t.Errorf("extension filter let through %s", p)
		}
	}
}

func TestWatcher_RemoveCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(path, []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}

	var removed recorder
	w := startWatcher(t, []string{".txt"}, nil, removed.record)
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	got := removed.snapshot()
	if len(got) != 1 || !strings.HasSuffix(got[0], "gone.txt") {
		t.Errorf("removed = %v", got)
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	var ingested recorder
	w := startWatcher(t, []string{".txt"}, ingested.record, nil)
	if err := w.AddDirectory(dir, true); err != nil {
		t.Fatal(err)
	}

	got := ingested.snapshot()
	if len(got) != 1 || !strings.HasSuffix(got[0], "a.txt") {
		t.Errorf("expected only a.txt ingested, got %v", got)
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	var ingested recorder
	w := startWatcher(t, []string{".txt"}, ingested.record, nil)
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}

	nested := filepath.Join(dir, "level1")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to pick up the new directory before writing.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(nested, "deep.txt"), []byte("deep"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	found := false
	for _, p := range ingested.snapshot() {
		if strings.HasSuffix(p, "deep.txt") {
			found = true
		}
	}
	if !found {
		t.Errorf("deep.txt not ingested: %v", ingested.snapshot())
	}
}

func TestWatcher_StopDuringEvents(t *testing.T) {
	dir := t.TempDir()
	var ingested recorder
	w := New([]string{".txt"}, ingested.record, nil, WithDebounce(10*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}

	// Keep events flowing while Stop tears the watcher down.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			name := filepath.Join(dir, "f"+string(rune('a'+i%26))+".txt")
			_ = os.WriteFile(name, []byte("burst"), 0600)
		}
	}()
	time.Sleep(5 * time.Millisecond)
	w.Stop()
	<-done

	// Stop is idempotent and the event loop must have exited cleanly.
	w.Stop()
}

func TestWatcher_AddDirectoryIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, nil, nil, nil)
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if dirs := w.Directories(); len(dirs) != 1 {
		t.Errorf("Directories() = %v, want one entry", dirs)
	}
}

func TestMatchExtension(t *testing.T) {
	w := New([]string{".txt"}, nil, nil)
	if !w.matchExtension("/a/b.txt") || !w.matchExtension("/a/b.TXT") {
		t.Error("txt should match")
	}
	if w.matchExtension("/a/b.md") {
		t.Error("md should not match")
	}
	any := New(nil, nil, nil)
	if !any.matchExtension("/a/b") {
		t.Error("empty filter should match everything")
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
