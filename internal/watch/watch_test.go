package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/reportdsl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	ch      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, paths)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func startWatcher(t *testing.T, root string, rec *recorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := New(Config{Root: root, Debounce: 50 * time.Millisecond, OnChange: rec.onChange, Logger: testutil.NewTestLogger(t)})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	// Give the watcher time to register directories.
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	root := testutil.ConfigDir(t, map[string]string{
		"reports/sales/sales-chart-config.groovy": "chart {}",
	})
	rec := newRecorder()
	startWatcher(t, root, rec)

	path := filepath.Join(root, "reports", "sales", "sales-chart-config.groovy")
	for _, body := range []string{"chart { type 'bar' }", "chart { type 'line' }", "chart { type 'pie' }"} {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	got := rec.wait(t)
	assert.Equal(t, []string{path}, got)
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	startWatcher(t, root, rec)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.groovy"), []byte("chart {}"), 0o644))

	got := rec.wait(t)
	assert.Equal(t, []string{filepath.Join(root, "a.groovy")}, got)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	startWatcher(t, root, rec)

	dir := filepath.Join(root, "reports", "q1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Let the watcher pick up the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "q1-tabulator-config.groovy")
	require.NoError(t, os.WriteFile(path, []byte("tabulator {}"), 0o644))

	got := rec.wait(t)
	assert.Contains(t, got, path)
}

func TestWatcher_RequiresCallback(t *testing.T) {
	w := New(Config{Root: t.TempDir()})
	assert.Error(t, w.Run(context.Background()))
}

func TestWatcher_MissingRoot(t *testing.T) {
	w := New(Config{Root: filepath.Join(t.TempDir(), "absent"), OnChange: func(context.Context, []string) {}})
	assert.Error(t, w.Run(context.Background()))
}
