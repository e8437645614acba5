package watch

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldIgnore(t *testing.T) {
	ignored := []string{
		"/v/.git",
		"/v/.hidden.js",
		"/v/a.js~",
		"/v/.a.js.swp",
		"/v/a.js.swp",
		"/v/a.js.swx",
		"/v/#a.js#",
		"/v/fb.page.json.tmp",
		"/v/Thumbs.db",
	}
	for _, p := range ignored {
		require.True(t, ShouldIgnore(p), p)
	}

	kept := []string{"/v/a.js", "/v/fb.page.json", "/v/core/#notes.css", "/v/css/base.less"}
	for _, p := range kept {
		require.False(t, ShouldIgnore(p), p)
	}
}

func TestWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32
	w, err := NewWatcher(dir, 100*time.Millisecond, func() { fired.Add(1) }, nil)
	require.NoError(t, err)

	ctx := t.Context()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.js"), []byte{byte('a' + i)}, 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return fired.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
}

func TestWatcherIgnoresSwapFiles(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32
	w, err := NewWatcher(dir, 50*time.Millisecond, func() { fired.Add(1) }, nil)
	require.NoError(t, err)
	go func() { _ = w.Run(t.Context()) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".a.js.swp"), []byte("x"), 0o600))
	time.Sleep(300 * time.Millisecond)
	require.Zero(t, fired.Load())
}

func TestNewWatcherRejectsMissingRoot(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), 0, func() {}, nil)
	require.Error(t, err)
}

func TestSchedulerRunsTask(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)

	var runs atomic.Int32
	id, err := s.Every(50*time.Millisecond, "tick", func() { runs.Add(1) })
	require.NoError(t, err)
	require.NotEmpty(t, id)

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())

	_, err = s.Every(0, "bad", func() {})
	require.Error(t, err)
}

func TestWatcherWatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32
	w, err := NewWatcher(dir, 50*time.Millisecond, func() { fired.Add(1) }, nil)
	require.NoError(t, err)
	go func() { _ = w.Run(t.Context()) }()

	sub := filepath.Join(dir, "core", "lib")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	before := fired.Load()
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.js"), []byte("a"), 0o600))
	require.Eventually(t, func() bool { return fired.Load() > before }, 3*time.Second, 20*time.Millisecond)
}

func TestWatchNewDirLogsFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	w, err := NewWatcher(t.TempDir(), 0, func() {}, logger)
	require.NoError(t, err)
	t.Cleanup(w.close)

	w.watchNewDir(t.Context(), filepath.Join(t.TempDir(), "gone"))
	require.Contains(t, logs.String(), "Failed to watch new directory")
	require.Contains(t, logs.String(), "gone")
}
