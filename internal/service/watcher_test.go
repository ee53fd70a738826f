package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchkeeper/internal/logging"
	"watchkeeper/internal/models"
)

type fakeTarget struct {
	mu       sync.Mutex
	status   models.ProcessStatus
	restarts []string
	err      error
}

func (f *fakeTarget) Restart(reason models.RestartReason, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts = append(f.restarts, string(reason)+": "+detail)
	return f.err
}

func (f *fakeTarget) Status() models.ProcessStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTarget) restartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.restarts)
}

func runWatcher(t *testing.T, w *SourceWatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
}

func TestSourceWatcher_RestartsOnceForBurst(t *testing.T) {
	dir := t.TempDir()
	target := &fakeTarget{status: models.ProcessStatus{State: models.StateUp, Since: time.Now().Add(-time.Hour)}}
	w := NewSourceWatcher([]string{dir}, target, logging.Discard())
	w.debounce = 100 * time.Millisecond
	runWatcher(t, w)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print(1)\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return target.restartCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 1, target.restartCount())

	target.mu.Lock()
	assert.Equal(t, "source-change: main.py changed", target.restarts[0])
	target.mu.Unlock()
}

func TestSourceWatcher_SkipsWhenWorkerAlreadyRestarted(t *testing.T) {
	dir := t.TempDir()
	target := &fakeTarget{status: models.ProcessStatus{State: models.StateUp, Since: time.Now().Add(time.Hour)}}
	w := NewSourceWatcher([]string{dir}, target, logging.Discard())
	w.debounce = 50 * time.Millisecond
	runWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("x"), 0o644))
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 0, target.restartCount())
}

func TestSourceWatcher_IgnoresGitDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "refs"), 0o755))
	target := &fakeTarget{status: models.ProcessStatus{State: models.StateDown}}
	w := NewSourceWatcher([]string{dir}, target, logging.Discard())
	w.debounce = 50 * time.Millisecond
	runWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "refs", "HEAD"), []byte("x"), 0o644))
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 0, target.restartCount())
}

func TestSourceWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	target := &fakeTarget{status: models.ProcessStatus{State: models.StateDown}, err: ErrRestartInProgress}
	w := NewSourceWatcher([]string{dir}, target, logging.Discard())
	w.debounce = 50 * time.Millisecond
	runWatcher(t, w)

	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool { return target.restartCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "mod.py"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return target.restartCount() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSourceWatcher_MissingPath(t *testing.T) {
	w := NewSourceWatcher([]string{filepath.Join(t.TempDir(), "nope")}, &fakeTarget{}, logging.Discard())
	assert.Error(t, w.Run(context.Background()))
}

func TestIgnored(t *testing.T) {
	assert.True(t, ignored("/srv/app/.git/index"))
	assert.True(t, ignored("/srv/app/node_modules/x.js"))
	assert.False(t, ignored("/srv/app/main.py"))
}
