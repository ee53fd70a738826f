package service

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"watchkeeper/internal/models"
)

const defaultDebounce = 500 * time.Millisecond

// WatchTarget is what the source watcher restarts.
type WatchTarget interface {
	Restart(reason models.RestartReason, detail string) error
	Status() models.ProcessStatus
}

// SourceWatcher restarts the worker when files under the watched paths
// change locally. Bursts of events are debounced, and the restart is skipped
// when the worker already started after the last change (for example
// because an update redeployed it).
type SourceWatcher struct {
	paths    []string
	target   WatchTarget
	logger   *slog.Logger
	debounce time.Duration
}

func NewSourceWatcher(paths []string, target WatchTarget, logger *slog.Logger) *SourceWatcher {
	return &SourceWatcher{
		paths:    paths,
		target:   target,
		logger:   logger,
		debounce: defaultDebounce,
	}
}

// Run watches until ctx is cancelled.
func (w *SourceWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	for _, p := range w.paths {
		if err := w.add(watcher, p); err != nil {
			return err
		}
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	var lastChange time.Time
	var changed string
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 || ignored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.add(watcher, ev.Name)
				}
			}
			w.logger.Debug("source change", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
			lastChange, changed = time.Now(), ev.Name
			timer.Reset(w.debounce)
		case <-timer.C:
			w.fire(lastChange, changed)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", slog.String("err", err.Error()))
		}
	}
}

func (w *SourceWatcher) fire(lastChange time.Time, file string) {
	st := w.target.Status()
	if st.State == models.StateUp && st.Since.After(lastChange) {
		w.logger.Debug("worker already restarted since the change", slog.String("file", file))
		return
	}

	w.logger.Info("source changed, restarting worker", slog.String("file", file))
	err := w.target.Restart(models.ReasonSourceChange, filepath.Base(file)+" changed")
	if err != nil && !errors.Is(err, ErrRestartInProgress) {
		w.logger.Error("restart after source change failed", slog.String("err", err.Error()))
	}
}

// add watches path, recursing into directories. Files are watched through
// their parent directory.
func (w *SourceWatcher) add(watcher *fsnotify.Watcher, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return errors.Wrapf(err, "stat %s", abs)
	}
	if !fi.IsDir() {
		return errors.Wrapf(watcher.Add(filepath.Dir(abs)), "watch %s", abs)
	}

	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if ignored(p) {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return errors.Wrapf(err, "watch %s", p)
		}
		w.logger.Debug("watching directory", slog.String("dir", p))
		return nil
	})
}

func ignored(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		switch part {
		case ".git", "node_modules", "__pycache__":
			return true
		}
	}
	return false
}
