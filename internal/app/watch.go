package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/vk/classkit/internal/ctxlog"
)

// watch resolves the entry classes, then again after every burst of file
// changes under the resource root, until ctx is done.
func (a *App) watch(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.Close()

	root, err := filepath.Abs(a.config.Root)
	if err != nil {
		return err
	}
	dirs := append([]string{root}, a.config.Preload...)
	for _, d := range dirs {
		if err := a.watchTree(w, root, d); err != nil {
			return err
		}
	}

	a.resolveOnce(ctx)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if a.ignored(root, event.Name) {
				continue
			}
			logger.Debug("File event.", "path", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := a.watchTree(w, root, event.Name); err != nil {
						logger.Warn("Failed to watch new directory.", "path", event.Name, "error", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(a.config.WatchDebounce)
			} else {
				timer.Reset(a.config.WatchDebounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			logger.Info("🔁 Change detected, resolving again.")
			a.resolveOnce(ctx)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", "error", err)
		}
	}
}

// resolveOnce runs a resolution. A failure is logged rather than returned
// since the next edit may fix it.
func (a *App) resolveOnce(ctx context.Context) {
	if err := a.Resolve(ctx); err != nil && ctx.Err() == nil {
		ctxlog.FromContext(ctx).Error("Resolution failed, waiting for changes.", "error", err)
	}
}

func (a *App) watchTree(w *fsnotify.Watcher, root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && a.ignored(root, path) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// ignored reports whether path matches one of the ignore patterns, which
// are relative to root.
func (a *App) ignored(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range a.config.WatchIgnore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
