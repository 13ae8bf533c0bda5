package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/pkg/errors"
)

// DefaultDebounce collapses the burst of events editors produce on save
const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc receives each successfully reloaded configuration
type ReloadFunc func(cfg *Config)

// Watcher reloads a config file when it changes
type Watcher struct {
	path     string
	debounce time.Duration
	onReload ReloadFunc
	logger   types.Logger
	watcher  *fsnotify.Watcher

	closeOnce sync.Once
}

// NewWatcher watches path. The containing directory is watched so that
// editors which save by renaming a temp file are still noticed.
func NewWatcher(path string, debounce time.Duration, onReload ReloadFunc, logger types.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get absolute path")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, errors.Wrap(err, "failed to watch config directory")
	}

	return &Watcher{
		path:     absPath,
		debounce: debounce,
		onReload: onReload,
		logger:   logger,
		watcher:  fsWatcher,
	}, nil
}

// Run blocks until ctx is done, reloading after each debounced change
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.logger != nil {
				w.logger.Warn("Config watcher error", "error", err)
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("Failed to reload configuration", "path", w.path, "error", err)
		}
		return
	}
	if w.logger != nil {
		w.logger.Info("Configuration reloaded", "path", w.path)
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}
