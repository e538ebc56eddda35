// Package watcher reruns a reload function when watched configuration
// files change.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ReloadFn is called whenever watched files change.
type ReloadFn func(ctx context.Context) error

// Watcher watches files and directory trees and calls ReloadFn with
// debouncing. Files are watched through their parent directory so that
// editors replacing a file by rename are still seen.
type Watcher struct {
	debounce time.Duration
	fn       ReloadFn
	fw       *fsnotify.Watcher
	logger   log.Logger

	files map[string]struct{}
	dirs  []string
}

// New creates a Watcher for paths. A path that does not exist yet is
// watched as a file and picked up when it is created.
func New(paths []string, debounce time.Duration, fn ReloadFn, logger log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	w := &Watcher{
		debounce: debounce,
		fn:       fn,
		fw:       fw,
		logger:   log.With(logger, "component", "watcher"),
		files:    make(map[string]struct{}),
	}
	for _, p := range paths {
		if err := w.add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && info.IsDir():
		w.dirs = append(w.dirs, abs)
		return w.addAll(abs)
	case err == nil, errors.Is(err, os.ErrNotExist):
		w.files[abs] = struct{}{}
		return w.fw.Add(filepath.Dir(abs))
	default:
		return err
	}
}

// relevant reports whether an event on name concerns a watched path.
func (w *Watcher) relevant(name string) bool {
	if _, ok := w.files[name]; ok {
		return true
	}
	for _, dir := range w.dirs {
		if strings.HasPrefix(name, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Start begins watching and blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.fw.Close()

	// Use a stopped timer so we can reset it on events.
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if !w.relevant(name) {
				continue
			}
			// A directory created inside a watched tree is watched too.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(name); err == nil && info.IsDir() {
					if err := w.addAll(name); err != nil {
						level.Warn(w.logger).Log("msg", "cannot watch directory", "dir", name, "err", err)
					}
				}
			}
			level.Debug(w.logger).Log("msg", "change", "path", name, "op", event.Op.String())
			if pending {
				timer.Stop()
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case <-timer.C:
			pending = false
			if err := w.fn(ctx); err != nil {
				level.Error(w.logger).Log("msg", "reload failed", "err", err)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			level.Error(w.logger).Log("msg", "fsnotify error", "err", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// addAll adds the directory and all its subdirectories to the watcher.
func (w *Watcher) addAll(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fw.Add(path)
		}
		return nil
	})
}
