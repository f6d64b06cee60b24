package ruledefs

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/triage/pkg/triage/logging"
)

// Watcher reloads a Manager's definitions when its file changes on disk.
// Active job snapshots keep the definitions they captured; only jobs
// started after the reload see the new rule sets.
type Watcher struct {
	manager *Manager
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWatcher creates a watcher for the manager's definitions file and
// starts reloading on changes.
func NewWatcher(m *Manager) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file: editors that replace the
	// file on save would otherwise drop the watch.
	if err := fsw.Add(filepath.Dir(m.Path())); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		manager: m,
		watcher: fsw,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// loop handles filesystem events until Close.
func (w *Watcher) loop() {
	logger := logging.Get("ruledefs")
	target := filepath.Clean(w.manager.Path())

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.manager.Reload(); err != nil {
				logger.Error("reloading rule definitions", "path", target, "error", err)
				continue
			}
			logger.Info("rule definitions reloaded", "path", target)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("watching rule definitions", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.watcher.Close()
}
