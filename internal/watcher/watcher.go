// Package watcher monitors session working directories and notifies the
// gateway when their contents change, so attached file pickers can refresh.
package watcher

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 500 * time.Millisecond

// ChangeCallback is called (debounced) when a watched directory changes.
type ChangeCallback func(sessionID, path string)

// Watcher tracks one fsnotify watch per session.
type Watcher struct {
	mu       sync.Mutex
	watchers map[string]*sessionWatcher
	callback ChangeCallback
	log      *slog.Logger
}

type sessionWatcher struct {
	sessionID string
	dir       string
	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}
}

// New creates a watcher. The callback may be nil.
func New(callback ChangeCallback, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		watchers: make(map[string]*sessionWatcher),
		callback: callback,
		log:      log.With("component", "watcher"),
	}
}

// Watch starts watching a directory for a given session. A previous watch
// for the same session is replaced.
func (w *Watcher) Watch(sessionID, dir string) error {
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsW.Add(dir); err != nil {
		fsW.Close()
		return err
	}

	sw := &sessionWatcher{
		sessionID: sessionID,
		dir:       dir,
		fsWatcher: fsW,
		cancel:    make(chan struct{}),
	}

	w.mu.Lock()
	if old, ok := w.watchers[sessionID]; ok {
		close(old.cancel)
		old.fsWatcher.Close()
	}
	w.watchers[sessionID] = sw
	w.mu.Unlock()

	go w.watchLoop(sw)
	return nil
}

// Unwatch stops watching a session's directory. Unknown ids are a no-op.
func (w *Watcher) Unwatch(sessionID string) {
	w.mu.Lock()
	sw, ok := w.watchers[sessionID]
	if ok {
		delete(w.watchers, sessionID)
	}
	w.mu.Unlock()

	if ok {
		close(sw.cancel)
		sw.fsWatcher.Close()
	}
}

// watchLoop coalesces fsnotify events with a debounce timer.
func (w *Watcher) watchLoop(sw *sessionWatcher) {
	var timer *time.Timer

	for {
		select {
		case <-sw.cancel:
			if timer != nil {
				timer.Stop()
			}
			return

		case _, ok := <-sw.fsWatcher.Events:
			if !ok {
				return
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceInterval, func() {
				if w.callback != nil {
					w.callback(sw.sessionID, sw.dir)
				}
			})

		case err, ok := <-sw.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "id", sw.sessionID, "err", err)
		}
	}
}

// Shutdown stops all watches.
func (w *Watcher) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, sw := range w.watchers {
		close(sw.cancel)
		sw.fsWatcher.Close()
		delete(w.watchers, id)
	}
}
