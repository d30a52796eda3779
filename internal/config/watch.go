package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/pubnub/pntx/internal/telemetry/log"
)

// Watcher reloads a Config from path whenever the file changes, publishing
// each successful reload to a Store. Grounded on the teacher's
// internal/runtime/vfs/watch_fsnotify.go: a single fsnotify.Watcher whose
// event loop runs on its own goroutine and is torn down by Close.
type Watcher struct {
	w      *fsnotify.Watcher
	path   string
	store  *Store
	logger log.Logger
	done   chan struct{}
}

// NewWatcher starts watching path for changes, reloading into store on
// every write/create event. The initial load must already have happened
// (store.Get() returns it); NewWatcher only arms the reload path.
func NewWatcher(path string, store *Store, logger log.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, err
	}

	watcher := &Watcher{w: w, path: path, store: store, logger: logger, done: make(chan struct{})}
	go watcher.loop()
	return watcher, nil
}

func (wt *Watcher) loop() {
	defer close(wt.done)
	for {
		select {
		case ev, ok := <-wt.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(wt.path)
			if err != nil {
				wt.logger.Warn("config reload failed, keeping previous snapshot", "path", wt.path, "error", err.Error())
				continue
			}
			wt.store.Set(cfg)
			wt.logger.Info("config reloaded", "path", wt.path)
		case err, ok := <-wt.w.Errors:
			if !ok {
				return
			}
			wt.logger.Warn("config watcher error", "path", wt.path, "error", err.Error())
		}
	}
}

// Close stops the watcher and waits for its event loop to exit.
func (wt *Watcher) Close() error {
	err := wt.w.Close()
	<-wt.done
	return err
}
