package config

import (
	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// Watcher reloads the server when its config files change on disk.
type Watcher struct {
	paths []string
	close func() error
}

// NewWatcher watches the given config file paths. Empty paths are skipped.
func NewWatcher(paths ...string) *Watcher {
	filtered := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	return &Watcher{paths: filtered}
}

// Watch invokes onChange on every filesystem event touching the watched
// paths. Watch errors are logged and do not stop the watch loop.
func (w *Watcher) Watch(onChange func() error) {
	if len(w.paths) == 0 {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		klog.Warningf("config watch disabled: %v", err)
		return
	}
	for _, file := range w.paths {
		if err := watcher.Add(file); err != nil {
			klog.V(2).Infof("not watching %s: %v", file, err)
		}
	}
	go func() {
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				if err := onChange(); err != nil {
					klog.Warningf("config reload failed: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				klog.V(2).Infof("config watch error: %v", err)
			}
		}
	}()
	if w.close != nil {
		_ = w.close()
	}
	w.close = watcher.Close
}

func (w *Watcher) Close() error {
	if w.close != nil {
		return w.close()
	}
	return nil
}
