package main

import (
	"context"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 150 * time.Millisecond

// DirectoryWatcher signals when the set of images in a folder, or the
// content of one of them, may have changed. Bursts of events are coalesced
// into one signal.
type DirectoryWatcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	events    chan struct{}

	mu       sync.Mutex
	timer    *time.Timer
	written  map[string]struct{} // paths created or rewritten since the last TakeWritten
	closed   bool
	closeErr error
	once     sync.Once
}

// NewDirectoryWatcher watches dir (not its subfolders)
func NewDirectoryWatcher(dir string) (*DirectoryWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, &IoError{Path: dir, Err: err}
	}

	return &DirectoryWatcher{
		fsWatcher: fsw,
		dir:       dir,
		debounce:  watchDebounce,
		events:    make(chan struct{}, 1),
		written:   make(map[string]struct{}),
	}, nil
}

// Events receives one value per coalesced burst of relevant changes
func (w *DirectoryWatcher) Events() <-chan struct{} {
	return w.events
}

// Run processes filesystem events until ctx ends or the watcher is closed
func (w *DirectoryWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			debugLog("Watcher: %s %s", event.Op, filepath.Base(event.Name))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.mu.Lock()
				w.written[event.Name] = struct{}{}
				w.mu.Unlock()
			}
			w.schedule()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Warning: Directory watcher on %s: %v", w.dir, err)
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (w *DirectoryWatcher) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		w.closeErr = w.fsWatcher.Close()
	})
	return w.closeErr
}

// TakeWritten returns the image paths created or rewritten since the last
// call, sorted, and forgets them
func (w *DirectoryWatcher) TakeWritten() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.written) == 0 {
		return nil
	}
	paths := make([]string, 0, len(w.written))
	for path := range w.written {
		paths = append(paths, path)
	}
	w.written = make(map[string]struct{})
	sort.Strings(paths)
	return paths
}

// relevant reports whether event can change the folder's image list
func (w *DirectoryWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return false
	}
	return isSupportedExt(event.Name)
}

func (w *DirectoryWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			return
		}
		select {
		case w.events <- struct{}{}:
		default: // a signal is already pending
		}
	})
}
