package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"etude/internal/logging"
	"etude/internal/store"
)

// Watcher watches the data directory and re-syncs a song folder after its
// files settle. fsnotify does not recurse, so newly created song folders are
// added to the watch list as they appear.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	st          *store.Store
	dataDir     string
	debounceMap map[string]time.Time // song folder name -> last event
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for debugging.
type WatcherStats struct {
	FilesChanged  int
	FoldersSynced int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// NewWatcher creates a Watcher for the given data directory.
func NewWatcher(st *store.Store, dataDir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		st:          st,
		dataDir:     dataDir,
		debounceMap: make(map[string]time.Time),
		debounceDur: 2 * time.Second, // Fragment exports arrive as bursts
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetDebounce overrides the settle window. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounceDur = d
	}
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dataDir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	entries, err := os.ReadDir(w.dataDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
				if err := w.watcher.Add(filepath.Join(w.dataDir, entry.Name())); err != nil {
					logging.LibraryWarn("failed to watch %s: %v", entry.Name(), err)
				}
			}
		}
	}
	logging.Library("watching %s", w.dataDir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.LibraryWarn("error closing watcher: %v", err)
	}
	logging.Library("watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.LibraryWarn("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processSettled()
		}
	}
}

// handleEvent maps a filesystem event to the song folder it belongs to and
// records it for debounced processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.dataDir, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	folder := rel
	if i := strings.IndexByte(rel, filepath.Separator); i >= 0 {
		folder = rel[:i]
	}
	if strings.HasPrefix(folder, ".") {
		return
	}

	// A new top-level directory is a new song folder; watch inside it.
	if folder == rel && event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				logging.LibraryWarn("failed to watch new folder %s: %v", folder, err)
			} else {
				logging.LibraryDebug("watching new folder %s", folder)
			}
			w.schedule(folder, event.Name)
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext != ".musicxml" && ext != ".mxl" {
		return
	}
	w.schedule(folder, event.Name)
}

func (w *Watcher) schedule(folder, path string) {
	w.mu.Lock()
	w.debounceMap[folder] = time.Now()
	w.stats.FilesChanged++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = path
	w.mu.Unlock()
}

// processSettled re-syncs folders whose events have settled past the
// debounce window.
func (w *Watcher) processSettled() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for folder, last := range w.debounceMap {
		if now.Sub(last) >= w.debounceDur {
			settled = append(settled, folder)
			delete(w.debounceMap, folder)
		}
	}
	w.mu.Unlock()

	for _, folder := range settled {
		if err := SyncFolder(w.st, w.dataDir, folder); err != nil {
			logging.LibraryWarn("failed to sync %s: %v", folder, err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			continue
		}
		logging.Library("re-synced %s", folder)
		w.mu.Lock()
		w.stats.FoldersSynced++
		w.mu.Unlock()
	}
}

// Stats returns a copy of the current watcher statistics.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
