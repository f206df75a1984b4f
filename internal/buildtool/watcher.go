package buildtool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the default debounce interval for file events.
// Build tools write archives incrementally; the window lets the final
// write settle before a rewrite starts.
const debounceDefault = 500 * time.Millisecond

// maxConcurrentRewrites limits how many archives are rewritten
// simultaneously. Prevents resource exhaustion when a clean build
// drops a whole directory of outputs at once.
const maxConcurrentRewrites = 4

// maxQueueSize is the buffer size for the work queue channel. Must be
// larger than maxConcurrentRewrites to absorb bursts without blocking
// the debounce flush.
const maxQueueSize = 100

// pollDefault is the default polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// DirWatcher watches a build output directory and hands every settled
// archive to the handler.
type DirWatcher struct {
	dir      string
	handler  func(path string)
	debounce time.Duration
}

// NewDirWatcher creates a watcher for a build output directory. A zero
// debounce selects the default window.
func NewDirWatcher(dir string, handler func(path string), debounce time.Duration) *DirWatcher {
	if debounce == 0 {
		debounce = debounceDefault
	}
	return &DirWatcher{
		dir:      dir,
		handler:  handler,
		debounce: debounce,
	}
}

// Run watches the directory for new or rewritten archives. Blocks
// until ctx is cancelled.
func (w *DirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	// ready collects paths that passed debounce. A single timer resets
	// on each event; when it fires, all accumulated paths flush to the
	// work queue. No per-file goroutines.
	var mu sync.Mutex
	ready := make(map[string]bool)

	queue := make(chan string, maxQueueSize)

	// Fixed worker pool, the only goroutines besides the main loop.
	var wg sync.WaitGroup
	for i := 0; i < maxConcurrentRewrites; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				func() {
					defer func() {
						if r := recover(); r != nil {
							_ = r
						}
					}()
					w.handler(path)
				}()
			}
		}()
	}

	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		for _, p := range batch {
			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}

	// Single debounce timer, reset on each event. Initialized as
	// stopped; first event starts it.
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()

	defer func() {
		debounceTimer.Stop()
		flush()
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isArchiveFile(event.Name) {
				continue
			}

			mu.Lock()
			ready[event.Name] = true
			mu.Unlock()

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = err
		}
	}
}

// PollWatcher watches a directory for new archives using polling. Used
// as a fallback when fsnotify is unavailable (e.g., NFS).
type PollWatcher struct {
	dir      string
	handler  func(path string)
	interval time.Duration
	seen     map[string]bool
}

// NewPollWatcher creates a polling-based watcher.
func NewPollWatcher(dir string, handler func(path string), interval time.Duration) *PollWatcher {
	if interval == 0 {
		interval = pollDefault
	}
	return &PollWatcher{
		dir:      dir,
		handler:  handler,
		interval: interval,
		seen:     make(map[string]bool),
	}
}

// Run polls the directory. Blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *PollWatcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if !isArchiveFile(path) {
			continue
		}
		if w.seen[path] {
			continue
		}
		w.seen[path] = true
		w.handler(path)
	}
}

// ScanExisting hands archives already present in the directory to the
// handler. Called at watch startup to cover builds that finished
// before the watcher came up.
func ScanExisting(dir string, handler func(path string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if isArchiveFile(path) {
			handler(path)
		}
	}
	return nil
}

// isArchiveFile returns true for .zip files that are not our own
// in-progress temp outputs or partial writes.
func isArchiveFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasSuffix(name, ".tmp") || strings.Contains(name, ".stackwarden-temp") {
		return false
	}
	return strings.HasSuffix(name, ".zip")
}
