package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the config file and invokes a callback with the
// re-loaded configuration when it changes. Writes are debounced so editors
// that write-then-rename only trigger one reload.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *log.Logger

	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pendingAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// debounceInterval is how long to wait before reloading after a change.
const debounceInterval = 250 * time.Millisecond

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string, logger *log.Logger, onChange func(*Config)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if logger == nil {
		logger = log.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins watching. The parent directory is watched rather than the
// file itself so atomic-rename saves are still observed.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.logger.Printf("Watching config: %s", w.path)

	w.wg.Add(2)
	go w.watchFileEvents()
	go w.processPending()

	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	w.cancel()
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) watchFileEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}

			w.pendingMu.Lock()
			w.pendingAt = time.Now()
			w.pendingMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) processPending() {
	defer w.wg.Done()

	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.pendingMu.Lock()
			pending := !w.pendingAt.IsZero() && time.Since(w.pendingAt) >= debounceInterval
			if pending {
				w.pendingAt = time.Time{}
			}
			w.pendingMu.Unlock()

			if !pending {
				continue
			}

			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Printf("Config reload failed: %v", err)
				continue
			}

			w.logger.Println("Config reloaded")
			if w.onChange != nil {
				w.onChange(cfg)
			}
		}
	}
}
