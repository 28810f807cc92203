// Package watch emits debounced change events for item-definition files.
//
// The watcher monitors an item tree recursively with fsnotify. Raw
// filesystem notifications are noisy: a single save can produce several
// writes, and bulk operations touch many paths at once. Events are
// therefore folded per path and emitted only once the path has stayed
// quiet for a stability window (default 100ms), with the final operation
// winning. Directories created after the watch starts are picked up as
// they appear, along with any definition files already inside them.
//
// Files present when the watch starts produce no events; callers are
// expected to build their initial state with a scan.
package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/trellisdev/trellis/internal/item"
)

// Config holds watcher tuning.
type Config struct {
	// Window is how long a path must stay quiet before its pending change
	// is emitted. Rapid rewrites within the window collapse into one event.
	Window time.Duration

	// Tick is how often pending changes are checked for emission.
	Tick time.Duration

	// Logger for watcher activity.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Window: 100 * time.Millisecond,
		Tick:   25 * time.Millisecond,
		Logger: slog.Default(),
	}
}

// Watcher watches an item tree recursively and emits one Event per settled
// change to a definition file.
type Watcher struct {
	root    string
	config  *Config
	fsw     *fsnotify.Watcher
	pending *coalescer
	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a watcher for the item tree rooted at root. The watcher must
// be started with Start before it emits events.
func New(root string, config *Config) (*Watcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	if config.Tick <= 0 {
		config.Tick = DefaultConfig().Tick
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		root:    root,
		config:  config,
		fsw:     fsw,
		pending: newCoalescer(config.Window),
		events:  make(chan Event, 100),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the item tree. Starting a running watcher is a
// no-op. Start fails when the root cannot be watched at all, including
// when it does not exist; use errors.Is with fs.ErrNotExist to
// distinguish that case.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch item root %s: %w", w.root, err)
	}

	w.running = true
	w.wg.Add(2)
	go w.processRaw()
	go w.flushLoop()

	return nil
}

// Stop stops watching and closes the Events channel. It blocks until the
// background goroutines have exited. Stopping a watcher that never started
// is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()
	close(w.events)

	return nil
}

// Events returns the channel of settled change events. The channel is
// closed when the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// IsRunning reports whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addRecursive registers dir and every directory below it. Unreadable
// subdirectories are logged and skipped; only a failure at the top of the
// walk is fatal.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.config.Logger.Warn("skipping unwatchable directory", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.config.Logger.Warn("failed to watch directory", "path", path, "error", err)
			return fs.SkipDir
		}
		return nil
	})
}

// processRaw is the main loop draining fsnotify notifications into the
// coalescer.
func (w *Watcher) processRaw() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.config.Logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleRaw(event fsnotify.Event) {
	now := time.Now()

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watchNewDir(event.Name, now)
			return
		}
		if filepath.Base(event.Name) == item.DefinitionFile {
			w.pending.Observe(event.Name, rawCreate, now)
		}

	case event.Has(fsnotify.Write):
		if filepath.Base(event.Name) == item.DefinitionFile {
			w.pending.Observe(event.Name, rawWrite, now)
		}

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename behaves like a remove; the new name arrives as its own
		// create event.
		if filepath.Base(event.Name) == item.DefinitionFile {
			w.pending.Observe(event.Name, rawRemove, now)
		}
	}
}

// watchNewDir registers a directory created after the watch started and
// surfaces definition files already inside it, which would otherwise be
// missed when a whole item directory lands at once.
func (w *Watcher) watchNewDir(dir string, now time.Time) {
	if err := w.addRecursive(dir); err != nil {
		w.config.Logger.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == item.DefinitionFile {
			w.pending.Observe(path, rawCreate, now)
		}
		return nil
	})
}

// flushLoop periodically emits changes whose stability window has elapsed.
func (w *Watcher) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case <-ticker.C:
			for _, ev := range w.pending.Due(time.Now()) {
				w.config.Logger.Debug("file settled", "op", ev.Op, "path", ev.Path)
				select {
				case w.events <- ev:
				case <-w.done:
					return
				}
			}
		}
	}
}
