// Package layoutwatch monitors a keyboard layout file and emits reparsed
// geometry when it changes.
package layoutwatch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"glidetype/internal/geometry"
	"glidetype/internal/logging"
)

// Watcher reloads a layout file after it stabilizes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	log       *logging.Logger

	// Dirty tracking: the last write time, zero when clean.
	lastWrite time.Time
	stateMu   sync.Mutex

	events chan *geometry.Keyboard
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for the given layout file. The file must exist and
// parse when Start is called.
func New(path string, debounce time.Duration, log *logging.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Default()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		path:      absPath,
		debounce:  debounce,
		log:       log.WithComponent("layoutwatch"),
		events:    make(chan *geometry.Keyboard, 4),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of reloaded keyboards.
func (w *Watcher) Events() <-chan *geometry.Keyboard {
	return w.events
}

// Errors returns the channel of watch and parse errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start validates the layout, begins watching, and returns the initial
// keyboard.
func (w *Watcher) Start() (*geometry.Keyboard, error) {
	kb, err := geometry.Load(w.path)
	if err != nil {
		return nil, err
	}

	// Editors replace files rather than writing in place, so watch the
	// directory and filter to our path.
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return nil, err
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	w.log.Info("watching layout", "path", w.path, "name", kb.Name())
	return kb, nil
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}

			w.stateMu.Lock()
			w.lastWrite = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case now := <-ticker.C:
			if w.takeStable(now) {
				w.reload()
			}
		}
	}
}

// takeStable reports whether a pending write has settled for the debounce
// interval, and clears it if so.
func (w *Watcher) takeStable(now time.Time) bool {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	if w.lastWrite.IsZero() || now.Sub(w.lastWrite) < w.debounce {
		return false
	}
	w.lastWrite = time.Time{}
	return true
}

func (w *Watcher) reload() {
	if _, err := os.Stat(w.path); err != nil {
		// Replaced files briefly disappear; wait for the next write.
		return
	}

	kb, err := geometry.Load(w.path)
	if err != nil {
		w.log.Warn("layout reload failed", "path", w.path, "error", err)
		select {
		case w.errors <- err:
		default:
		}
		return
	}

	w.log.Info("layout reloaded", "path", w.path, "name", kb.Name(), "keys", kb.KeyCount())
	select {
	case w.events <- kb:
	default:
		// A newer reload is on its way; dropping the stale one is fine.
	}
}

// Path returns the watched layout file path.
func (w *Watcher) Path() string {
	return w.path
}
