// Package dirwatch reports content changes of files in a single directory.
package dirwatch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the delay after the last fsnotify event for a
// file before its checksum is compared.
const DefaultDebounceInterval = 100 * time.Millisecond

type Option func(*Watcher)

// WithExtension restricts the watcher to files ending in ext.
func WithExtension(ext string) Option {
	return func(w *Watcher) {
		w.ext = ext
	}
}

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// Watcher watches a directory and reports the base name (without extension)
// of every file whose content changed or that was removed. Writes that leave
// the SHA256 checksum unchanged are not reported.
type Watcher struct {
	dir      string
	ext      string
	debounce time.Duration

	mu     sync.Mutex
	hashes map[string][sha256.Size]byte
	timers map[string]*time.Timer

	ready chan struct{} // closed once the watch is established; tests only
}

func New(dir string, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		debounce: DefaultDebounceInterval,
		hashes:   make(map[string][sha256.Size]byte),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. onChange is called sequentially from
// the Run goroutine. The directory is created if it does not exist.
func (w *Watcher) Run(ctx context.Context, onChange func(name string)) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watch directory %s: %w", w.dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}
	if err := w.seed(); err != nil {
		return err
	}
	slog.Info("watching directory", "dir", w.dir, "ext", w.ext)
	if w.ready != nil {
		close(w.ready)
	}

	changed := make(chan string, 64)
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			file := filepath.Base(event.Name)
			if !w.relevant(file) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			slog.Debug("detected filesystem event", "op", event.Op.String(), "file", event.Name)
			w.schedule(file, changed)

		case file := <-changed:
			if name, ok := w.check(file); ok {
				onChange(name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("fsnotify error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) relevant(file string) bool {
	if strings.HasSuffix(file, ".tmp") || strings.HasPrefix(file, ".") {
		return false
	}
	return w.ext == "" || strings.HasSuffix(file, w.ext)
}

// seed records the current checksums so the first write of an unchanged
// file is not reported.
func (w *Watcher) seed() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read watch directory %s: %w", w.dir, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() || !w.relevant(entry.Name()) {
			continue
		}
		h, err := HashFile(filepath.Join(w.dir, entry.Name()))
		if err != nil {
			continue
		}
		w.hashes[entry.Name()] = h
	}
	return nil
}

// schedule resets the debounce timer of file. When it fires the file name
// is handed back to the Run loop.
func (w *Watcher) schedule(file string, changed chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[file]; ok {
		t.Stop()
	}
	w.timers[file] = time.AfterFunc(w.debounce, func() {
		select {
		case changed <- file:
		default:
			slog.Warn("dropping change notification, queue full", "file", file)
		}
	})
}

// check compares the file's checksum with the last one seen.
func (w *Watcher) check(file string) (string, bool) {
	name := strings.TrimSuffix(file, w.ext)

	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.timers, file)

	old, known := w.hashes[file]
	h, err := HashFile(filepath.Join(w.dir, file))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to hash file after event", "file", file, "error", err)
			return "", false
		}
		if !known {
			return "", false
		}
		delete(w.hashes, file)
		return name, true
	}
	if known && h == old {
		slog.Debug("filesystem event but checksum unchanged, ignoring", "file", file)
		return "", false
	}
	w.hashes[file] = h
	return name, true
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for file, t := range w.timers {
		t.Stop()
		delete(w.timers, file)
	}
}

// HashFile computes the SHA256 hash of the file at the given path.
func HashFile(path string) ([sha256.Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("hash %s: %w", path, err)
	}

	var result [sha256.Size]byte
	copy(result[:], h.Sum(nil))
	return result, nil
}
