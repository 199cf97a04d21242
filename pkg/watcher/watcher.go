// Package watcher turns a drop folder into a stream of files to ingest.
//
// Created or rewritten files are reported once they have been quiet for the
// debounce interval, so a file copied in several writes is ingested once.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Dir is the folder to watch. Subfolders are not watched.
	Dir string

	// Accept filters paths. Nil accepts everything.
	Accept func(path string) bool

	Debounce time.Duration

	// ScanExisting reports files already in Dir when Run starts.
	ScanExisting bool

	Logger *slog.Logger
}

// Watcher reports settled files in a folder.
type Watcher struct {
	fs       *fsnotify.Watcher
	dir      string
	accept   func(string) bool
	debounce time.Duration
	scan     bool
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string

	closeOnce sync.Once
	closed    chan struct{}
}

// New starts watching cfg.Dir.
func New(cfg Config) (*Watcher, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch folder %s is not a directory", cfg.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", cfg.Dir, err)
	}

	w := &Watcher{
		fs:       fsw,
		dir:      cfg.Dir,
		accept:   cfg.Accept,
		debounce: cfg.Debounce,
		scan:     cfg.ScanExisting,
		logger:   cfg.Logger,
		pending:  make(map[string]*time.Timer),
		ready:    make(chan string, 64),
		closed:   make(chan struct{}),
	}
	if w.accept == nil {
		w.accept = func(string) bool { return true }
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	return w, nil
}

// Run calls handle for every settled file until ctx is done. handle runs on
// the Run goroutine, one file at a time.
func (w *Watcher) Run(ctx context.Context, handle func(ctx context.Context, path string)) error {
	if w.scan {
		if err := w.scanExisting(); err != nil {
			return err
		}
	}

	w.logger.Info("watching folder", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil

		case path := <-w.ready:
			handle(ctx, path)

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.accept(event.Name) {
				w.logger.Debug("ignoring file", "path", event.Name)
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watch events overflowed, rescanning folder")
				if err := w.scanExisting(); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		w.stopTimers()
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) scanExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", w.dir, err)
	}
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if e.Type().IsRegular() && w.accept(path) {
			w.schedule(path)
		}
	}
	return nil
}

// schedule (re)starts the quiet-period timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.closed:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
