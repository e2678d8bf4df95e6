// Package watcher delivers debounced batches of file changes under a set of
// directory trees.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jestersw/codeparser/pkg/ignore"
)

const DefaultDebounceDelay = 500 * time.Millisecond

type Config struct {
	Paths []string
	// Root is the directory ignore patterns are relative to. Defaults to
	// the first path.
	Root          string
	DebounceDelay time.Duration
	// Ignore filters directories and files. Built-in defaults when nil.
	Ignore     *ignore.Matcher
	FileFilter func(path string) bool
	Logger     *zap.Logger
}

type FileChangeHandler interface {
	OnChanges(files map[string]fsnotify.Op)
}

type FileChangeHandlerFunc func(files map[string]fsnotify.Op)

func (f FileChangeHandlerFunc) OnChanges(files map[string]fsnotify.Op) {
	f(files)
}

type Watcher struct {
	fsnotify  *fsnotify.Watcher
	config    Config
	log       *zap.Logger
	handlers  []FileChangeHandler
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	startTime time.Time

	mu           sync.Mutex
	pending      map[string]fsnotify.Op
	debounceOnce sync.Once
	watchPaths   []string
	dirsWatched  int
}

func New(config Config, handlers ...FileChangeHandler) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultDebounceDelay
	}
	if config.Ignore == nil {
		config.Ignore = ignore.NewFromDefaults()
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Watcher{
		fsnotify: fsWatcher,
		config:   config,
		log:      log,
		handlers: handlers,
		stop:     make(chan struct{}),
		pending:  make(map[string]fsnotify.Op),
	}, nil
}

func (w *Watcher) AddHandler(h FileChangeHandler) {
	w.handlers = append(w.handlers, h)
}

func (w *Watcher) Start() error {
	paths := w.config.Paths
	if len(paths) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		paths = []string{cwd}
	}
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		if a, err := filepath.Abs(p); err == nil {
			p = a
		}
		abs = append(abs, p)
	}
	paths = abs
	if w.config.Root == "" {
		w.config.Root = paths[0]
	}

	w.watchPaths = paths

	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if path != root && w.skipDir(path) {
				return filepath.SkipDir
			}
			w.addDir(path)
			return nil
		})
		if err != nil {
			return err
		}
	}

	w.startTime = time.Now()
	w.wg.Add(1)
	go w.processEvents()

	w.log.Info("watching",
		zap.Int("dirs", w.dirsWatched),
		zap.Strings("paths", paths),
		zap.Duration("debounce", w.config.DebounceDelay))
	return nil
}

func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
	return w.fsnotify.Close()
}

func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return WatcherStats{
		Paths:        w.watchPaths,
		DirsWatched:  w.dirsWatched,
		Debounce:     w.config.DebounceDelay,
		PendingFiles: len(w.pending),
		Uptime:       time.Since(w.startTime),
	}
}

type WatcherStats struct {
	Paths        []string
	DirsWatched  int
	Debounce     time.Duration
	PendingFiles int
	Uptime       time.Duration
}

func (w *Watcher) rel(path string) string {
	if rel, err := filepath.Rel(w.config.Root, path); err == nil {
		return rel
	}
	return path
}

func (w *Watcher) skipDir(path string) bool {
	return w.config.Ignore.ShouldIgnoreDir(w.rel(path))
}

func (w *Watcher) addDir(path string) {
	if err := w.fsnotify.Add(path); err != nil {
		w.log.Debug("cannot watch directory", zap.String("dir", path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.dirsWatched++
	w.mu.Unlock()
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.skipDir(event.Name) {
						w.addDir(event.Name)
						w.log.Debug("watching new directory", zap.String("dir", event.Name))
					}
					continue
				}
			}

			if w.config.FileFilter != nil && !w.config.FileFilter(event.Name) {
				continue
			}

			name := filepath.Base(event.Name)
			if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") || strings.HasSuffix(name, ".tmp") {
				continue
			}
			if w.config.Ignore.ShouldIgnoreFile(w.rel(event.Name)) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.queueChange(event.Name, event.Op)
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) queueChange(path string, op fsnotify.Op) {
	w.mu.Lock()
	w.pending[path] = op
	w.debounceOnce.Do(func() {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			select {
			case <-time.After(w.config.DebounceDelay):
				w.flushPending()
			case <-w.stop:
				return
			}
		}()
	})
	w.mu.Unlock()
}

func (w *Watcher) flushPending() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.debounceOnce = sync.Once{}
	w.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	w.log.Debug("processing file changes", zap.Int("files", len(pending)))

	for _, h := range w.handlers {
		h.OnChanges(pending)
	}
}

// IsRemove reports whether op means the path no longer exists.
func IsRemove(op fsnotify.Op) bool {
	return op&(fsnotify.Remove|fsnotify.Rename) != 0
}
