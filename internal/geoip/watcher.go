package geoip

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
)

const defaultReloadDelay = 2 * time.Second

// Watcher reopens the databases behind a Source when their files change on disk.
// Parent directories are watched rather than the files so that atomic
// replacement by rename is seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	source   *Source
	paths    map[string]Kind
	opts     OpenOptions
	onReload func(Kind)
	delay    time.Duration
	logger   *pterm.Logger

	mu      sync.Mutex
	pending map[Kind]bool
	timer   *time.Timer
	closed  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher starts watching asnPath and cityPath (either may be empty).
// onReload runs after each successful swap.
func NewWatcher(source *Source, asnPath, cityPath string, opts OpenOptions, onReload func(Kind), logger *pterm.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithCaller().Error("Failed to create GeoIP database watcher", logger.Args("error", err))
		return nil, err
	}

	w := &Watcher{
		watcher:  watcher,
		source:   source,
		paths:    make(map[string]Kind),
		opts:     opts,
		onReload: onReload,
		delay:    defaultReloadDelay,
		logger:   logger,
		pending:  make(map[Kind]bool),
		stopCh:   make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for path, kind := range map[string]Kind{asnPath: KindASN, cityPath: KindCity} {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		w.paths[clean] = kind
		dirs[filepath.Dir(clean)] = true
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("Failed to watch GeoIP database directory", logger.Args("dir", dir, "error", err))
			continue
		}
		logger.Debug("Started watching GeoIP database directory", logger.Args("dir", dir))
	}

	w.wg.Add(1)
	go w.eventLoop()

	logger.Info("GeoIP database watcher initialized", logger.Args("files", len(w.paths)))
	return w, nil
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			w.logger.Debug("GeoIP database watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Warn("GeoIP watcher events channel closed")
				return
			}
			kind, tracked := w.paths[filepath.Clean(event.Name)]
			if !tracked {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("GeoIP database change detected",
				w.logger.Args("file", event.Name, "op", event.Op.String()))
			w.schedule(kind)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.logger.Warn("GeoIP watcher errors channel closed")
				return
			}
			w.logger.WithCaller().Error("GeoIP database watcher error", w.logger.Args("error", err))
		}
	}
}

// schedule debounces bursts of events (a download usually produces several
// writes) into a single reload.
func (w *Watcher) schedule(kind Kind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[kind] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.flush)
}

// flush is tracked by wg so that Close waits for a reload already under way.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	kinds := w.pending
	w.pending = make(map[Kind]bool)
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	for kind := range kinds {
		w.Reload(kind)
	}
}

// Reload reopens the database of the given kind and swaps it into the source.
// A failed reopen keeps the current reader, and so does a closed watcher.
func (w *Watcher) Reload(kind Kind) bool {
	path := w.pathFor(kind)
	if path == "" {
		return false
	}

	db, err := Open(path, kind, w.opts)
	if err != nil {
		w.logger.WithCaller().Error("Failed to reload GeoIP database, keeping current one",
			w.logger.Args("kind", string(kind), "path", path, "error", err))
		return false
	}

	select {
	case <-w.stopCh:
		db.Close()
		w.logger.Debug("GeoIP watcher closed, discarding reloaded database", w.logger.Args("kind", string(kind)))
		return false
	default:
	}

	switch kind {
	case KindASN:
		w.source.SwapASN(db)
	case KindCity:
		w.source.SwapCity(db)
	}

	info := db.Info()
	w.logger.Info("Reloaded GeoIP database",
		w.logger.Args("kind", string(kind), "type", info.DatabaseType, "build_time", info.BuildTime))

	if w.onReload != nil {
		w.onReload(kind)
	}
	return true
}

func (w *Watcher) pathFor(kind Kind) string {
	for path, k := range w.paths {
		if k == kind {
			return path
		}
	}
	return ""
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.logger.Debug("Closing GeoIP database watcher...")
	close(w.stopCh)

	if err := w.watcher.Close(); err != nil {
		w.logger.WithCaller().Error("Failed to close GeoIP database watcher", w.logger.Args("error", err))
		return err
	}
	w.wg.Wait()
	return nil
}
