package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/knowledge"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher ingests seed files dropped into the seed directory while the
// server runs. Events are debounced per file because editors emit bursts
// of writes for a single save.
type Watcher struct {
	store    *knowledge.Store
	dir      string
	debounce time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	debounceMap map[string]*time.Timer
	started     bool
	stopOnce    sync.Once
	done        chan struct{}
}

func NewWatcher(store *knowledge.Store, dir string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		store:       store,
		dir:         dir,
		debounce:    defaultDebounce,
		logger:      logger,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching seed directory", zap.String("dir", w.dir))
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".json") {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[ev.Name]; ok {
		t.Stop()
	}
	path := ev.Name
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.ingestFile(ctx, path)
	})
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	examples, err := LoadFile(path)
	if err != nil {
		w.logger.Warn("ignoring unreadable seed file", zap.String("path", path), zap.Error(err))
		return
	}
	ids, err := w.store.Add(ctx, examples)
	if err != nil {
		w.logger.Warn("seed ingestion failed", zap.String("path", path), zap.Error(err))
		return
	}
	if len(ids) > 0 {
		if err := w.store.Persist(); err != nil {
			w.logger.Warn("persist after watch ingestion failed", zap.Error(err))
		}
	}
	w.logger.Info("ingested seed file",
		zap.String("file", filepath.Base(path)),
		zap.Int("inserted", len(ids)))
}

// Stop terminates the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		for _, t := range w.debounceMap {
			t.Stop()
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
	})
}
