// watcher.go: Change notification for stored configs
//
// A Watcher observes the active directories of one or more categories and
// reports config files that were created, updated or deleted, whether by
// this process or another one. Bursts of events on one config are merged
// into a single notification.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"github.com/fsnotify/fsnotify"
)

// ChangeOperation is the kind of change reported for a config.
type ChangeOperation string

const (
	OperationCreate ChangeOperation = "create"
	OperationUpdate ChangeOperation = "update"
	OperationDelete ChangeOperation = "delete"
)

// ChangeEvent reports one (debounced) change to a config file.
type ChangeEvent struct {
	Category  string          `json:"category"`
	Name      string          `json:"name"`
	Operation ChangeOperation `json:"operation"`
	Timestamp time.Time       `json:"timestamp"`
	Path      string          `json:"path"`
}

// ChangeHandler receives change events, one at a time.
type ChangeHandler func(ChangeEvent)

// WatcherConfig tunes a Watcher.
type WatcherConfig struct {
	// Debounce is the quiet period before an event is delivered.
	// Defaults to 200ms.
	Debounce time.Duration

	// QueueSize bounds undelivered events; extra events are dropped.
	// Defaults to 64.
	QueueSize int

	Logger Logger
}

// Watcher delivers ChangeEvents for watched categories.
type Watcher struct {
	mu      sync.Mutex
	cfg     WatcherConfig
	handler ChangeHandler
	log     Logger
	fsw     *fsnotify.Watcher
	dirs    map[string]string         // directory -> category
	known   map[string]bool           // category/name present on disk
	pending map[string]*debounceEntry // category/name -> queued event
	queue   chan ChangeEvent
	stopCh  chan struct{}
	done    sync.WaitGroup
	running bool
	stopped bool
}

type debounceEntry struct {
	event ChangeEvent
	timer *time.Timer
}

// NewWatcher returns a stopped watcher that will call handler.
func NewWatcher(cfg WatcherConfig, handler ChangeHandler) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 200 * time.Millisecond
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = NewDiscardLogger()
	}
	return &Watcher{
		cfg:     cfg,
		handler: handler,
		log:     cfg.Logger,
		dirs:    make(map[string]string),
		known:   make(map[string]bool),
		pending: make(map[string]*debounceEntry),
	}
}

// AddCategory watches dir as the active directory of category. The
// directory is created if missing.
func (w *Watcher) AddCategory(category, dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return errors.New(ErrCodeWatcherStopped, "watcher has been stopped")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ioFailure(err, "failed to create watched directory", dir)
	}
	clean := filepath.Clean(dir)
	w.dirs[clean] = category

	entries, err := os.ReadDir(clean)
	if err != nil {
		return ioFailure(err, "failed to scan watched directory", clean)
	}
	for _, e := range entries {
		if name, ok := configNameFromFile(e.Name()); ok {
			w.known[configKey(category, name)] = true
		}
	}

	if w.running {
		if err := w.fsw.Add(clean); err != nil {
			return ioFailure(err, "failed to watch directory", clean)
		}
	}
	return nil
}

// Start begins delivering events. It fails with WatcherBusy when already
// running and WatcherStopped after Stop. Cancelling ctx stops the watcher.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return errors.New(ErrCodeWatcherStopped, "watcher has been stopped")
	}
	if w.running {
		return errors.New(ErrCodeWatcherBusy, "watcher is already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to create filesystem watcher")
	}
	for dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return ioFailure(err, "failed to watch directory", dir)
		}
	}

	w.fsw = fsw
	w.queue = make(chan ChangeEvent, w.cfg.QueueSize)
	w.stopCh = make(chan struct{})
	w.running = true

	w.done.Add(2)
	go w.processEvents(ctx)
	go w.dispatch()

	w.log.Debug("watcher started", "directories", len(w.dirs))
	return nil
}

// IsRunning reports whether the watcher is delivering events.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stop halts delivery and waits for the handler to return. Pending
// debounced events are discarded. Stop is idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	for key, entry := range w.pending {
		entry.timer.Stop()
		delete(w.pending, key)
	}
	fsw := w.fsw
	w.mu.Unlock()

	err := fsw.Close()
	w.done.Wait()
	w.log.Debug("watcher stopped")
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to close filesystem watcher")
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.done.Done()
	for {
		select {
		case <-ctx.Done():
			go func() { _ = w.Stop() }()
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) dispatch() {
	defer w.done.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case event := <-w.queue:
			if w.handler != nil {
				w.handler(event)
			}
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	name, ok := configNameFromFile(filepath.Base(event.Name))
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	category, ok := w.dirs[filepath.Dir(event.Name)]
	if !ok {
		return
	}
	key := configKey(category, name)

	var op ChangeOperation
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		// atomic saves arrive as a rename onto an existing name
		op = OperationCreate
		if w.known[key] {
			op = OperationUpdate
		}
		w.known[key] = true
	case event.Op&fsnotify.Write == fsnotify.Write:
		op = OperationUpdate
		w.known[key] = true
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OperationDelete
		delete(w.known, key)
	default:
		return
	}

	change := ChangeEvent{
		Category:  category,
		Name:      name,
		Operation: op,
		Timestamp: timecache.CachedTime(),
		Path:      event.Name,
	}
	w.debounceLocked(key, change)
}

// debounceLocked queues change, merging it with a pending event for the
// same config. Caller holds w.mu.
func (w *Watcher) debounceLocked(key string, change ChangeEvent) {
	if entry, ok := w.pending[key]; ok {
		entry.timer.Stop()
		change.Operation = mergeOperations(entry.event.Operation, change.Operation)
	}

	entry := &debounceEntry{event: change}
	entry.timer = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		current, ok := w.pending[key]
		if ok && current == entry {
			delete(w.pending, key)
		}
		running := w.running
		w.mu.Unlock()
		if !ok || current != entry || !running {
			return
		}
		select {
		case w.queue <- entry.event:
		default:
			w.log.Warn("change queue full, dropping event",
				"category", entry.event.Category, "name", entry.event.Name)
		}
	})
	w.pending[key] = entry
}

// mergeOperations folds two consecutive operations on one config.
func mergeOperations(old, next ChangeOperation) ChangeOperation {
	switch {
	case old == OperationCreate && next == OperationDelete:
		return OperationDelete
	case old == OperationCreate:
		return OperationCreate
	case old == OperationDelete && next != OperationDelete:
		return OperationUpdate
	default:
		return next
	}
}

// Watch starts a Watcher over the given categories (the default category
// when none is given). External changes are recorded in the audit trail.
// The watcher is stopped by Close or by cancelling ctx.
func (m *Manager) Watch(ctx context.Context, handler ChangeHandler, categories ...string) (*Watcher, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		categories = []string{m.config.DefaultCategory}
	}

	w := NewWatcher(WatcherConfig{Logger: m.log}, func(ev ChangeEvent) {
		m.audit.Log(AuditInfo, EventExternalChange, ev.Category, ev.Name, "", nil, nil,
			map[string]any{"operation": string(ev.Operation)})
		if handler != nil {
			handler(ev)
		}
	})
	for _, c := range categories {
		a, err := m.adapter(m.category(c))
		if err != nil {
			return nil, err
		}
		fa, ok := a.(*FileAdapter)
		if !ok {
			return nil, errors.New(ErrCodeInvalidConfig, "watching requires file-backed storage").
				WithContext("category", a.Category())
		}
		if err := w.AddCategory(fa.Category(), fa.ActiveDir()); err != nil {
			return nil, err
		}
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	if err := m.trackWatcher(w); err != nil {
		return nil, err
	}
	return w, nil
}

// trackWatcher registers w for Close. Close marks the manager closed before
// collecting watchers, so a watcher arriving afterwards is stopped here.
func (m *Manager) trackWatcher(w *Watcher) error {
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		_ = w.Stop()
		return errors.New(ErrCodeManagerClosed, "manager is closed")
	}
	m.watchers = append(m.watchers, w)
	m.mu.Unlock()
	return nil
}
