// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// collectEvents returns a handler feeding a buffered channel.
func collectEvents() (ChangeHandler, chan ChangeEvent) {
	ch := make(chan ChangeEvent, 16)
	return func(ev ChangeEvent) { ch <- ev }, ch
}

func waitEvent(t *testing.T, ch chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	m := newTestManager(t, Config{})
	handler, events := collectEvents()

	w, err := m.Watch(context.Background(), handler, "robots")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if !w.IsRunning() {
		t.Fatal("watcher not running")
	}

	if _, err := m.CreateConfig("robots", "arm"); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, events)
	if ev.Category != "robots" || ev.Name != "arm" || ev.Operation != OperationCreate {
		t.Errorf("create event = %+v", ev)
	}

	if _, err := m.AddParameter("robots", "arm", nil, TypeBoolean, "enabled"); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, events); ev.Operation != OperationUpdate {
		t.Errorf("update event = %+v", ev)
	}

	if err := m.DeleteConfig("robots", "arm"); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, events); ev.Operation != OperationDelete {
		t.Errorf("delete event = %+v", ev)
	}
}

func TestWatcher_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	handler, events := collectEvents()
	w := NewWatcher(WatcherConfig{Debounce: 20 * time.Millisecond}, handler)
	if err := w.AddCategory("robots", dir); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Stop() }()

	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)
	_ = os.WriteFile(filepath.Join(dir, ".hidden.json"), []byte("{}"), 0644)
	_ = os.WriteFile(filepath.Join(dir, "arm.json"), []byte("{}"), 0644)

	ev := waitEvent(t, events)
	if ev.Name != "arm" {
		t.Errorf("event for %q, want arm", ev.Name)
	}
	select {
	case extra := <-events:
		t.Errorf("unexpected event %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Lifecycle(t *testing.T) {
	w := NewWatcher(WatcherConfig{}, nil)
	if err := w.AddCategory("robots", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(context.Background()); !HasCode(err, ErrCodeWatcherBusy) {
		t.Errorf("second Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if w.IsRunning() {
		t.Error("IsRunning after Stop")
	}
	if err := w.Start(context.Background()); !HasCode(err, ErrCodeWatcherStopped) {
		t.Errorf("Start after Stop: %v", err)
	}
	if err := w.AddCategory("x", t.TempDir()); !HasCode(err, ErrCodeWatcherStopped) {
		t.Errorf("AddCategory after Stop: %v", err)
	}
}

func TestWatcher_StopsWithContext(t *testing.T) {
	w := NewWatcher(WatcherConfig{}, nil)
	if err := w.AddCategory("robots", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for w.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("watcher still running after cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMergeOperations(t *testing.T) {
	tests := []struct {
		old, next, want ChangeOperation
	}{
		{OperationCreate, OperationUpdate, OperationCreate},
		{OperationCreate, OperationDelete, OperationDelete},
		{OperationDelete, OperationCreate, OperationUpdate},
		{OperationUpdate, OperationDelete, OperationDelete},
		{OperationUpdate, OperationUpdate, OperationUpdate},
	}
	for _, tt := range tests {
		if got := mergeOperations(tt.old, tt.next); got != tt.want {
			t.Errorf("merge(%s, %s) = %s, want %s", tt.old, tt.next, got, tt.want)
		}
	}
}

func TestManager_WatchAfterClose(t *testing.T) {
	m, err := NewManager(Config{RootDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	_ = m.Close()
	if _, err := m.Watch(context.Background(), nil); !HasCode(err, ErrCodeManagerClosed) {
		t.Errorf("Watch after Close: %v", err)
	}
}

func TestManager_WatcherStartedDuringClose(t *testing.T) {
	m, err := NewManager(Config{RootDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	w := NewWatcher(WatcherConfig{}, nil)
	if err := w.AddCategory("robots", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Close has already collected its watchers when this one registers.
	_ = m.Close()
	if err := m.trackWatcher(w); !HasCode(err, ErrCodeManagerClosed) {
		t.Errorf("trackWatcher after Close: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher left running after the manager closed")
	}
}
