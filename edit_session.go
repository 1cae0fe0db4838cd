// edit_session.go: Confirm/revert editing
//
// StartEdit snapshots a config into its single auto-backup slot. Edits then
// proceed normally and are persisted one by one. RevertEdit copies the
// snapshot back; EndEdit drops it, keeping the current state. A second
// StartEdit overwrites the snapshot, and concurrent sessions on one config
// share the slot.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// EditSession describes an open confirm/revert checkpoint.
type EditSession struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Name       string    `json:"name"`
	BackupFile string    `json:"backup_file"`
	StartedAt  time.Time `json:"started_at"`
}

// StartEdit creates (or replaces) the auto-backup of a config.
func (m *Manager) StartEdit(category, name string) (*EditSession, error) {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return nil, err
	}
	key := configKey(category, name)
	unlock := m.locks.Lock(key)
	defer unlock()

	file, err := a.CreateBackup(name, true)
	if err != nil {
		return nil, err
	}
	session := &EditSession{
		ID:         uuid.New().String(),
		Category:   category,
		Name:       name,
		BackupFile: file,
		StartedAt:  timecache.CachedTime(),
	}

	m.mu.Lock()
	replaced := m.sessions[key]
	m.sessions[key] = session
	m.mu.Unlock()

	if replaced != nil {
		m.log.Warn("edit checkpoint replaced", "category", category, "name", name,
			"previous_session", replaced.ID, "session", session.ID)
	}
	m.log.Info("edit started", "category", category, "name", name, "session", session.ID)
	m.audit.LogLifecycle(EventEditStarted, category, name, map[string]any{"session": session.ID})
	return session, nil
}

// RevertEdit restores a config from its auto-backup. The backup is kept, so
// a session can be reverted more than once. It fails with NotFound when no
// edit is in progress.
func (m *Manager) RevertEdit(category, name string) error {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return err
	}
	unlock := m.locks.Lock(configKey(category, name))
	defer unlock()

	auto := a.AutoBackupName(name)
	ok, err := a.HasBackup(name, auto)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(ErrCodeNotFound, "no edit in progress for config '"+name+"'").
			WithContext("category", category).
			WithContext("name", name)
	}
	if err := a.RestoreFromBackup(name, auto); err != nil {
		return err
	}
	m.log.Info("edit reverted", "category", category, "name", name)
	m.audit.Log(AuditCritical, EventEditReverted, category, name, "", nil, nil, m.sessionContext(category, name))
	return nil
}

// EndEdit confirms the current state by dropping the auto-backup. Ending
// without an open edit is not an error.
func (m *Manager) EndEdit(category, name string) error {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return err
	}
	key := configKey(category, name)
	unlock := m.locks.Lock(key)
	defer unlock()

	deleted, err := a.DeleteBackup(name, a.AutoBackupName(name))
	if err != nil {
		return err
	}
	ctx := m.sessionContext(category, name)
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()

	if deleted {
		m.log.Info("edit ended", "category", category, "name", name)
		m.audit.LogLifecycle(EventEditEnded, category, name, ctx)
	}
	return nil
}

// InEdit reports whether a config has an auto-backup, whichever process
// created it.
func (m *Manager) InEdit(category, name string) (bool, error) {
	a, err := m.adapter(m.category(category))
	if err != nil {
		return false, err
	}
	return a.HasBackup(name, a.AutoBackupName(name))
}

// Session returns the edit session opened by this Manager for a config.
func (m *Manager) Session(category, name string) (*EditSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[configKey(m.category(category), name)]
	return s, ok
}

func (m *Manager) sessionContext(category, name string) map[string]any {
	if s, ok := m.Session(category, name); ok {
		return map[string]any{"session": s.ID}
	}
	return nil
}
