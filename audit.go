// audit.go: Audit trail for configuration changes
//
// Every mutation performed through the Manager can be recorded as an audit
// event: who changed which config, at which path, from what to what.
//
// Features:
// - Tamper-detection checksum per event
// - Buffered writes with background flushing
// - SQLite (queryable) or JSONL storage
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// AuditLevel represents the severity of audit events
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
	AuditSecurity
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	case AuditSecurity:
		return "SECURITY"
	default:
		return "UNKNOWN"
	}
}

// ParseAuditLevel parses a level name such as "INFO" or "warn".
func ParseAuditLevel(s string) (AuditLevel, bool) {
	switch s {
	case "INFO", "info":
		return AuditInfo, true
	case "WARN", "warn":
		return AuditWarn, true
	case "CRITICAL", "critical":
		return AuditCritical, true
	case "SECURITY", "security":
		return AuditSecurity, true
	default:
		return AuditInfo, false
	}
}

// Audit event names.
const (
	EventConfigCreated   = "config_created"
	EventConfigSaved     = "config_saved"
	EventConfigDeleted   = "config_deleted"
	EventParamAdded      = "param_added"
	EventParamUpdated    = "param_updated"
	EventMetadataUpdated = "metadata_updated"
	EventParamDeleted    = "param_deleted"
	EventBackupCreated   = "backup_created"
	EventBackupRestored  = "backup_restored"
	EventBackupDeleted   = "backup_deleted"
	EventEditStarted     = "edit_started"
	EventEditReverted    = "edit_reverted"
	EventEditEnded       = "edit_ended"
	EventTemplateApplied = "template_applied"
	EventConfigImported  = "config_imported"
	EventExternalChange  = "external_change"
)

// AuditEvent represents a single auditable event
type AuditEvent struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Level       AuditLevel     `json:"level"`
	Event       string         `json:"event"`
	Category    string         `json:"category"`
	Config      string         `json:"config,omitempty"`
	Path        string         `json:"path,omitempty"`
	OldValue    any            `json:"old_value,omitempty"`
	NewValue    any            `json:"new_value,omitempty"`
	ProcessID   int            `json:"process_id"`
	ProcessName string         `json:"process_name"`
	Context     map[string]any `json:"context,omitempty"`
	Checksum    string         `json:"checksum"`
}

// Target returns "category/config".
func (e AuditEvent) Target() string {
	return configKey(e.Category, e.Config)
}

// AuditConfig configures the audit system
type AuditConfig struct {
	Enabled       bool          `json:"enabled"`
	OutputFile    string        `json:"output_file"`
	MinLevel      AuditLevel    `json:"min_level"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// DefaultAuditConfig returns an enabled configuration writing to the shared
// SQLite database. Use an OutputFile ending in .jsonl for line-delimited JSON.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       true,
		OutputFile:    "",
		MinLevel:      AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}

// AuditLogger buffers audit events and hands them to a storage backend.
// A nil *AuditLogger is valid and records nothing.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
	processName string
}

// NewAuditLogger creates a logger and its backend. A positive FlushInterval
// starts a background flusher that Close stops.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	if config.BufferSize <= 0 {
		config.BufferSize = 1
	}
	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidAuditConfig, "failed to initialize audit backend").
			WithContext("output_file", config.OutputFile)
	}

	logger := &AuditLogger{
		config:      config,
		backend:     backend,
		buffer:      make([]AuditEvent, 0, config.BufferSize),
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: getProcessName(),
	}

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Log records an audit event.
func (al *AuditLogger) Log(level AuditLevel, event, category, config, path string, oldVal, newVal any, context map[string]any) {
	if al == nil || al.backend == nil || !al.config.Enabled || level < al.config.MinLevel {
		return
	}

	auditEvent := AuditEvent{
		ID:          uuid.New().String(),
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Event:       event,
		Category:    category,
		Config:      config,
		Path:        path,
		OldValue:    plainValue(oldVal),
		NewValue:    plainValue(newVal),
		ProcessID:   al.processID,
		ProcessName: al.processName,
		Context:     context,
	}
	auditEvent.Checksum = generateChecksum(auditEvent)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, auditEvent)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferUnsafe() // retried on the next flush
	}
	al.bufferMu.Unlock()
}

// LogChange records a value change at path.
func (al *AuditLogger) LogChange(event, category, config, path string, oldVal, newVal any) {
	al.Log(AuditCritical, event, category, config, path, oldVal, newVal, nil)
}

// LogLifecycle records a config, backup or edit session event.
func (al *AuditLogger) LogLifecycle(event, category, config string, context map[string]any) {
	al.Log(AuditInfo, event, category, config, "", nil, nil, context)
}

// Flush immediately writes all buffered events
func (al *AuditLogger) Flush() error {
	if al == nil {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	if err := al.flushBufferUnsafe(); err != nil {
		return err
	}
	return al.backend.Flush()
}

// Query flushes pending events and returns the stored events matching q,
// newest first.
func (al *AuditLogger) Query(q AuditQuery) ([]AuditEvent, error) {
	if al == nil || al.backend == nil {
		return nil, errors.New(ErrCodeAuditUnsupported, "audit trail is not enabled")
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.Query(q)
}

// Stats returns storage statistics from the backend.
func (al *AuditLogger) Stats() (*AuditDatabaseStats, error) {
	if al == nil || al.backend == nil {
		return nil, errors.New(ErrCodeAuditUnsupported, "audit trail is not enabled")
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.GetStats()
}

// Close stops the flusher, writes pending events and closes the backend.
// Calling Close more than once is safe.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	var err error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}
		if ferr := al.Flush(); ferr != nil {
			err = errors.Wrap(ferr, ErrCodeIOError, "failed to flush audit logger during close")
		}
		if cerr := al.backend.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, ErrCodeIOError, "failed to close audit backend")
		}
	})
	return err
}

func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush() // retried on the next tick
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to the backend (caller holds bufferMu).
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}
	if err := al.backend.Write(al.buffer); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to write audit events")
	}
	al.buffer = al.buffer[:0]
	return nil
}

// generateChecksum creates a tamper-detection checksum using SHA-256. Values
// are hashed in their JSON form so events read back from storage verify.
func generateChecksum(event AuditEvent) string {
	oldValue, _ := json.Marshal(event.OldValue)
	newValue, _ := json.Marshal(event.NewValue)
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%s:%s:%s",
		event.ID,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.Event, event.Category, event.Config, event.Path,
		oldValue, newValue)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// VerifyChecksum reports whether the event still matches its checksum.
func VerifyChecksum(event AuditEvent) bool {
	return event.Checksum == generateChecksum(event)
}

func getProcessName() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Base(exe)
	}
	return "paramstore"
}
