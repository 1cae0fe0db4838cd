// audit_backend.go: Storage backends for the audit trail
//
// Two backends share one contract: SQLite (default, indexed and queryable)
// and JSONL (append-only, selected by a .jsonl OutputFile). If SQLite cannot
// be opened and an OutputFile is set, the JSONL backend is used instead.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// auditBackend persists audit events.
type auditBackend interface {
	Write(events []AuditEvent) error
	Flush() error
	Close() error
	Query(q AuditQuery) ([]AuditEvent, error)
	GetStats() (*AuditDatabaseStats, error)
}

// AuditQuery filters stored events. Zero fields match everything.
type AuditQuery struct {
	Event    string
	Category string
	Config   string
	MinLevel AuditLevel
	Since    time.Time
	Until    time.Time
	Limit    int
}

func (q AuditQuery) matches(e AuditEvent) bool {
	if q.Event != "" && e.Event != q.Event {
		return false
	}
	if q.Category != "" && e.Category != q.Category {
		return false
	}
	if q.Config != "" && e.Config != q.Config {
		return false
	}
	if e.Level < q.MinLevel {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.Timestamp.After(q.Until) {
		return false
	}
	return true
}

// AuditDatabaseStats summarizes stored events.
type AuditDatabaseStats struct {
	TotalEvents      int64            `json:"total_events"`
	EventsByLevel    map[string]int64 `json:"events_by_level"`
	EventsByCategory map[string]int64 `json:"events_by_category"`
	StorageSize      int64            `json:"storage_size_bytes"`
	SchemaVersion    int              `json:"schema_version"`
}

func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if config.OutputFile != "" && filepath.Ext(config.OutputFile) == ".jsonl" {
		return newJSONLBackend(config)
	}

	backend, err := newSQLiteBackend(config)
	if err == nil {
		return backend, nil
	}
	if config.OutputFile == "" {
		return nil, err
	}

	jsonlBackend, jsonlErr := newJSONLBackend(AuditConfig{OutputFile: config.OutputFile + ".jsonl"})
	if jsonlErr != nil {
		return nil, fmt.Errorf("all audit backends failed - SQLite: %w, JSONL: %v", err, jsonlErr)
	}
	return jsonlBackend, nil
}

// defaultAuditPath is the shared SQLite database used when no OutputFile is set.
func defaultAuditPath() string {
	return filepath.Join(os.TempDir(), "paramstore", "audit.db")
}

type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

const auditSchemaVersion = 1

// auditTimeLayout is fixed width so stored timestamps sort as text.
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func newSQLiteBackend(config AuditConfig) (*sqliteAuditBackend, error) {
	dbPath := config.OutputFile
	if dbPath == "" {
		dbPath = defaultAuditPath()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	backend := &sqliteAuditBackend{db: db, dbPath: dbPath}
	if err := backend.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit database schema: %w", err)
	}

	stmt, err := db.Prepare(`
	INSERT INTO audit_events (
		event_id, timestamp, level, level_num, event, category, config, path,
		old_value, new_value, process_id, process_name, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	backend.insertStmt = stmt
	return backend, nil
}

func (s *sqliteAuditBackend) initializeSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_info (
			version INTEGER PRIMARY KEY,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			timestamp TEXT NOT NULL,
			level TEXT NOT NULL,
			level_num INTEGER NOT NULL,
			event TEXT NOT NULL,
			category TEXT NOT NULL,
			config TEXT,
			path TEXT,
			old_value TEXT,
			new_value TEXT,
			process_id INTEGER NOT NULL,
			process_name TEXT NOT NULL,
			context TEXT,
			checksum TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		"CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_events(category, config, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_audit_event ON audit_events(event, timestamp)",
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := s.db.Exec("INSERT OR IGNORE INTO schema_info (version) VALUES (?)", auditSchemaVersion)
	return err
}

func (s *sqliteAuditBackend) Write(events []AuditEvent) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("cannot write to closed SQLite audit backend")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txStmt := tx.Stmt(s.insertStmt)
	defer func() { _ = txStmt.Close() }()

	for _, event := range events {
		if err = insertEvent(txStmt, event); err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

func insertEvent(stmt *sql.Stmt, event AuditEvent) error {
	oldValue, err := marshalOptional(event.OldValue)
	if err != nil {
		return fmt.Errorf("failed to serialize old_value: %w", err)
	}
	newValue, err := marshalOptional(event.NewValue)
	if err != nil {
		return fmt.Errorf("failed to serialize new_value: %w", err)
	}
	context, err := marshalOptional(event.Context)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}
	_, err = stmt.Exec(
		event.ID,
		event.Timestamp.UTC().Format(auditTimeLayout),
		event.Level.String(),
		int(event.Level),
		event.Event,
		event.Category,
		event.Config,
		event.Path,
		oldValue,
		newValue,
		event.ProcessID,
		event.ProcessName,
		context,
		event.Checksum,
	)
	return err
}

func marshalOptional(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalOptional(s string) any {
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func (s *sqliteAuditBackend) Query(q AuditQuery) ([]AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("cannot query closed SQLite audit backend")
	}

	var (
		where []string
		args  []any
	)
	if q.Event != "" {
		where = append(where, "event = ?")
		args = append(args, q.Event)
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	if q.Config != "" {
		where = append(where, "config = ?")
		args = append(args, q.Config)
	}
	if q.MinLevel > AuditInfo {
		where = append(where, "level_num >= ?")
		args = append(args, int(q.MinLevel))
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.Since.UTC().Format(auditTimeLayout))
	}
	if !q.Until.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, q.Until.UTC().Format(auditTimeLayout))
	}

	query := `SELECT event_id, timestamp, level_num, event, category, config, path,
		old_value, new_value, process_id, process_name, context, checksum
		FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []AuditEvent
	for rows.Next() {
		var (
			e                           AuditEvent
			ts                          string
			level                       int
			config, path                sql.NullString
			oldValue, newValue, context sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &level, &e.Event, &e.Category, &config, &path,
			&oldValue, &newValue, &e.ProcessID, &e.ProcessName, &context, &e.Checksum); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Timestamp, _ = time.Parse(auditTimeLayout, ts)
		e.Level = AuditLevel(level)
		e.Config = config.String
		e.Path = path.String
		e.OldValue = unmarshalOptional(oldValue.String)
		e.NewValue = unmarshalOptional(newValue.String)
		if ctx, ok := unmarshalOptional(context.String).(map[string]any); ok {
			e.Context = ctx
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *sqliteAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("cannot read stats of closed SQLite audit backend")
	}
	stats := &AuditDatabaseStats{
		EventsByLevel:    make(map[string]int64),
		EventsByCategory: make(map[string]int64),
		SchemaVersion:    auditSchemaVersion,
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM audit_events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to count audit events: %w", err)
	}
	if err := s.groupCount("level", stats.EventsByLevel); err != nil {
		return nil, err
	}
	if err := s.groupCount("category", stats.EventsByCategory); err != nil {
		return nil, err
	}
	if info, err := os.Stat(s.dbPath); err == nil {
		stats.StorageSize = info.Size()
	}
	return stats, nil
}

// groupCount fills out with COUNT(*) grouped by column. column is one of a
// fixed set of identifiers, never user input.
func (s *sqliteAuditBackend) groupCount(column string, out map[string]int64) error {
	rows, err := s.db.Query("SELECT " + column + ", COUNT(*) FROM audit_events GROUP BY " + column)
	if err != nil {
		return fmt.Errorf("failed to group audit events by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			key   string
			count int64
		)
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s stats: %w", column, err)
		}
		out[key] = count
	}
	return rows.Err()
}

func (s *sqliteAuditBackend) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to flush SQLite audit backend: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close insert statement: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing SQLite audit backend: %v", errs)
	}
	return nil
}

type jsonlAuditBackend struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	closed bool
}

func newJSONLBackend(config AuditConfig) (*jsonlAuditBackend, error) {
	if config.OutputFile == "" {
		return nil, fmt.Errorf("JSONL backend requires OutputFile to be specified")
	}
	if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0750); err != nil {
		return nil, fmt.Errorf("failed to create JSONL audit log directory: %w", err)
	}
	file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log file: %w", err)
	}
	return &jsonlAuditBackend{file: file, path: config.OutputFile}, nil
}

func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("cannot write to closed JSONL audit backend")
	}
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize audit event: %w", err)
		}
		if _, err := j.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write audit event to JSONL: %w", err)
		}
	}
	return nil
}

func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync JSONL audit file: %w", err)
	}
	return nil
}

// readAll scans the whole log. Lines that fail to decode are skipped.
func (j *jsonlAuditBackend) readAll() ([]AuditEvent, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var e AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

func (j *jsonlAuditBackend) Query(q AuditQuery) ([]AuditEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	all, err := j.readAll()
	if err != nil {
		return nil, err
	}
	var out []AuditEvent
	for i := len(all) - 1; i >= 0; i-- {
		if !q.matches(all[i]) {
			continue
		}
		out = append(out, all[i])
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (j *jsonlAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	all, err := j.readAll()
	if err != nil {
		return nil, err
	}
	stats := &AuditDatabaseStats{
		TotalEvents:      int64(len(all)),
		EventsByLevel:    make(map[string]int64),
		EventsByCategory: make(map[string]int64),
		SchemaVersion:    auditSchemaVersion,
	}
	for _, e := range all {
		stats.EventsByLevel[e.Level.String()]++
		stats.EventsByCategory[e.Category]++
	}
	if info, err := os.Stat(j.path); err == nil {
		stats.StorageSize = info.Size()
	}
	return stats, nil
}

func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close JSONL audit file: %w", err)
	}
	return nil
}
