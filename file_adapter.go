// file_adapter.go: File-backed category storage
//
// Layout under the root directory:
//
//	<category>/active/<name>.json
//	<category>/backups/<name>_<YYYYMMDD_HHMMSS>[_NNN].json
//	<category>/backups/<name>_auto_backup.json
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

const (
	activeDirName    = "active"
	backupDirName    = "backups"
	configExt        = ".json"
	autoBackupSuffix = "_auto_backup"
	backupTimeLayout = "20060102_150405"
)

// FileAdapterConfig tunes a FileAdapter. Zero values select defaults.
type FileAdapterConfig struct {
	FileMode os.FileMode
	DirMode  os.FileMode

	// Clock names manual backups. Defaults to the cached wall clock.
	Clock func() time.Time
}

// FileAdapter stores one category as JSON files.
type FileAdapter struct {
	category  string
	activeDir string
	backupDir string
	fileMode  os.FileMode
	dirMode   os.FileMode
	clock     func() time.Time
}

// NewFileAdapter returns the adapter for category under rootDir. Directories
// are created on the first write.
func NewFileAdapter(rootDir, category string, cfg FileAdapterConfig) (*FileAdapter, error) {
	if rootDir == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "root directory cannot be empty")
	}
	if err := ValidateName("category", category); err != nil {
		return nil, err
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.Clock == nil {
		cfg.Clock = timecache.CachedTime
	}
	base := filepath.Join(rootDir, category)
	return &FileAdapter{
		category:  category,
		activeDir: filepath.Join(base, activeDirName),
		backupDir: filepath.Join(base, backupDirName),
		fileMode:  cfg.FileMode,
		dirMode:   cfg.DirMode,
		clock:     cfg.Clock,
	}, nil
}

// Category returns the category served by the adapter.
func (a *FileAdapter) Category() string { return a.category }

// ActiveDir returns the directory holding active configs.
func (a *FileAdapter) ActiveDir() string { return a.activeDir }

// BackupDir returns the directory holding backups.
func (a *FileAdapter) BackupDir() string { return a.backupDir }

// ListConfigs returns the names of the active configs, sorted.
func (a *FileAdapter) ListConfigs() ([]string, error) {
	entries, err := os.ReadDir(a.activeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, ioFailure(err, "failed to list configs", a.activeDir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := configNameFromFile(e.Name()); ok && e.Type().IsRegular() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// configNameFromFile maps an active file name to its config name, skipping
// hidden and temporary files.
func configNameFromFile(file string) (string, bool) {
	if strings.HasPrefix(file, ".") || !strings.HasSuffix(file, configExt) {
		return "", false
	}
	name := strings.TrimSuffix(file, configExt)
	return name, name != ""
}

// LoadConfig reads and decodes the active config name.
func (a *FileAdapter) LoadConfig(name string) (any, error) {
	path, err := a.activePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound("config", name).WithContext("category", a.category)
		}
		return nil, ioFailure(err, "failed to read config", path)
	}
	raw, err := Decode(data, FormatJSON)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeParseError, fmt.Sprintf("config '%s' is malformed", name)).
			WithContext("category", a.category).
			WithContext("path", path)
	}
	if err := checkDocumentVersion(raw); err != nil {
		return nil, err
	}
	if om, ok := raw.(*OrderedMap); ok {
		om.Delete(FormatKey)
	}
	return raw, nil
}

// SaveConfig encodes data and atomically replaces the active file.
func (a *FileAdapter) SaveConfig(name string, data any) error {
	path, err := a.activePath(name)
	if err != nil {
		return err
	}
	encoded, err := Encode(wrapDocument(data), FormatJSON)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.activeDir, a.dirMode); err != nil {
		return ioFailure(err, "failed to create config directory", a.activeDir)
	}
	return a.atomicWrite(path, encoded)
}

// DeleteConfig removes the active file. It reports false when the file did
// not exist.
func (a *FileAdapter) DeleteConfig(name string) (bool, error) {
	path, err := a.activePath(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, ioFailure(err, "failed to delete config", path)
	}
	return true, nil
}

// AutoBackupName returns the fixed file name of name's automatic backup.
func (a *FileAdapter) AutoBackupName(name string) string {
	return name + autoBackupSuffix + configExt
}

// CreateBackup copies the active file into the backup area and returns the
// backup file name. Automatic backups overwrite the single per-config slot;
// manual backups get a timestamped name, with a sequence suffix when
// another backup already claimed the same second.
func (a *FileAdapter) CreateBackup(name string, auto bool) (string, error) {
	src, err := a.activePath(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", notFound("config", name).WithContext("category", a.category)
		}
		return "", ioFailure(err, "failed to read config for backup", src)
	}
	if err := os.MkdirAll(a.backupDir, a.dirMode); err != nil {
		return "", ioFailure(err, "failed to create backup directory", a.backupDir)
	}

	if auto {
		file := a.AutoBackupName(name)
		if err := a.atomicWrite(filepath.Join(a.backupDir, file), data); err != nil {
			return "", err
		}
		return file, nil
	}
	return a.writeManualBackup(name, data)
}

func (a *FileAdapter) writeManualBackup(name string, data []byte) (string, error) {
	stamp := a.clock().Format(backupTimeLayout)
	seq, err := a.nextBackupSeq(name, stamp)
	if err != nil {
		return "", err
	}
	for ; ; seq++ {
		file := manualBackupName(name, stamp, seq)
		path := filepath.Join(a.backupDir, file)
		// O_EXCL claims the name even against a concurrent writer
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, a.fileMode)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", ioFailure(err, "failed to create backup", path)
		}
		_, werr := f.Write(data)
		if werr == nil {
			werr = f.Sync()
		}
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(path)
			return "", ioFailure(werr, "failed to write backup", path)
		}
		return file, nil
	}
}

func manualBackupName(name, stamp string, seq int) string {
	if seq == 0 {
		return name + "_" + stamp + configExt
	}
	return fmt.Sprintf("%s_%s_%03d%s", name, stamp, seq, configExt)
}

// nextBackupSeq returns one past the highest sequence used by name within
// stamp's second, or 0 if the second is unused.
func (a *FileAdapter) nextBackupSeq(name, stamp string) (int, error) {
	backups, err := a.scanBackups(name)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, b := range backups {
		if b.stamp == stamp && b.seq+1 > next {
			next = b.seq + 1
		}
	}
	return next, nil
}

type backupEntry struct {
	file  string
	stamp string
	seq   int
}

func backupPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `_(\d{8}_\d{6})(?:_(\d{3,}))?\.json$`)
}

func (a *FileAdapter) scanBackups(name string) ([]backupEntry, error) {
	entries, err := os.ReadDir(a.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioFailure(err, "failed to list backups", a.backupDir)
	}
	pattern := backupPattern(name)
	var out []backupEntry
	for _, e := range entries {
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil || !e.Type().IsRegular() {
			continue
		}
		seq := 0
		if m[2] != "" {
			seq, _ = strconv.Atoi(m[2])
		}
		out = append(out, backupEntry{file: e.Name(), stamp: m[1], seq: seq})
	}
	return out, nil
}

// ListBackups returns name's manual backups, newest first. The automatic
// backup is not included.
func (a *FileAdapter) ListBackups(name string) ([]string, error) {
	if err := ValidateName("config", name); err != nil {
		return nil, err
	}
	backups, err := a.scanBackups(name)
	if err != nil {
		return nil, err
	}
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].stamp != backups[j].stamp {
			return backups[i].stamp > backups[j].stamp
		}
		return backups[i].seq > backups[j].seq
	})
	files := make([]string, len(backups))
	for i, b := range backups {
		files[i] = b.file
	}
	return files, nil
}

// RestoreFromBackup overwrites the active config with the backup's content.
func (a *FileAdapter) RestoreFromBackup(name, backupFile string) error {
	dst, err := a.activePath(name)
	if err != nil {
		return err
	}
	src, err := a.backupPath(backupFile)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return notFound("backup", backupFile).
				WithContext("category", a.category).
				WithContext("config", name)
		}
		return ioFailure(err, "failed to read backup", src)
	}
	if err := os.MkdirAll(a.activeDir, a.dirMode); err != nil {
		return ioFailure(err, "failed to create config directory", a.activeDir)
	}
	return a.atomicWrite(dst, data)
}

// DeleteBackup removes a backup file. It reports false when it did not exist.
func (a *FileAdapter) DeleteBackup(name, backupFile string) (bool, error) {
	if err := ValidateName("config", name); err != nil {
		return false, err
	}
	path, err := a.backupPath(backupFile)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, ioFailure(err, "failed to delete backup", path)
	}
	return true, nil
}

// HasBackup reports whether the backup file exists.
func (a *FileAdapter) HasBackup(name, backupFile string) (bool, error) {
	if err := ValidateName("config", name); err != nil {
		return false, err
	}
	path, err := a.backupPath(backupFile)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, ioFailure(err, "failed to stat backup", path)
	}
	return info.Mode().IsRegular(), nil
}

func (a *FileAdapter) activePath(name string) (string, error) {
	if err := ValidateName("config", name); err != nil {
		return "", err
	}
	return filepath.Join(a.activeDir, name+configExt), nil
}

func (a *FileAdapter) backupPath(file string) (string, error) {
	if err := ValidateName("backup", file); err != nil {
		return "", err
	}
	if !strings.HasSuffix(file, configExt) {
		return "", invalidName("backup", file, "backups are "+configExt+" files")
	}
	return filepath.Join(a.backupDir, file), nil
}

// atomicWrite writes data to a temporary file in the target's directory,
// syncs it and renames it over path.
func (a *FileAdapter) atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, "."+base+".tmp.*")
	if err != nil {
		return ioFailure(err, "failed to create temp file", dir)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return ioFailure(err, "failed to write temp file", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return ioFailure(err, "failed to sync temp file", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return ioFailure(err, "failed to close temp file", tmpPath)
	}
	if err := os.Chmod(tmpPath, a.fileMode); err != nil {
		cleanup()
		return ioFailure(err, "failed to set file mode", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return ioFailure(err, "failed to replace file", path)
	}
	return nil
}

var _ Adapter = (*FileAdapter)(nil)
