// adapter.go: Storage adapter contract and name validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/agilira/go-errors"
)

// Adapter persists the configs and backups of one category.
//
// LoadConfig returns a NotFound error when the config is absent and a
// ParseError error when its content is malformed. DeleteConfig and
// DeleteBackup report false when there was nothing to delete.
type Adapter interface {
	Category() string

	ListConfigs() ([]string, error)
	LoadConfig(name string) (any, error)
	SaveConfig(name string, data any) error
	DeleteConfig(name string) (bool, error)

	CreateBackup(name string, auto bool) (string, error)
	ListBackups(name string) ([]string, error)
	RestoreFromBackup(name, backupFile string) error
	DeleteBackup(name, backupFile string) (bool, error)
	HasBackup(name, backupFile string) (bool, error)
	AutoBackupName(name string) string
}

// AdapterFactory builds the adapter for a category.
type AdapterFactory func(category string) (Adapter, error)

const maxNameLength = 255

// Windows device names are rejected everywhere so a tree written on one
// platform can be copied to another.
var reservedDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ValidateName checks a category, config or backup file name. kind is used
// in error messages only.
func ValidateName(kind, name string) error {
	if name == "" {
		return errors.New(ErrCodeInvalidName, kind+" name cannot be empty").
			WithContext("kind", kind)
	}
	if len(name) > maxNameLength {
		return invalidName(kind, name, fmt.Sprintf("longer than %d bytes", maxNameLength))
	}
	if name == "." || strings.Contains(name, "..") {
		return invalidName(kind, name, "contains a parent directory reference")
	}
	if strings.ContainsAny(name, `/\:`) {
		return invalidName(kind, name, "contains a path separator")
	}
	if strings.HasPrefix(name, ".") {
		return invalidName(kind, name, "hidden names are not allowed")
	}
	lower := strings.ToLower(name)
	for _, pattern := range []string{"%2e", "%2f", "%5c", "%00"} {
		if strings.Contains(lower, pattern) {
			return invalidName(kind, name, "contains an encoded traversal sequence")
		}
	}
	for _, r := range name {
		if r == 0 || unicode.IsControl(r) {
			return invalidName(kind, name, "contains control characters")
		}
	}
	base := strings.ToUpper(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if reservedDeviceNames[base] {
		return invalidName(kind, name, "reserved device name")
	}
	return nil
}

func invalidName(kind, name, reason string) error {
	return errors.New(ErrCodeInvalidName, fmt.Sprintf("invalid %s name %q: %s", kind, name, reason)).
		WithContext("kind", kind).
		WithContext("name", name)
}

// validateChildName checks a parameter name before it joins a tree.
// Dots are path separators and the reserved prefix belongs to storage keys.
func validateChildName(name string) error {
	if name == "" {
		return errors.New(ErrCodeInvalidName, "parameter name cannot be empty")
	}
	if IsReservedKey(name) {
		return invalidName("parameter", name, "names starting with "+ReservedPrefix+" are reserved")
	}
	if strings.Contains(name, ".") {
		return invalidName("parameter", name, "dots separate path segments")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return invalidName("parameter", name, "contains control characters")
		}
	}
	return nil
}
