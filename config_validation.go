// config_validation.go: Configuration validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agilira/go-errors"
)

// Predefined validation errors
var (
	ErrInvalidRootDir       = errors.New(ErrCodeInvalidConfig, "root directory cannot be empty")
	ErrInvalidFileMode      = errors.New(ErrCodeInvalidConfig, "file mode must grant owner read and write")
	ErrInvalidDirMode       = errors.New(ErrCodeInvalidConfig, "directory mode must grant owner read, write and execute")
	ErrInvalidBufferSize    = errors.New(ErrCodeInvalidBufferSize, "buffer size must be positive")
	ErrInvalidFlushInterval = errors.New(ErrCodeInvalidFlushInterval, "flush interval must be positive")
	ErrInvalidOutputFile    = errors.New(ErrCodeInvalidOutputFile, "audit output file path is invalid")
)

// ValidationResult collects every problem found in a configuration.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (vr ValidationResult) String() string {
	if vr.Valid {
		if len(vr.Warnings) == 0 {
			return "Configuration is valid"
		}
		return fmt.Sprintf("Configuration is valid with %d warning(s)", len(vr.Warnings))
	}
	return fmt.Sprintf("Configuration is invalid: %d error(s), %d warning(s)",
		len(vr.Errors), len(vr.Warnings))
}

// Validate returns the first problem in the configuration, or nil.
func (c *Config) Validate() error {
	result := c.ValidateDetailed()
	if result.Valid {
		return nil
	}
	first := result.Errors[0]
	for _, known := range []*errors.Error{
		ErrInvalidRootDir, ErrInvalidFileMode, ErrInvalidDirMode,
		ErrInvalidBufferSize, ErrInvalidFlushInterval, ErrInvalidOutputFile,
	} {
		if first == known.Error() {
			return known
		}
	}
	return errors.New(ErrCodeInvalidConfig, first)
}

// ValidateDetailed checks every field and reports errors and warnings.
func (c *Config) ValidateDetailed() ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	c.validateStorage(&result)
	c.validateAuditConfig(&result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validateStorage(result *ValidationResult) {
	if c.RootDir == "" {
		result.Errors = append(result.Errors, ErrInvalidRootDir.Error())
	} else if info, err := os.Stat(c.RootDir); err == nil && !info.IsDir() {
		result.Errors = append(result.Errors,
			fmt.Sprintf("root directory '%s' is not a directory", c.RootDir))
	}

	if c.DefaultCategory != "" {
		if err := ValidateName("category", c.DefaultCategory); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if c.FileMode != 0 && c.FileMode&0600 != 0600 {
		result.Errors = append(result.Errors, ErrInvalidFileMode.Error())
	} else if c.FileMode&0002 != 0 {
		result.Warnings = append(result.Warnings, "config files will be world-writable")
	}

	if c.DirMode != 0 && c.DirMode&0700 != 0700 {
		result.Errors = append(result.Errors, ErrInvalidDirMode.Error())
	}

	if c.StrictTypes != nil && !*c.StrictTypes {
		result.Warnings = append(result.Warnings, "strict type checking is disabled")
	}
}

func (c *Config) validateAuditConfig(result *ValidationResult) {
	if !c.Audit.Enabled {
		return
	}

	if c.Audit.BufferSize < 0 {
		result.Errors = append(result.Errors, ErrInvalidBufferSize.Error())
	} else if c.Audit.BufferSize > 10000 {
		result.Warnings = append(result.Warnings, "Large audit buffer size may consume significant memory")
	}

	if c.Audit.FlushInterval < 0 {
		result.Errors = append(result.Errors, ErrInvalidFlushInterval.Error())
	}

	if c.Audit.OutputFile == "" {
		result.Warnings = append(result.Warnings,
			"audit output file not set, using "+defaultAuditPath())
		return
	}
	if err := validateOutputFile(c.Audit.OutputFile); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
}

func validateOutputFile(outputFile string) error {
	cleanPath := filepath.Clean(outputFile)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New(ErrCodeInvalidOutputFile,
			fmt.Sprintf("path '%s' is not a valid file path", outputFile))
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return errors.New(ErrCodeInvalidOutputFile,
			fmt.Sprintf("audit output '%s' is a directory", outputFile))
	}
	switch filepath.Ext(cleanPath) {
	case ".db", ".sqlite", ".jsonl":
	default:
		return errors.New(ErrCodeInvalidOutputFile,
			fmt.Sprintf("audit output '%s' must end in .db, .sqlite or .jsonl", outputFile))
	}
	return nil
}
