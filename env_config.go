// env_config.go: Environment variable configuration
//
// Recognized variables:
//
//	PARAMSTORE_ROOT_DIR             storage root
//	PARAMSTORE_DEFAULT_CATEGORY     category used when none is given
//	PARAMSTORE_FILE_MODE            octal file mode, e.g. 0640
//	PARAMSTORE_STRICT_TYPES         true/false
//	PARAMSTORE_AUDIT_ENABLED        true/false
//	PARAMSTORE_AUDIT_OUTPUT_FILE    .db/.sqlite or .jsonl path
//	PARAMSTORE_AUDIT_MIN_LEVEL      info, warn, critical, security
//	PARAMSTORE_AUDIT_BUFFER_SIZE    events buffered before a write
//	PARAMSTORE_AUDIT_FLUSH_INTERVAL Go duration, e.g. 5s
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// Environment variable names.
const (
	EnvRootDir            = "PARAMSTORE_ROOT_DIR"
	EnvDefaultCategory    = "PARAMSTORE_DEFAULT_CATEGORY"
	EnvFileMode           = "PARAMSTORE_FILE_MODE"
	EnvStrictTypes        = "PARAMSTORE_STRICT_TYPES"
	EnvAuditEnabled       = "PARAMSTORE_AUDIT_ENABLED"
	EnvAuditOutputFile    = "PARAMSTORE_AUDIT_OUTPUT_FILE"
	EnvAuditMinLevel      = "PARAMSTORE_AUDIT_MIN_LEVEL"
	EnvAuditBufferSize    = "PARAMSTORE_AUDIT_BUFFER_SIZE"
	EnvAuditFlushInterval = "PARAMSTORE_AUDIT_FLUSH_INTERVAL"
)

// LoadConfigFromEnv builds a Config from PARAMSTORE_* variables. Unset
// variables leave the corresponding field at its default.
func LoadConfigFromEnv() (*Config, error) {
	config := &Config{}
	if err := applyEnv(config); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to load environment configuration")
	}
	return config.WithDefaults(), nil
}

func applyEnv(config *Config) error {
	if v := os.Getenv(EnvRootDir); v != "" {
		config.RootDir = v
	}
	if v := os.Getenv(EnvDefaultCategory); v != "" {
		config.DefaultCategory = v
	}
	if v := os.Getenv(EnvFileMode); v != "" {
		mode, err := strconv.ParseUint(v, 8, 32)
		if err != nil {
			return errors.New(ErrCodeInvalidConfig, "invalid "+EnvFileMode+" value").
				WithContext("value", v)
		}
		config.FileMode = os.FileMode(mode)
	}
	if v := os.Getenv(EnvStrictTypes); v != "" {
		config.StrictTypes = Bool(parseBool(v))
	}
	return applyAuditEnv(&config.Audit)
}

func applyAuditEnv(audit *AuditConfig) error {
	if v := os.Getenv(EnvAuditEnabled); v != "" {
		audit.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvAuditOutputFile); v != "" {
		audit.OutputFile = v
	}
	if v := os.Getenv(EnvAuditMinLevel); v != "" {
		level, ok := ParseAuditLevel(strings.TrimSpace(v))
		if !ok {
			return errors.New(ErrCodeInvalidAuditConfig, "invalid "+EnvAuditMinLevel+" value").
				WithContext("value", v)
		}
		audit.MinLevel = level
	}
	if v := os.Getenv(EnvAuditBufferSize); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return errors.New(ErrCodeInvalidBufferSize, "invalid "+EnvAuditBufferSize+" value").
				WithContext("value", v)
		}
		audit.BufferSize = size
	}
	if v := os.Getenv(EnvAuditFlushInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return errors.New(ErrCodeInvalidFlushInterval, "invalid "+EnvAuditFlushInterval+" value").
				WithContext("value", v)
		}
		audit.FlushInterval = d
	}
	return nil
}

// parseBool accepts the usual spellings; anything else is false.
func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "enabled":
		return true
	default:
		return false
	}
}

// GetEnvWithDefault returns the variable's value, or defaultValue when unset.
func GetEnvWithDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
