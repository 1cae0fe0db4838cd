// flags.go: Command-line configuration through flash-flags
//
// Precedence is flags, then PARAMSTORE_* environment variables, then
// defaults: environment values become the flag defaults before parsing.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
)

// Flag names understood by LoadConfigFromFlags.
const (
	FlagRootDir            = "root"
	FlagCategory           = "category"
	FlagFileMode           = "file-mode"
	FlagStrict             = "strict"
	FlagAudit              = "audit"
	FlagAuditMinLevel      = "audit-level"
	FlagAuditBufferSize    = "audit-buffer"
	FlagAuditFlushInterval = "audit-flush"
	FlagVerbose            = "verbose"
)

// NewFlagSet returns a flash-flags set declaring the store's flags, with
// defaults taken from base.
func NewFlagSet(name string, base *Config) *flashflags.FlagSet {
	cfg := base.WithDefaults()
	fs := flashflags.New(name)
	fs.SetDescription("hierarchical parameter store")
	fs.String(FlagRootDir, cfg.RootDir, "storage root directory")
	fs.String(FlagCategory, cfg.DefaultCategory, "category used when a command names none")
	fs.String(FlagFileMode, fmt.Sprintf("%04o", cfg.FileMode), "octal mode for config files")
	fs.Bool(FlagStrict, cfg.strict(), "validate values against their parameter type")
	fs.String(FlagAudit, cfg.Audit.OutputFile, "audit trail file (.db, .sqlite or .jsonl); empty disables auditing")
	fs.String(FlagAuditMinLevel, strings.ToLower(cfg.Audit.MinLevel.String()), "minimum audit level")
	fs.Int(FlagAuditBufferSize, max(cfg.Audit.BufferSize, 1), "audit events buffered before a write")
	fs.Duration(FlagAuditFlushInterval, cfg.Audit.FlushInterval, "audit flush interval")
	fs.Bool(FlagVerbose, false, "log diagnostics to stderr")
	return fs
}

// LoadConfigFromFlags parses args on top of the environment configuration.
func LoadConfigFromFlags(args []string) (*Config, error) {
	config, _, err := ParseFlags("paramstore", args)
	return config, err
}

// ParseFlags is LoadConfigFromFlags that also returns the parsed set, for
// callers that read flags outside Config (such as --verbose).
func ParseFlags(name string, args []string) (*Config, *flashflags.FlagSet, error) {
	base := &Config{}
	if err := applyEnv(base); err != nil {
		return nil, nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to load environment configuration")
	}

	fs := NewFlagSet(name, base)
	if err := fs.Parse(args); err != nil {
		return nil, nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse command-line flags")
	}
	config, err := ConfigFromFlagSet(fs, base)
	if err != nil {
		return nil, nil, err
	}
	return config.WithDefaults(), fs, nil
}

// ConfigFromFlagSet reads a parsed set created by NewFlagSet into a copy of
// base. base should not yet carry an AdapterFactory, since the factory is
// bound to the root directory at WithDefaults time.
func ConfigFromFlagSet(fs *flashflags.FlagSet, base *Config) (*Config, error) {
	config := *base
	config.RootDir = fs.GetString(FlagRootDir)
	config.DefaultCategory = fs.GetString(FlagCategory)

	if s := fs.GetString(FlagFileMode); s != "" {
		mode, err := strconv.ParseUint(s, 8, 32)
		if err != nil {
			return nil, errors.New(ErrCodeInvalidConfig, "invalid --"+FlagFileMode+" value").
				WithContext("value", s)
		}
		config.FileMode = os.FileMode(mode)
	}
	config.StrictTypes = Bool(fs.GetBool(FlagStrict))

	if out := fs.GetString(FlagAudit); out != "" {
		config.Audit.Enabled = true
		config.Audit.OutputFile = out
	}
	level, ok := ParseAuditLevel(fs.GetString(FlagAuditMinLevel))
	if !ok {
		return nil, errors.New(ErrCodeInvalidAuditConfig, "invalid --"+FlagAuditMinLevel+" value").
			WithContext("value", fs.GetString(FlagAuditMinLevel))
	}
	config.Audit.MinLevel = level
	config.Audit.BufferSize = fs.GetInt(FlagAuditBufferSize)
	config.Audit.FlushInterval = fs.GetDuration(FlagAuditFlushInterval)
	return &config, nil
}

// DescribeFlags lists the declared flag names, for help output.
func DescribeFlags(fs *flashflags.FlagSet) []string {
	var names []string
	fs.VisitAll(func(f *flashflags.Flag) {
		names = append(names, "--"+f.Name())
	})
	return names
}
