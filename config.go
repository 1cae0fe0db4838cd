// config.go: Store configuration and defaults
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import "os"

// DefaultCategory is used when a caller names no category.
const DefaultCategory = "system"

// DefaultRootDir is the storage root used when none is configured.
const DefaultRootDir = "configs"

// Config configures a Manager.
type Config struct {
	// RootDir holds one subdirectory per category.
	RootDir string `json:"root_dir"`

	// DefaultCategory replaces an empty category argument.
	DefaultCategory string `json:"default_category"`

	FileMode os.FileMode `json:"file_mode"`
	DirMode  os.FileMode `json:"dir_mode"`

	// StrictTypes validates values against their registered type on
	// AddParameter and UpdateValue. nil means true.
	StrictTypes *bool `json:"strict_types,omitempty"`

	// Audit enables the audit trail. The zero value disables it.
	Audit AuditConfig `json:"audit"`

	// Logger receives diagnostics. nil discards them.
	Logger Logger `json:"-"`

	// AdapterFactory builds category storage. nil selects FileAdapter.
	AdapterFactory AdapterFactory `json:"-"`

	// Types and Templates default to the built-in registries.
	Types     *TypeRegistry     `json:"-"`
	Templates *TemplateRegistry `json:"-"`
}

// Bool returns a pointer to b, for optional Config fields.
func Bool(b bool) *bool { return &b }

// WithDefaults returns a copy of the config with every unset field filled.
func (c *Config) WithDefaults() *Config {
	config := *c

	if config.RootDir == "" {
		config.RootDir = DefaultRootDir
	}
	if config.DefaultCategory == "" {
		config.DefaultCategory = DefaultCategory
	}
	if config.FileMode == 0 {
		config.FileMode = 0644
	}
	if config.DirMode == 0 {
		config.DirMode = 0755
	}
	if config.StrictTypes == nil {
		config.StrictTypes = Bool(true)
	}
	if config.Audit.Enabled {
		if config.Audit.BufferSize <= 0 {
			config.Audit.BufferSize = DefaultAuditConfig().BufferSize
		}
		if config.Audit.FlushInterval <= 0 {
			config.Audit.FlushInterval = DefaultAuditConfig().FlushInterval
		}
	}
	if config.Logger == nil {
		config.Logger = NewDiscardLogger()
	}
	if config.Types == nil {
		config.Types = NewTypeRegistry()
	}
	if config.Templates == nil {
		config.Templates = NewTemplateRegistry(config.Types)
	}
	if config.AdapterFactory == nil {
		root := config.RootDir
		fileCfg := FileAdapterConfig{FileMode: config.FileMode, DirMode: config.DirMode}
		config.AdapterFactory = func(category string) (Adapter, error) {
			return NewFileAdapter(root, category, fileCfg)
		}
	}

	return &config
}

// strict reports whether value validation is on.
func (c *Config) strict() bool {
	return c.StrictTypes == nil || *c.StrictTypes
}
