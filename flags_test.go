// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromFlags_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromFlags([]string{})
	if err != nil {
		t.Fatalf("LoadConfigFromFlags: %v", err)
	}
	if cfg.RootDir != DefaultRootDir || cfg.DefaultCategory != DefaultCategory {
		t.Errorf("root/category = %q/%q", cfg.RootDir, cfg.DefaultCategory)
	}
	if !cfg.strict() || cfg.Audit.Enabled || cfg.FileMode != 0644 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfigFromFlags_Values(t *testing.T) {
	root := t.TempDir()
	trail := filepath.Join(root, "trail.jsonl")
	cfg, err := LoadConfigFromFlags([]string{
		"--root=" + root,
		"--category=robots",
		"--file-mode=0600",
		"--audit=" + trail,
		"--audit-level=warn",
		"--audit-buffer=10",
		"--audit-flush=250ms",
	})
	if err != nil {
		t.Fatalf("LoadConfigFromFlags: %v", err)
	}
	if cfg.RootDir != root || cfg.DefaultCategory != "robots" || cfg.FileMode != 0600 {
		t.Errorf("storage = %+v", cfg)
	}
	audit := cfg.Audit
	if !audit.Enabled || audit.OutputFile != trail || audit.MinLevel != AuditWarn {
		t.Errorf("audit = %+v", audit)
	}
	if audit.BufferSize != 10 || audit.FlushInterval != 250*time.Millisecond {
		t.Errorf("audit tuning = %+v", audit)
	}

	a, err := cfg.AdapterFactory("robots")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(root, "robots", "active"); a.(*FileAdapter).ActiveDir() != want {
		t.Errorf("adapter bound to %s, want %s", a.(*FileAdapter).ActiveDir(), want)
	}
}

func TestLoadConfigFromFlags_FlagsOverrideEnv(t *testing.T) {
	t.Setenv(EnvRootDir, "/from/env")
	t.Setenv(EnvDefaultCategory, "env-category")
	t.Setenv(EnvStrictTypes, "false")

	cfg, err := LoadConfigFromFlags([]string{"--category=flag-category", "--strict"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RootDir != "/from/env" {
		t.Errorf("root = %q, env should apply when no flag is given", cfg.RootDir)
	}
	if cfg.DefaultCategory != "flag-category" {
		t.Errorf("category = %q, flag should win", cfg.DefaultCategory)
	}
	if !cfg.strict() {
		t.Error("--strict should override the environment")
	}
}

func TestLoadConfigFromFlags_Invalid(t *testing.T) {
	tests := [][]string{
		{"--file-mode=abc"},
		{"--audit-level=loud"},
	}
	for _, args := range tests {
		if _, err := LoadConfigFromFlags(args); !HasCode(err, ErrCodeInvalidConfig) && !HasCode(err, ErrCodeInvalidAuditConfig) {
			t.Errorf("LoadConfigFromFlags(%v) = %v", args, err)
		}
	}

	t.Setenv(EnvAuditMinLevel, "loud")
	if _, err := LoadConfigFromFlags(nil); !HasCode(err, ErrCodeInvalidConfig) {
		t.Errorf("invalid env: %v", err)
	}
}

func TestParseFlags_ReturnsFlagSet(t *testing.T) {
	_, fs, err := ParseFlags("paramstore", []string{"--verbose"})
	if err != nil {
		t.Fatal(err)
	}
	if !fs.GetBool(FlagVerbose) {
		t.Error("--verbose not set")
	}

	names := DescribeFlags(fs)
	found := false
	for _, n := range names {
		if n == "--"+FlagRootDir {
			found = true
		}
	}
	if !found {
		t.Errorf("DescribeFlags = %v", names)
	}
}
