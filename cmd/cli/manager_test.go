// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/agilira/paramstore"
)

// CLITestFixture is an isolated store plus a captured output buffer.
type CLITestFixture struct {
	t       *testing.T
	root    string
	store   *paramstore.Manager
	manager *Manager
	out     *bytes.Buffer
}

// NewCLITestFixture creates a store rooted in a temp directory. auditFile,
// when non-empty, enables auditing into that file name under the root.
func NewCLITestFixture(t *testing.T, auditFile string) *CLITestFixture {
	t.Helper()

	root := t.TempDir()
	cfg := paramstore.Config{RootDir: root}
	if auditFile != "" {
		cfg.Audit = paramstore.AuditConfig{
			Enabled:    true,
			OutputFile: filepath.Join(root, auditFile),
			MinLevel:   paramstore.AuditInfo,
			BufferSize: 1,
		}
	}
	store, err := paramstore.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Close failed: %v", err)
		}
	})

	out := &bytes.Buffer{}
	return &CLITestFixture{
		t:       t,
		root:    root,
		store:   store,
		manager: NewManager(store, out),
		out:     out,
	}
}

// ConfigPath returns the file of a config in the default category.
func (f *CLITestFixture) ConfigPath(name string) string {
	return filepath.Join(f.root, paramstore.DefaultCategory, "active", name+".json")
}

// Output returns and clears the captured output.
func (f *CLITestFixture) Output() string {
	s := f.out.String()
	f.out.Reset()
	return s
}

func TestNewManager(t *testing.T) {
	f := NewCLITestFixture(t, "")

	if f.manager.app == nil {
		t.Fatal("Manager.app not initialized")
	}
	if f.manager.store != f.store {
		t.Error("Manager.store not set")
	}
}

func TestNewManager_NilWriterUsesStdout(t *testing.T) {
	f := NewCLITestFixture(t, "")
	m := NewManager(f.store, nil)
	if m.out != os.Stdout {
		t.Error("nil writer should default to stdout")
	}
}

func TestRun_ConfigCreateAndDelete(t *testing.T) {
	f := NewCLITestFixture(t, "")

	if err := f.manager.Run([]string{"config", "create", "demo"}); err != nil {
		t.Fatalf("config create failed: %v", err)
	}
	if _, err := os.Stat(f.ConfigPath("demo")); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	if err := f.manager.Run([]string{"config", "delete", "demo"}); err != nil {
		t.Fatalf("config delete failed: %v", err)
	}
	if _, err := os.Stat(f.ConfigPath("demo")); !os.IsNotExist(err) {
		t.Errorf("config file should be gone, stat err = %v", err)
	}
}
