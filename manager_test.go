// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.RootDir == "" {
		cfg.RootDir = t.TempDir()
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// seedScenario stores {"group1": {"param1": 123}, "top": "hello"}.
func seedScenario(t *testing.T, m *Manager, category, name string) {
	t.Helper()
	content := map[string]any{
		"group1": map[string]any{"param1": 123},
		"top":    "hello",
	}
	if err := m.SaveRaw(category, name, content); err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}
}

func readActive(t *testing.T, m *Manager, category, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(m.Config().RootDir, category, "active", name+".json"))
	if err != nil {
		t.Fatalf("read active file: %v", err)
	}
	return string(data)
}

func TestNewManager_InvalidConfig(t *testing.T) {
	if _, err := NewManager(Config{RootDir: t.TempDir(), DefaultCategory: "../x"}); err == nil {
		t.Error("expected error for traversal default category")
	}
	if _, err := NewManager(Config{RootDir: t.TempDir(), FileMode: 0400}); !HasCode(err, ErrCodeInvalidConfig) {
		t.Errorf("read-only file mode: got %v", err)
	}
}

func TestManager_Scenario(t *testing.T) {
	m := newTestManager(t, Config{})
	seedScenario(t, m, "robots", "arm")

	node, err := m.GetNode("robots", "arm", []string{"group1", "param1"})
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if !node.IsValueNode() || node.Value != 123 || node.Len() != 0 {
		t.Errorf("param1 = %v", node)
	}

	if err := m.UpdateValue("robots", "arm", []string{"group1", "param1"}, 456); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	node, _ = m.GetNode("robots", "arm", []string{"group1", "param1"})
	if node.Value != 456 {
		t.Errorf("reloaded param1 = %v, want 456", node.Value)
	}

	if err := m.DeleteParameter("robots", "arm", []string{"group1", "param1"}); err != nil {
		t.Fatalf("DeleteParameter: %v", err)
	}
	if _, err := m.GetNode("robots", "arm", []string{"group1", "param1"}); !IsNotFound(err) {
		t.Errorf("GetNode after delete: %v", err)
	}
	if err := m.DeleteParameter("robots", "arm", []string{"group1", "param1"}); !IsNotFound(err) {
		t.Errorf("second delete: %v", err)
	}

	view, err := m.GetConfigView("robots", "arm")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"group1": map[string]any{}, "top": "hello"}
	if got := view.(*OrderedMap).ToMap(); !reflect.DeepEqual(got, want) {
		t.Errorf("view = %v", got)
	}
}

func TestManager_DeleteRootRejected(t *testing.T) {
	m := newTestManager(t, Config{})
	seedScenario(t, m, "robots", "arm")
	before := readActive(t, m, "robots", "arm")

	if err := m.DeleteParameter("robots", "arm", nil); !HasCode(err, ErrCodeInvalidPath) {
		t.Errorf("empty path delete: got %v", err)
	}
	if after := readActive(t, m, "robots", "arm"); after != before {
		t.Error("config changed after rejected delete")
	}
}

func TestManager_RawScalarConfig(t *testing.T) {
	m := newTestManager(t, Config{})
	dir := filepath.Join(m.Config().RootDir, "raw", "active")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "answer.json"), []byte("999"), 0644); err != nil {
		t.Fatal(err)
	}

	root, err := m.GetConfig("raw", "answer")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if !root.IsValueNode() || root.Len() != 0 {
		t.Errorf("root = %v", root)
	}
	if v := root.ToCleanView(); v != 999 {
		t.Errorf("clean view = %v", v)
	}
}

func TestManager_CreateConfig(t *testing.T) {
	m := newTestManager(t, Config{})

	root, err := m.CreateConfig("", "arm")
	if err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	if !root.IsGroup() || root.Len() != 0 {
		t.Errorf("new config = %v", root)
	}
	if _, err := m.CreateConfig("", "arm"); !IsAlreadyExists(err) {
		t.Errorf("duplicate create: got %v", err)
	}

	names, err := m.ListConfigs(DefaultCategory)
	if err != nil || !reflect.DeepEqual(names, []string{"arm"}) {
		t.Errorf("ListConfigs = %v, %v", names, err)
	}
	categories, err := m.ListCategories()
	if err != nil || !reflect.DeepEqual(categories, []string{DefaultCategory}) {
		t.Errorf("ListCategories = %v, %v", categories, err)
	}

	if _, err := m.GetConfig("", "missing"); !IsNotFound(err) {
		t.Errorf("GetConfig(missing): %v", err)
	}
	if err := m.DeleteConfig("", "arm"); err != nil {
		t.Fatalf("DeleteConfig: %v", err)
	}
	if err := m.DeleteConfig("", "arm"); !IsNotFound(err) {
		t.Errorf("second DeleteConfig: %v", err)
	}
}

func TestManager_CreateConfigOverMalformed(t *testing.T) {
	m := newTestManager(t, Config{})
	dir := filepath.Join(m.Config().RootDir, DefaultCategory, "active")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateConfig("", "bad"); !IsAlreadyExists(err) {
		t.Errorf("got %v", err)
	}
	if _, err := m.GetConfig("", "bad"); !IsParseError(err) {
		t.Errorf("GetConfig(bad): %v", err)
	}
}

func TestManager_AddParameter(t *testing.T) {
	m := newTestManager(t, Config{})
	seedScenario(t, m, "robots", "arm")

	added, err := m.AddParameter("robots", "arm", []string{"group1"}, TypeNumber, "rate",
		WithValue(20), WithMetadata(map[string]any{"min": 1, "max": 100}))
	if err != nil {
		t.Fatalf("AddParameter: %v", err)
	}
	if got := FormatPath(added.Path()); got != "group1.rate" {
		t.Errorf("path = %s", got)
	}
	node, _ := m.GetNode("robots", "arm", []string{"group1", "rate"})
	if node.Value != 20 || node.Type() != TypeNumber || node.Metadata["max"] != 100 {
		t.Errorf("stored = %v %v", node.Value, node.Metadata)
	}

	defaulted, err := m.AddParameter("robots", "arm", nil, TypeColor, "tint")
	if err != nil {
		t.Fatalf("AddParameter(default value): %v", err)
	}
	if defaulted.Value != "#00000000" {
		t.Errorf("default color = %v", defaulted.Value)
	}
}

func TestManager_AddParameterFailuresLeaveDiskUnchanged(t *testing.T) {
	m := newTestManager(t, Config{})
	seedScenario(t, m, "robots", "arm")
	before := readActive(t, m, "robots", "arm")

	tests := []struct {
		name   string
		parent []string
		typ    string
		child  string
		opts   []ParamOption
		check  func(error) bool
	}{
		{"duplicate", []string{"group1"}, TypeNumber, "param1", nil, IsDuplicateName},
		{"value parent", []string{"top"}, TypeString, "x", nil, IsInvalidParent},
		{"missing parent", []string{"nope"}, TypeString, "x", nil, IsNotFound},
		{"unknown type", nil, "quaternion", "q", nil, IsUnknownType},
		{"reserved name", nil, TypeString, "__value__", nil,
			func(err error) bool { return HasCode(err, ErrCodeInvalidName) }},
		{"invalid value", nil, TypeNumber, "n", []ParamOption{WithValue("fast")},
			func(err error) bool { return HasCode(err, ErrCodeInvalidValue) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.AddParameter("robots", "arm", tt.parent, tt.typ, tt.child, tt.opts...)
			if !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
			if after := readActive(t, m, "robots", "arm"); after != before {
				t.Error("config changed on disk after a failed add")
			}
		})
	}
}

func TestManager_StrictTypes(t *testing.T) {
	m := newTestManager(t, Config{})
	if _, err := m.CreateConfig("", "cam"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddParameter("", "cam", nil, TypeNumber, "fps",
		WithValue(30), WithMetadata(map[string]any{"min": 1, "max": 120})); err != nil {
		t.Fatal(err)
	}

	if err := m.UpdateValue("", "cam", []string{"fps"}, 240); !HasCode(err, ErrCodeInvalidValue) {
		t.Errorf("out of range update: got %v", err)
	}
	if err := m.UpdateValue("", "cam", []string{"fps"}, nil); !HasCode(err, ErrCodeInvalidValue) {
		t.Errorf("nil update: got %v", err)
	}
	node, _ := m.GetNode("", "cam", []string{"fps"})
	if node.Value != 30 {
		t.Errorf("fps = %v after rejected update", node.Value)
	}

	lax := newTestManager(t, Config{RootDir: m.Config().RootDir, StrictTypes: Bool(false)})
	if err := lax.UpdateValue("", "cam", []string{"fps"}, 240); err != nil {
		t.Errorf("non-strict update: %v", err)
	}
}

func TestManager_UpdateMetadataReplaces(t *testing.T) {
	m := newTestManager(t, Config{})
	seedScenario(t, m, "robots", "arm")

	if err := m.UpdateMetadata("robots", "arm", []string{"top"}, map[string]any{"type": "string"}); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateMetadata("robots", "arm", []string{"top"}, map[string]any{"label": "Top"}); err != nil {
		t.Fatal(err)
	}
	node, _ := m.GetNode("robots", "arm", []string{"top"})
	if !reflect.DeepEqual(node.Metadata, map[string]any{"label": "Top"}) {
		t.Errorf("metadata = %v, want wholesale replacement", node.Metadata)
	}
	if node.Value != "hello" {
		t.Errorf("value = %v", node.Value)
	}
	if err := m.UpdateMetadata("robots", "arm", []string{"nope"}, nil); !IsNotFound(err) {
		t.Errorf("missing path: %v", err)
	}
}

func TestManager_ApplyTemplate(t *testing.T) {
	m := newTestManager(t, Config{})
	if _, err := m.CreateConfig("viz", "scene"); err != nil {
		t.Fatal(err)
	}

	group, err := m.ApplyTemplate("viz", "scene", nil, "tf", "tf2_msgs/TFMessage")
	if err != nil {
		t.Fatalf("ApplyTemplate: %v", err)
	}
	if group.Len() != 5 {
		t.Errorf("group has %d children", group.Len())
	}
	node, err := m.GetNode("viz", "scene", []string{"tf", "marker_alpha"})
	if err != nil || node.Value != 0.5 {
		t.Errorf("marker_alpha = %v, %v", node, err)
	}

	if _, err := m.ApplyTemplate("viz", "scene", nil, "tf", DefaultTemplate); !IsDuplicateName(err) {
		t.Errorf("duplicate group: %v", err)
	}
	if _, err := m.ApplyTemplate("viz", "scene", nil, "x", "nope"); !HasCode(err, ErrCodeUnknownTemplate) {
		t.Errorf("unknown template: %v", err)
	}
	if _, err := m.ApplyTemplate("viz", "scene", []string{"tf", "show_axes"}, "x", DefaultTemplate); !IsInvalidParent(err) {
		t.Errorf("value parent: %v", err)
	}

	pose, err := m.ApplyTopicTemplate("viz", "scene", nil, "pose", "geometry_msgs/Pose")
	if err != nil {
		t.Fatalf("ApplyTopicTemplate: %v", err)
	}
	def, _ := m.Templates().Get(DefaultTemplate)
	if pose.Len() != len(def.Params) {
		t.Errorf("unknown topic type built %d parameters, want the default %d", pose.Len(), len(def.Params))
	}
	imu, err := m.ApplyTopicTemplate("viz", "scene", nil, "imu", "sensor_msgs/Imu")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := m.Templates().Get("sensor_msgs/Imu")
	if imu.Len() != len(want.Params) {
		t.Errorf("imu group has %d parameters, want %d", imu.Len(), len(want.Params))
	}
}

func TestManager_RoundTripThroughStorage(t *testing.T) {
	m := newTestManager(t, Config{})
	if _, err := m.CreateConfig("", "arm"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ApplyTemplate("", "arm", nil, "laser", "sensor_msgs/LaserScan"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddParameter("", "arm", []string{"laser"}, TypeVector2, "offset",
		WithValue([]any{1.5, -2})); err != nil {
		t.Fatal(err)
	}

	first, _ := m.GetConfig("", "arm")
	rebuilt := BuildTree(first.ToStorageForm(), RootName)
	if !first.Equal(rebuilt) {
		t.Error("tree does not survive a storage round trip")
	}

	size, _ := first.GetChild([]string{"laser", "point_size"})
	if size.Value != 2.0 {
		t.Errorf("point_size = %v (%T), float must stay a float", size.Value, size.Value)
	}
}

func TestManager_MappingValueSurvivesSave(t *testing.T) {
	m := newTestManager(t, Config{})
	seedScenario(t, m, "robots", "arm")
	if err := m.UpdateValue("robots", "arm", []string{"top"}, map[string]any{"x": 1}); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}

	top, err := m.GetNode("robots", "arm", []string{"top"})
	if err != nil {
		t.Fatal(err)
	}
	if !top.IsValueNode() || top.Len() != 0 {
		t.Fatalf("top = %v, want a leaf", top)
	}
	if !valuesEqual(top.Value, map[string]any{"x": 1}) {
		t.Errorf("top value = %#v", top.Value)
	}
	if _, ok := top.Child("x"); ok {
		t.Error("mapping value was stored as a child")
	}
}

func TestManager_ImportExport(t *testing.T) {
	m := newTestManager(t, Config{})
	seedScenario(t, m, "robots", "arm")
	if err := m.UpdateMetadata("robots", "arm", []string{"top"}, map[string]any{"type": "string"}); err != nil {
		t.Fatal(err)
	}

	for _, format := range []ConfigFormat{FormatJSON, FormatYAML} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := m.ExportConfig("robots", "arm", format, false)
			if err != nil {
				t.Fatalf("ExportConfig: %v", err)
			}
			copyName := "arm_" + format.String()
			if err := m.ImportConfig("robots", copyName, data, format); err != nil {
				t.Fatalf("ImportConfig: %v", err)
			}
			original, _ := m.GetConfig("robots", "arm")
			imported, _ := m.GetConfig("robots", copyName)
			if !original.Equal(imported) {
				t.Errorf("imported tree differs:\n%s\n%s", original, imported)
			}
		})
	}

	clean, err := m.ExportConfig("robots", "arm", FormatJSON, true)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := Decode(clean, FormatJSON)
	if raw.(*OrderedMap).Has(FormatKey) {
		t.Error("clean export should not carry storage markers")
	}

	if err := m.ImportConfig("robots", "broken", []byte("{"), FormatJSON); !IsParseError(err) {
		t.Errorf("broken import: %v", err)
	}
}

func TestManager_BackupRestore(t *testing.T) {
	m := newTestManager(t, Config{})
	seedScenario(t, m, "robots", "arm")
	path := []string{"group1", "param1"}

	backup, err := m.CreateBackup("robots", "arm")
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if err := m.UpdateValue("robots", "arm", path, 789); err != nil {
		t.Fatal(err)
	}
	if err := m.RestoreBackup("robots", "arm", backup); err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	node, _ := m.GetNode("robots", "arm", path)
	if node.Value != 123 {
		t.Errorf("restored value = %v, want 123", node.Value)
	}

	list, err := m.ListBackups("robots", "arm")
	if err != nil || !reflect.DeepEqual(list, []string{backup}) {
		t.Errorf("ListBackups = %v, %v", list, err)
	}

	// backups outlive their config
	if err := m.DeleteConfig("robots", "arm"); err != nil {
		t.Fatal(err)
	}
	if err := m.RestoreBackup("robots", "arm", backup); err != nil {
		t.Fatalf("RestoreBackup after delete: %v", err)
	}
	if err := m.DeleteBackup("robots", "arm", backup); err != nil {
		t.Fatalf("DeleteBackup: %v", err)
	}
	if err := m.DeleteBackup("robots", "arm", backup); !IsNotFound(err) {
		t.Errorf("second DeleteBackup: %v", err)
	}
	if err := m.RestoreBackup("robots", "arm", backup); !IsNotFound(err) {
		t.Errorf("restore deleted backup: %v", err)
	}
	if _, err := m.CreateBackup("robots", "ghost"); !IsNotFound(err) {
		t.Errorf("backup of missing config: %v", err)
	}
}

func TestManager_ConcurrentMutations(t *testing.T) {
	m := newTestManager(t, Config{})
	if _, err := m.CreateConfig("", "busy"); err != nil {
		t.Fatal(err)
	}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.AddParameter("", "busy", nil, TypeNumber, fmt.Sprintf("p%02d", i), WithValue(i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("AddParameter: %v", err)
		}
	}

	root, _ := m.GetConfig("", "busy")
	if root.Len() != workers {
		t.Errorf("config has %d parameters, want %d (lost update)", root.Len(), workers)
	}
}

func TestManager_InvalidNames(t *testing.T) {
	m := newTestManager(t, Config{})
	if _, err := m.CreateConfig("../etc", "x"); !HasCode(err, ErrCodeInvalidName) {
		t.Errorf("bad category: %v", err)
	}
	if _, err := m.CreateConfig("", "../../passwd"); !HasCode(err, ErrCodeInvalidName) {
		t.Errorf("bad name: %v", err)
	}
}

func TestManager_Close(t *testing.T) {
	m, err := NewManager(Config{RootDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := m.ListConfigs(""); !HasCode(err, ErrCodeManagerClosed) {
		t.Errorf("ListConfigs after Close: %v", err)
	}
	if _, err := m.ListCategories(); !HasCode(err, ErrCodeManagerClosed) {
		t.Errorf("ListCategories after Close: %v", err)
	}
}
