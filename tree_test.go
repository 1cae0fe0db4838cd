// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"reflect"
	"testing"
)

func TestBuildTree_RoundTrip(t *testing.T) {
	doc := `{
    "camera": {
        "fps": {"__value__": 30, "__metadata__": {"type": "number", "min": 1}},
        "name": "front",
        "offset": [0.5, 0, 1]
    },
    "enabled": true
}`
	raw, err := Decode([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	root := BuildTree(raw, RootName)

	fps, ok := root.GetChild([]string{"camera", "fps"})
	if !ok || fps.Value != 30 || fps.Type() != "number" {
		t.Fatalf("fps = %v", fps)
	}
	camera, _ := root.Child("camera")
	if got := camera.ChildNames(); !reflect.DeepEqual(got, []string{"fps", "name", "offset"}) {
		t.Errorf("order lost: %v", got)
	}

	rebuilt := BuildTree(root.ToStorageForm(), RootName)
	if !root.Equal(rebuilt) {
		t.Error("storage form round trip changed the tree")
	}
}

func TestBuildTree_MappingValueStaysLeaf(t *testing.T) {
	obj := NewOrderedMap()
	obj.Set("x", 1)
	root := &ParamNode{Name: RootName}
	for name, value := range map[string]any{
		"ordered": obj,
		"plain":   map[string]any{"y": "z"},
	} {
		if err := root.AddChild(&ParamNode{Name: name, Value: value}); err != nil {
			t.Fatal(err)
		}
	}

	form := root.ToStorageForm().(*OrderedMap)
	stored, _ := form.Get("ordered")
	if m, ok := stored.(*OrderedMap); !ok || !m.Has(ValueKey) {
		t.Fatalf("mapping value not wrapped: %#v", stored)
	}

	data, err := Encode(form, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := Decode(data, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	rebuilt := BuildTree(raw, RootName)
	if !root.Equal(rebuilt) {
		t.Errorf("round trip changed the tree:\n%s\n%s", root, rebuilt)
	}
	leaf, _ := rebuilt.Child("plain")
	if !leaf.IsValueNode() || leaf.Len() != 0 {
		t.Errorf("plain = %v, want a value node without children", leaf)
	}
}

func TestBuildTree_Scalars(t *testing.T) {
	for _, raw := range []any{999, "text", true, 1.5, []any{1, 2}} {
		node := BuildTree(raw, RootName)
		if !node.IsValueNode() || !reflect.DeepEqual(node.Value, raw) {
			t.Errorf("BuildTree(%v) = %v", raw, node)
		}
		if !reflect.DeepEqual(node.ToStorageForm(), raw) {
			t.Errorf("scalar storage form changed: %v", node.ToStorageForm())
		}
	}
}

func TestBuildTree_PlainMapSortsKeys(t *testing.T) {
	root := BuildTree(map[string]any{"b": 1, "a": 2, "c": 3}, RootName)
	if got := root.ChildNames(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("ChildNames = %v", got)
	}
}

func TestBuildTree_IgnoresUnknownReservedKeys(t *testing.T) {
	root := BuildTree(map[string]any{"__format__": 1, "__note__": "x", "a": 1}, RootName)
	if got := root.ChildNames(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("reserved keys became children: %v", got)
	}
}

func TestWrapDocument(t *testing.T) {
	om := NewOrderedMap()
	om.Set("a", 1)
	om.Set(FormatKey, 7)

	doc, ok := wrapDocument(om).(*OrderedMap)
	if !ok {
		t.Fatal("expected *OrderedMap")
	}
	if got := doc.Keys(); !reflect.DeepEqual(got, []string{FormatKey, "a"}) {
		t.Errorf("keys = %v", got)
	}
	if v, _ := doc.Get(FormatKey); v != FormatVersion {
		t.Errorf("format = %v", v)
	}
	if wrapDocument(999) != 999 {
		t.Error("scalars should pass through")
	}
}

func TestCheckDocumentVersion(t *testing.T) {
	tests := []struct {
		name    string
		marker  any
		wantErr bool
	}{
		{"current", 1, false},
		{"float", 1.0, false},
		{"future", 2, true},
		{"zero", 0, true},
		{"string", "1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			om := NewOrderedMap()
			om.Set(FormatKey, tt.marker)
			err := checkDocumentVersion(om)
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !HasCode(err, ErrCodeUnsupportedFormat) {
				t.Errorf("unexpected code %q", ErrorCode(err))
			}
		})
	}
	if err := checkDocumentVersion(NewOrderedMap()); err != nil {
		t.Errorf("missing marker should be accepted: %v", err)
	}
}
