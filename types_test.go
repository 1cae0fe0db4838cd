// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"reflect"
	"testing"
)

func TestTypeRegistry_Builtins(t *testing.T) {
	r := NewTypeRegistry()
	want := []string{TypeBoolean, TypeColor, TypeEnumerate, TypeNumber, TypeString, TypeVector2, TypeVector3}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
	if len(NewEmptyTypeRegistry().Names()) != 0 {
		t.Error("empty registry should have no types")
	}
}

func TestTypeRegistry_Register(t *testing.T) {
	r := NewEmptyTypeRegistry()

	if err := r.Register(ParamType{Default: 1}); !HasCode(err, ErrCodeInvalidName) {
		t.Errorf("empty name: got %v", err)
	}
	if err := r.Register(ParamType{Name: "percent"}); !HasCode(err, ErrCodeInvalidValue) {
		t.Errorf("nil default: got %v", err)
	}
	if err := r.Register(ParamType{Name: "percent", Default: 50}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !r.Has("percent") {
		t.Error("percent not registered")
	}

	defer func() {
		if recover() == nil {
			t.Error("MustRegister should panic on invalid type")
		}
	}()
	r.MustRegister(ParamType{})
}

func TestCreateParameter_Defaults(t *testing.T) {
	r := NewTypeRegistry()

	node, err := r.CreateParameter(TypeNumber, "rate")
	if err != nil {
		t.Fatalf("CreateParameter: %v", err)
	}
	if node.Value != 0 {
		t.Errorf("Value = %v, want 0", node.Value)
	}
	if node.Type() != TypeNumber || node.Metadata["step"] != 0.1 {
		t.Errorf("Metadata = %v", node.Metadata)
	}

	vec, _ := r.CreateParameter(TypeVector3, "scale", WithValue(nil))
	if !reflect.DeepEqual(vec.Value, []any{0, 0, 0}) {
		t.Errorf("vector3 default = %v", vec.Value)
	}

	// Defaults must not be shared between parameters.
	vec.Value.([]any)[0] = 9
	again, _ := r.CreateParameter(TypeVector3, "scale")
	if again.Value.([]any)[0] != 0 {
		t.Error("default value was mutated through a created parameter")
	}
}

func TestCreateParameter_Overrides(t *testing.T) {
	r := NewTypeRegistry()
	node, err := r.CreateParameter(TypeNumber, "rate",
		WithValue(20),
		WithMetadata(map[string]any{"min": 1, "max": 100, TypeKey: "ignored"}))
	if err != nil {
		t.Fatalf("CreateParameter: %v", err)
	}
	if node.Value != 20 {
		t.Errorf("Value = %v", node.Value)
	}
	if node.Metadata["min"] != 1 || node.Metadata["max"] != 100 || node.Metadata["step"] != 0.1 {
		t.Errorf("Metadata = %v", node.Metadata)
	}
	if node.Type() != TypeNumber {
		t.Errorf("type = %q, overrides must not replace it", node.Type())
	}

	if _, err := r.CreateParameter("quaternion", "q"); !IsUnknownType(err) {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestTypeRegistry_Template(t *testing.T) {
	r := NewTypeRegistry()
	tmpl, err := r.Template(TypeBoolean)
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	om, ok := tmpl.(*OrderedMap)
	if !ok {
		t.Fatalf("Template returned %T", tmpl)
	}
	if v, _ := om.Get(ValueKey); v != false {
		t.Errorf("%s = %v", ValueKey, v)
	}
	if _, err := r.Template("nope"); !IsUnknownType(err) {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestTypeRegistry_Validate(t *testing.T) {
	r := NewTypeRegistry()
	bounded := map[string]any{"min": 0, "max": 10}
	options := map[string]any{"options": []any{"low", "high"}}

	tests := []struct {
		name     string
		typeName string
		value    any
		metadata map[string]any
		valid    bool
	}{
		{"string", TypeString, "x", nil, true},
		{"string rejects number", TypeString, 1, nil, false},
		{"number int", TypeNumber, 5, bounded, true},
		{"number float", TypeNumber, 9.5, bounded, true},
		{"number below min", TypeNumber, -1, bounded, false},
		{"number above max", TypeNumber, 10.5, bounded, false},
		{"number rejects string", TypeNumber, "5", bounded, false},
		{"boolean", TypeBoolean, true, nil, true},
		{"boolean rejects string", TypeBoolean, "true", nil, false},
		{"color rgb", TypeColor, "#FF00aa", nil, true},
		{"color rgba", TypeColor, "#FF00AA80", nil, true},
		{"color short", TypeColor, "#FFF", nil, false},
		{"color no hash", TypeColor, "FF0000", nil, false},
		{"vector2", TypeVector2, []any{1, 2.5}, nil, true},
		{"vector2 float slice", TypeVector2, []float64{1, 2}, nil, true},
		{"vector2 wrong size", TypeVector2, []any{1, 2, 3}, nil, false},
		{"vector3 non numeric", TypeVector3, []any{1, "a", 3}, nil, false},
		{"enumerate", TypeEnumerate, "high", options, true},
		{"enumerate unknown option", TypeEnumerate, "mid", options, false},
		{"enumerate without options", TypeEnumerate, "anything", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.typeName, tt.value, tt.metadata)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !HasCode(err, ErrCodeInvalidValue) {
				t.Errorf("expected InvalidValue, got %v", err)
			}
		})
	}

	if err := r.Validate("nope", 1, nil); !IsUnknownType(err) {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestTypeRegistry_CustomTypeWithoutValidator(t *testing.T) {
	r := NewTypeRegistry()
	r.MustRegister(ParamType{Name: "blob", Default: "data"})
	if err := r.Validate("blob", 42, nil); err != nil {
		t.Errorf("types without a validator accept anything, got %v", err)
	}
}
