// types.go: Parameter type registry
//
// A type is a default value plus a metadata template. New parameters are
// instantiated from a type, recording its name under the "type" metadata key.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/agilira/go-errors"
)

// TypeKey is the metadata key recording a parameter's type.
const TypeKey = "type"

// Built-in type names.
const (
	TypeString    = "string"
	TypeNumber    = "number"
	TypeBoolean   = "boolean"
	TypeColor     = "color"
	TypeVector2   = "vector2"
	TypeVector3   = "vector3"
	TypeEnumerate = "enumerate"
)

// ValidateFunc checks a value against a type. metadata is the node's
// effective metadata (template merged with overrides).
type ValidateFunc func(value any, metadata map[string]any) error

// ParamType is a named parameter type.
type ParamType struct {
	Name     string
	Default  any
	Metadata map[string]any
	Validate ValidateFunc
}

// TypeRegistry maps type names to definitions. Safe for concurrent use.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]ParamType
}

// NewTypeRegistry returns a registry preloaded with the built-in types.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{types: make(map[string]ParamType)}
	for _, t := range builtinTypes() {
		r.MustRegister(t)
	}
	return r
}

// NewEmptyTypeRegistry returns a registry with no types.
func NewEmptyTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]ParamType)}
}

func builtinTypes() []ParamType {
	return []ParamType{
		{Name: TypeString, Default: "", Validate: validateString},
		{
			Name:     TypeNumber,
			Default:  0,
			Metadata: map[string]any{"min": -1e9, "max": 1e9, "step": 0.1},
			Validate: validateNumber,
		},
		{Name: TypeBoolean, Default: false, Validate: validateBoolean},
		{Name: TypeColor, Default: "#00000000", Validate: validateColor},
		{Name: TypeVector2, Default: []any{0, 0}, Validate: validateVector(2)},
		{Name: TypeVector3, Default: []any{0, 0, 0}, Validate: validateVector(3)},
		{
			Name:     TypeEnumerate,
			Default:  "option1",
			Metadata: map[string]any{"options": []any{"option1", "option2", "option3"}},
			Validate: validateEnumerate,
		},
	}
}

// Register adds or replaces a type.
func (r *TypeRegistry) Register(t ParamType) error {
	if t.Name == "" {
		return errors.New(ErrCodeInvalidName, "type name cannot be empty")
	}
	if t.Default == nil {
		return errors.New(ErrCodeInvalidValue, fmt.Sprintf("type '%s' needs a default value", t.Name)).
			WithContext("type", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name] = t
	return nil
}

// MustRegister is like Register but panics on error.
func (r *TypeRegistry) MustRegister(t ParamType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns the type called name.
func (r *TypeRegistry) Get(name string) (ParamType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Has reports whether name is registered.
func (r *TypeRegistry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered type names, sorted.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParamOption customizes CreateParameter.
type ParamOption func(*paramOptions)

type paramOptions struct {
	value    any
	hasValue bool
	metadata map[string]any
}

// WithValue overrides the type's default value. A nil value keeps the default.
func WithValue(v any) ParamOption {
	return func(o *paramOptions) {
		if v != nil {
			o.value = v
			o.hasValue = true
		}
	}
}

// WithMetadata merges overrides into the type's metadata template.
// Overrides win on key conflicts.
func WithMetadata(md map[string]any) ParamOption {
	return func(o *paramOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]any, len(md))
		}
		for k, v := range md {
			o.metadata[k] = v
		}
	}
}

// CreateParameter instantiates a value node of type typeName.
func (r *TypeRegistry) CreateParameter(typeName, name string, opts ...ParamOption) (*ParamNode, error) {
	t, ok := r.Get(typeName)
	if !ok {
		return nil, errors.New(ErrCodeUnknownType, fmt.Sprintf("unknown parameter type '%s'", typeName)).
			WithContext("type", typeName)
	}
	var o paramOptions
	for _, opt := range opts {
		opt(&o)
	}

	metadata := deepCopy(t.Metadata)
	if metadata == nil {
		metadata = make(map[string]any, len(o.metadata)+1)
	}
	for k, v := range o.metadata {
		metadata[k] = deepCopyValue(v)
	}
	metadata[TypeKey] = typeName

	value := deepCopyValue(t.Default)
	if o.hasValue {
		value = o.value
	}
	return NewValue(name, value, metadata), nil
}

// Template returns the storage form of a default parameter of typeName.
func (r *TypeRegistry) Template(typeName string) (any, error) {
	node, err := r.CreateParameter(typeName, typeName)
	if err != nil {
		return nil, err
	}
	return node.ToStorageForm(), nil
}

// Validate checks value against typeName. Types without a validator accept
// anything; unknown types fail with UnknownType.
func (r *TypeRegistry) Validate(typeName string, value any, metadata map[string]any) error {
	t, ok := r.Get(typeName)
	if !ok {
		return errors.New(ErrCodeUnknownType, fmt.Sprintf("unknown parameter type '%s'", typeName)).
			WithContext("type", typeName)
	}
	if t.Validate == nil {
		return nil
	}
	if err := t.Validate(value, metadata); err != nil {
		return errors.Wrap(err, ErrCodeInvalidValue,
			fmt.Sprintf("invalid value for type '%s'", typeName)).
			WithContext("type", typeName).
			WithContext("value", value)
	}
	return nil
}

func validateString(value any, _ map[string]any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

func validateBoolean(value any, _ map[string]any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", value)
	}
	return nil
}

func validateNumber(value any, metadata map[string]any) error {
	f, ok := toFloat(value)
	if !ok {
		return fmt.Errorf("expected number, got %T", value)
	}
	if lo, ok := toFloat(metadata["min"]); ok && f < lo {
		return fmt.Errorf("%v is below minimum %v", value, metadata["min"])
	}
	if hi, ok := toFloat(metadata["max"]); ok && f > hi {
		return fmt.Errorf("%v is above maximum %v", value, metadata["max"])
	}
	return nil
}

var colorPattern = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

func validateColor(value any, _ map[string]any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected color string, got %T", value)
	}
	if !colorPattern.MatchString(s) {
		return fmt.Errorf("color %q must be #RRGGBB or #RRGGBBAA", s)
	}
	return nil
}

func validateVector(size int) ValidateFunc {
	return func(value any, _ map[string]any) error {
		items, ok := toSlice(value)
		if !ok {
			return fmt.Errorf("expected array of %d numbers, got %T", size, value)
		}
		if len(items) != size {
			return fmt.Errorf("expected %d components, got %d", size, len(items))
		}
		for i, item := range items {
			if _, ok := toFloat(item); !ok {
				return fmt.Errorf("component %d is not a number", i)
			}
		}
		return nil
	}
}

func validateEnumerate(value any, metadata map[string]any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string option, got %T", value)
	}
	options, ok := toSlice(metadata["options"])
	if !ok {
		// no options declared
		return nil
	}
	for _, opt := range options {
		if opt == s {
			return nil
		}
	}
	return fmt.Errorf("%q is not one of %v", s, options)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []float64:
		out := make([]any, len(s))
		for i, f := range s {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, n := range s {
			out[i] = n
		}
		return out, true
	case []string:
		out := make([]any, len(s))
		for i, str := range s {
			out[i] = str
		}
		return out, true
	default:
		return nil, false
	}
}
