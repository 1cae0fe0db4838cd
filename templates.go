// templates.go: Named parameter group templates
//
// A template describes a group of typed parameters that is instantiated in
// one step, for instance the display settings attached to a message topic.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agilira/go-errors"
)

// DefaultTemplate is used when no template matches a topic type.
const DefaultTemplate = "default"

// TemplateParam is one parameter of a template.
type TemplateParam struct {
	Name     string
	Type     string
	Value    any
	Metadata map[string]any
}

// Template is an ordered list of parameters.
type Template struct {
	Name   string
	Params []TemplateParam
}

// TemplateRegistry holds named templates. Safe for concurrent use.
type TemplateRegistry struct {
	mu        sync.RWMutex
	types     *TypeRegistry
	templates map[string]Template
}

// NewTemplateRegistry returns a registry with the built-in templates,
// instantiating parameters through types.
func NewTemplateRegistry(types *TypeRegistry) *TemplateRegistry {
	r := &TemplateRegistry{types: types, templates: make(map[string]Template)}
	for _, t := range builtinTemplates() {
		r.templates[t.Name] = t
	}
	return r
}

func builtinTemplates() []Template {
	return []Template{
		{Name: DefaultTemplate, Params: []TemplateParam{
			{Name: "display_type", Type: TypeString, Value: "marker"},
			{Name: "marker_type", Type: TypeString, Value: "cube"},
			{Name: "color", Type: TypeColor, Value: "#FF0000"},
			{Name: "scale", Type: TypeVector3, Value: []any{1, 1, 1}},
		}},
		{Name: "sensor_msgs/Imu", Params: []TemplateParam{
			{Name: "display_type", Type: TypeString, Value: "model"},
			{Name: "model_path", Type: TypeString, Value: "/imu.glb"},
			{Name: "scale", Type: TypeVector3, Value: []any{1, 1, 1}},
		}},
		{Name: "sensor_msgs/LaserScan", Params: []TemplateParam{
			{Name: "display_type", Type: TypeString, Value: "point_cloud"},
			{Name: "point_size", Type: TypeNumber, Value: 2.0},
			{Name: "color", Type: TypeColor, Value: "#00FF00"},
		}},
		{Name: "tf2_msgs/TFMessage", Params: []TemplateParam{
			{Name: "show_names", Type: TypeBoolean, Value: true},
			{Name: "show_axes", Type: TypeBoolean, Value: true},
			{Name: "show_arrows", Type: TypeBoolean, Value: true},
			{Name: "marker_scale", Type: TypeNumber, Value: 1.0,
				Metadata: map[string]any{"min": 0.1, "max": 10.0}},
			{Name: "marker_alpha", Type: TypeNumber, Value: 0.5,
				Metadata: map[string]any{"min": 0.1, "max": 1.0}},
		}},
	}
}

// Register adds or replaces a template. Every parameter type must be known.
func (r *TemplateRegistry) Register(t Template) error {
	if t.Name == "" {
		return errors.New(ErrCodeInvalidName, "template name cannot be empty")
	}
	seen := make(map[string]bool, len(t.Params))
	for _, p := range t.Params {
		if err := validateChildName(p.Name); err != nil {
			return err
		}
		if seen[p.Name] {
			return errors.New(ErrCodeDuplicateName,
				fmt.Sprintf("template '%s' declares '%s' twice", t.Name, p.Name)).
				WithContext("template", t.Name)
		}
		seen[p.Name] = true
		if !r.types.Has(p.Type) {
			return errors.New(ErrCodeUnknownType,
				fmt.Sprintf("template '%s' uses unknown type '%s'", t.Name, p.Type)).
				WithContext("template", t.Name).
				WithContext("type", p.Type)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name] = t
	return nil
}

// Get returns the template called name.
func (r *TemplateRegistry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// Names returns the registered template names, sorted.
func (r *TemplateRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the template for a topic type, falling back to the
// default template.
func (r *TemplateRegistry) Resolve(name string) Template {
	if t, ok := r.Get(name); ok {
		return t
	}
	t, _ := r.Get(DefaultTemplate)
	return t
}

// Build instantiates template name as a group node called groupName.
func (r *TemplateRegistry) Build(name, groupName string) (*ParamNode, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, errors.New(ErrCodeUnknownTemplate, fmt.Sprintf("unknown template '%s'", name)).
			WithContext("template", name)
	}
	group := NewGroup(groupName)
	for _, p := range t.Params {
		child, err := r.types.CreateParameter(p.Type, p.Name,
			WithValue(deepCopyValue(p.Value)), WithMetadata(p.Metadata))
		if err != nil {
			return nil, err
		}
		if err := group.AddChild(child); err != nil {
			return nil, err
		}
	}
	return group, nil
}
