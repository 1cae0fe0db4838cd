// node.go: ParamNode, the unit of the parameter tree
//
// A node is a value, a group, or (rarely) both. The tree owns every
// descendant; the parent pointer exists only to rebuild paths.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/agilira/go-errors"
)

// RootName is the name given to the root node of every config tree.
// It never appears in a path.
const RootName = "__root__"

// ParamNode is one node in a configuration tree.
type ParamNode struct {
	Name     string
	Value    any
	Metadata map[string]any

	parent   *ParamNode
	order    []string
	children map[string]*ParamNode
}

// NewGroup returns an empty group node.
func NewGroup(name string) *ParamNode {
	return &ParamNode{Name: name}
}

// NewValue returns a value node. A nil metadata map is allowed.
func NewValue(name string, value any, metadata map[string]any) *ParamNode {
	return &ParamNode{Name: name, Value: value, Metadata: metadata}
}

// IsValueNode reports whether the node holds a value.
func (n *ParamNode) IsValueNode() bool { return n.Value != nil }

// IsGroup reports whether the node has no value.
func (n *ParamNode) IsGroup() bool { return n.Value == nil }

// IsMixed reports whether the node holds a value and has children.
func (n *ParamNode) IsMixed() bool { return n.Value != nil && len(n.order) > 0 }

// Type returns the "type" metadata entry, or "" if absent.
func (n *ParamNode) Type() string {
	if t, ok := n.Metadata["type"].(string); ok {
		return t
	}
	return ""
}

// Parent returns the node's parent, nil for a root or detached node.
func (n *ParamNode) Parent() *ParamNode { return n.parent }

// Len returns the number of children.
func (n *ParamNode) Len() int { return len(n.order) }

// ChildNames returns child names in order.
func (n *ParamNode) ChildNames() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Children returns the children in order.
func (n *ParamNode) Children() []*ParamNode {
	out := make([]*ParamNode, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.children[name])
	}
	return out
}

// Child returns the direct child called name.
func (n *ParamNode) Child(name string) (*ParamNode, bool) {
	c, ok := n.children[name]
	return c, ok
}

// GetChild walks path from n. An empty path returns n itself.
func (n *ParamNode) GetChild(path []string) (*ParamNode, bool) {
	current := n
	for _, key := range path {
		next, ok := current.children[key]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// AddChild attaches child under n. It fails with DuplicateName when a
// sibling already uses the name.
func (n *ParamNode) AddChild(child *ParamNode) error {
	if child == nil {
		return errors.New(ErrCodeInvalidName, "child node cannot be nil")
	}
	if _, exists := n.children[child.Name]; exists {
		return errors.New(ErrCodeDuplicateName,
			fmt.Sprintf("child with name '%s' already exists in '%s'", child.Name, n.Name)).
			WithContext("parent", n.Name).
			WithContext("child", child.Name)
	}
	if n.children == nil {
		n.children = make(map[string]*ParamNode)
	}
	child.parent = n
	n.children[child.Name] = child
	n.order = append(n.order, child.Name)
	return nil
}

// RemoveChild detaches the child called name.
func (n *ParamNode) RemoveChild(name string) error {
	child, ok := n.children[name]
	if !ok {
		return errors.New(ErrCodeNotFound,
			fmt.Sprintf("no child with name '%s' in '%s'", name, n.Name)).
			WithContext("parent", n.Name).
			WithContext("child", name)
	}
	child.parent = nil
	delete(n.children, name)
	for i, k := range n.order {
		if k == name {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	return nil
}

// Path returns the names from the root (exclusive) down to n.
func (n *ParamNode) Path() []string {
	var path []string
	for cur := n; cur != nil && cur.parent != nil; cur = cur.parent {
		path = append(path, cur.Name)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Walk visits n and its descendants depth-first in child order. Returning
// false from fn skips the node's children.
func (n *ParamNode) Walk(fn func(node *ParamNode) bool) {
	if !fn(n) {
		return
	}
	for _, name := range n.order {
		n.children[name].Walk(fn)
	}
}

// ToStorageForm serializes the subtree to its persisted shape. A value-only
// node without metadata or children collapses to its raw value unless that
// value is itself a mapping.
func (n *ParamNode) ToStorageForm() any {
	if n.IsValueNode() && len(n.order) == 0 && len(n.Metadata) == 0 && !isMapping(n.Value) {
		return n.Value
	}
	out := NewOrderedMap()
	if n.IsValueNode() {
		out.Set(ValueKey, n.Value)
	}
	if len(n.Metadata) > 0 {
		out.Set(MetadataKey, n.Metadata)
	}
	for _, name := range n.order {
		out.Set(name, n.children[name].ToStorageForm())
	}
	return out
}

// ToCleanView serializes the subtree without reserved markers. Value nodes
// without children become their raw value. For mixed nodes the node's own
// value is dropped and only the children are emitted.
func (n *ParamNode) ToCleanView() any {
	if n.IsValueNode() && len(n.order) == 0 {
		return n.Value
	}
	out := NewOrderedMap()
	for _, name := range n.order {
		out.Set(name, n.children[name].ToCleanView())
	}
	return out
}

// Clone returns a detached deep copy of the subtree.
func (n *ParamNode) Clone() *ParamNode {
	c := &ParamNode{
		Name:     n.Name,
		Value:    deepCopyValue(n.Value),
		Metadata: deepCopy(n.Metadata),
	}
	for _, name := range n.order {
		// names are unique in n, AddChild cannot fail
		_ = c.AddChild(n.children[name].Clone())
	}
	return c
}

// Equal reports structural equality: names, values, metadata and children
// (including their order). Parents are not compared.
func (n *ParamNode) Equal(other *ParamNode) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Name != other.Name || !valuesEqual(n.Value, other.Value) {
		return false
	}
	if len(n.Metadata) != len(other.Metadata) {
		return false
	}
	if len(n.Metadata) > 0 && !valuesEqual(n.Metadata, other.Metadata) {
		return false
	}
	if len(n.order) != len(other.order) {
		return false
	}
	for i, name := range n.order {
		if other.order[i] != name {
			return false
		}
		if !n.children[name].Equal(other.children[name]) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer for debugging.
func (n *ParamNode) String() string {
	return fmt.Sprintf("ParamNode(name=%q, value=%v, children=%v)", n.Name, n.Value, n.order)
}

// ParsePath splits a dot-separated path. An empty string is the root path.
func ParsePath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" || path == "." {
		return nil
	}
	return strings.Split(path, ".")
}

// FormatPath joins path segments with dots.
func FormatPath(path []string) string {
	return strings.Join(path, ".")
}

// isMapping reports whether BuildTree would read v as a group. Such values
// are always written under ValueKey.
func isMapping(v any) bool {
	switch v.(type) {
	case *OrderedMap, map[string]any:
		return true
	}
	return false
}

// valuesEqual compares values after normalizing ordered maps to plain maps.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(plainValue(normalizeMaps(a)), plainValue(normalizeMaps(b)))
}

func normalizeMaps(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeMaps(val)
		}
		return out
	case *OrderedMap:
		return normalizeMaps(t.ToMap())
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeMaps(item)
		}
		return out
	default:
		return v
	}
}

// deepCopy creates a deep copy of a metadata map.
func deepCopy(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case *OrderedMap:
		out := NewOrderedMap()
		for _, k := range t.keys {
			out.Set(k, deepCopyValue(t.values[k]))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	case []float64:
		out := make([]float64, len(t))
		copy(out, t)
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
