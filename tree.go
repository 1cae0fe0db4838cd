// tree.go: Building parameter trees from their persisted form
//
// Storage convention (format version 1):
//   - a non-object document is a single value node
//   - in an object, "__value__" is the node's own value and "__metadata__"
//     its metadata; every other key is a child, recursively
//   - keys starting with "__" are reserved and never name a child
//   - "__format__" at the top level of a file records the format version
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agilira/go-errors"
)

// Reserved storage keys.
const (
	ReservedPrefix = "__"
	ValueKey       = "__value__"
	MetadataKey    = "__metadata__"
	FormatKey      = "__format__"

	// FormatVersion is the storage format written by this package.
	FormatVersion = 1
)

// IsReservedKey reports whether key belongs to the storage convention
// rather than naming a child.
func IsReservedKey(key string) bool {
	return strings.HasPrefix(key, ReservedPrefix)
}

// BuildTree converts persisted data into a node tree named name.
// Mappings may be *OrderedMap (order kept) or map[string]any (sorted keys);
// anything else becomes a single value node holding raw verbatim.
func BuildTree(raw any, name string) *ParamNode {
	switch m := raw.(type) {
	case *OrderedMap:
		return buildFromMap(m, name)
	case map[string]any:
		return buildFromMap(OrderedMapFrom(m), name)
	default:
		return &ParamNode{Name: name, Value: raw}
	}
}

func buildFromMap(m *OrderedMap, name string) *ParamNode {
	node := &ParamNode{Name: name}
	if v, ok := m.Get(ValueKey); ok {
		node.Value = v
	}
	if meta, ok := m.Get(MetadataKey); ok {
		node.Metadata = metadataFrom(meta)
	}
	for _, key := range m.Keys() {
		if IsReservedKey(key) {
			continue
		}
		val, _ := m.Get(key)
		// keys of one mapping are unique, AddChild cannot collide
		_ = node.AddChild(BuildTree(val, key))
	}
	return node
}

// metadataFrom accepts the mapping shapes a decoder may produce. Non-mapping
// metadata is ignored.
func metadataFrom(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case *OrderedMap:
		return t.ToMap()
	default:
		return nil
	}
}

// wrapDocument prepares a storage form for writing to a file, recording the
// format version on object documents.
func wrapDocument(form any) any {
	var om *OrderedMap
	switch t := form.(type) {
	case *OrderedMap:
		om = t
	case map[string]any:
		om = OrderedMapFrom(t)
	default:
		return form
	}
	doc := NewOrderedMap()
	doc.Set(FormatKey, FormatVersion)
	for _, k := range om.Keys() {
		if k == FormatKey {
			continue
		}
		v, _ := om.Get(k)
		doc.Set(k, v)
	}
	return doc
}

// checkDocumentVersion validates the "__format__" marker of a loaded
// document. Documents without a marker are version 1.
func checkDocumentVersion(raw any) error {
	om, ok := raw.(*OrderedMap)
	if !ok {
		return nil
	}
	v, ok := om.Get(FormatKey)
	if !ok {
		return nil
	}
	var version int
	switch t := v.(type) {
	case int:
		version = t
	case float64:
		version = int(t)
	default:
		return errors.New(ErrCodeUnsupportedFormat, fmt.Sprintf("invalid format marker %v", v))
	}
	if version < 1 || version > FormatVersion {
		return errors.New(ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported storage format version %d (max %d)", version, FormatVersion)).
			WithContext("version", version)
	}
	return nil
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
