// binder.go: Typed binding of tree values to Go variables
//
// Example:
//
//	var (
//		scale  float64
//		names  bool
//		offset []float64
//	)
//	err := paramstore.BindTree(root).
//		BindFloat64(&scale, "tf.marker_scale", 1.0).
//		BindBool(&names, "tf.show_names").
//		BindFloat64Slice(&offset, "camera.offset", []float64{0, 0, 0}).
//		Apply()
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// binding resolves one path and stores the converted value.
type binding struct {
	path   string
	assign func(value any, found bool) error
}

// TreeBinder collects bindings and applies them in one pass.
type TreeBinder struct {
	root     *ParamNode
	bindings []binding
}

// BindTree starts a binder over root. A nil root makes every binding fall
// back to its default.
func BindTree(root *ParamNode) *TreeBinder {
	return &TreeBinder{root: root, bindings: make([]binding, 0, 8)}
}

// BindString binds a string value.
func (tb *TreeBinder) BindString(target *string, path string, defaultValue ...string) *TreeBinder {
	def := ""
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	return tb.add(path, func(v any, found bool) error {
		if !found {
			*target = def
			return nil
		}
		*target = toString(v)
		return nil
	})
}

// BindInt binds an int value. Integral floats are accepted.
func (tb *TreeBinder) BindInt(target *int, path string, defaultValue ...int) *TreeBinder {
	def := 0
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	return tb.add(path, func(v any, found bool) error {
		if !found {
			*target = def
			return nil
		}
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		*target = int(n)
		return nil
	})
}

// BindInt64 binds an int64 value.
func (tb *TreeBinder) BindInt64(target *int64, path string, defaultValue ...int64) *TreeBinder {
	var def int64
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	return tb.add(path, func(v any, found bool) error {
		if !found {
			*target = def
			return nil
		}
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		*target = n
		return nil
	})
}

// BindBool binds a boolean value. Strings accepted by strconv.ParseBool
// ("true", "0", "F") are converted.
func (tb *TreeBinder) BindBool(target *bool, path string, defaultValue ...bool) *TreeBinder {
	def := len(defaultValue) > 0 && defaultValue[0]
	return tb.add(path, func(v any, found bool) error {
		if !found {
			*target = def
			return nil
		}
		switch b := v.(type) {
		case bool:
			*target = b
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return fmt.Errorf("cannot convert %q to bool", b)
			}
			*target = parsed
		default:
			return fmt.Errorf("cannot convert %T to bool", v)
		}
		return nil
	})
}

// BindFloat64 binds a numeric value.
func (tb *TreeBinder) BindFloat64(target *float64, path string, defaultValue ...float64) *TreeBinder {
	var def float64
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	return tb.add(path, func(v any, found bool) error {
		if !found {
			*target = def
			return nil
		}
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return fmt.Errorf("cannot convert %q to float64", s)
			}
			*target = f
			return nil
		}
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("cannot convert %T to float64", v)
		}
		*target = f
		return nil
	})
}

// BindDuration binds a duration written as a Go duration string ("1.5s")
// or as a number of seconds.
func (tb *TreeBinder) BindDuration(target *time.Duration, path string, defaultValue ...time.Duration) *TreeBinder {
	var def time.Duration
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	return tb.add(path, func(v any, found bool) error {
		if !found {
			*target = def
			return nil
		}
		if s, ok := v.(string); ok {
			d, err := time.ParseDuration(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("cannot convert %q to duration", s)
			}
			*target = d
			return nil
		}
		secs, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("cannot convert %T to duration", v)
		}
		*target = time.Duration(secs * float64(time.Second))
		return nil
	})
}

// BindFloat64Slice binds a numeric array such as a vector2 or vector3.
func (tb *TreeBinder) BindFloat64Slice(target *[]float64, path string, defaultValue ...[]float64) *TreeBinder {
	var def []float64
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	return tb.add(path, func(v any, found bool) error {
		if !found {
			*target = append([]float64(nil), def...)
			return nil
		}
		items, ok := toSlice(v)
		if !ok {
			return fmt.Errorf("cannot convert %T to []float64", v)
		}
		out := make([]float64, len(items))
		for i, item := range items {
			f, ok := toFloat(item)
			if !ok {
				return fmt.Errorf("element %d is %T, not a number", i, item)
			}
			out[i] = f
		}
		*target = out
		return nil
	})
}

func (tb *TreeBinder) add(path string, assign func(any, bool) error) *TreeBinder {
	tb.bindings = append(tb.bindings, binding{path: path, assign: assign})
	return tb
}

// Apply resolves every binding. It stops at the first conversion error.
func (tb *TreeBinder) Apply() error {
	for _, b := range tb.bindings {
		value, found := tb.lookup(b.path)
		if err := b.assign(value, found); err != nil {
			return errors.Wrap(err, ErrCodeInvalidValue, "failed to bind '"+b.path+"'").
				WithContext("path", b.path)
		}
	}
	return nil
}

// lookup returns the value at path. Groups and missing nodes are "not
// found" so their bindings take the default.
func (tb *TreeBinder) lookup(path string) (any, bool) {
	if tb.root == nil {
		return nil, false
	}
	node, ok := tb.root.GetChild(ParsePath(path))
	if !ok || !node.IsValueNode() {
		return nil, false
	}
	return node.Value, true
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}
