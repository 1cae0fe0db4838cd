// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"reflect"
	"testing"
	"time"
)

func binderTree(t *testing.T) *ParamNode {
	t.Helper()
	raw, err := Decode([]byte(`{
		"tf": {
			"marker_scale": {"__value__": 2.5, "__metadata__": {"type": "number"}},
			"show_names": true,
			"label": "frames",
			"count": 4,
			"timeout": "1500ms",
			"period": 2,
			"enabled": "on"
		},
		"camera": {"offset": [1, 2.5, -3], "name": "front"}
	}`), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	return BuildTree(raw, RootName)
}

func TestTreeBinder_Apply(t *testing.T) {
	root := binderTree(t)

	var (
		scale   float64
		names   bool
		label   string
		count   int
		count64 int64
		timeout time.Duration
		period  time.Duration
		offset  []float64
		countS  string
	)
	err := BindTree(root).
		BindFloat64(&scale, "tf.marker_scale").
		BindBool(&names, "tf.show_names").
		BindString(&label, "tf.label").
		BindInt(&count, "tf.count").
		BindInt64(&count64, "tf.count").
		BindDuration(&timeout, "tf.timeout").
		BindDuration(&period, "tf.period").
		BindFloat64Slice(&offset, "camera.offset").
		BindString(&countS, "tf.count").
		Apply()
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if scale != 2.5 || !names || label != "frames" || count != 4 || count64 != 4 {
		t.Errorf("scalars = %v %v %q %v %v", scale, names, label, count, count64)
	}
	if timeout != 1500*time.Millisecond || period != 2*time.Second {
		t.Errorf("durations = %v %v", timeout, period)
	}
	if !reflect.DeepEqual(offset, []float64{1, 2.5, -3}) {
		t.Errorf("offset = %v", offset)
	}
	if countS != "4" {
		t.Errorf("count as string = %q", countS)
	}
}

func TestTreeBinder_Defaults(t *testing.T) {
	root := binderTree(t)

	var (
		missing string
		group   int
		scale   float64
		offset  []float64
		flag    bool
	)
	err := BindTree(root).
		BindString(&missing, "tf.nope", "fallback").
		BindInt(&group, "camera", 7).
		BindFloat64(&scale, "a.b.c", 1.5).
		BindFloat64Slice(&offset, "camera.missing", []float64{0, 0}).
		BindBool(&flag, "nothing", true).
		Apply()
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if missing != "fallback" || group != 7 || scale != 1.5 || !flag {
		t.Errorf("defaults = %q %v %v %v", missing, group, scale, flag)
	}
	if !reflect.DeepEqual(offset, []float64{0, 0}) {
		t.Errorf("offset = %v", offset)
	}

	var name string
	if err := BindTree(nil).BindString(&name, "x", "nil-root").Apply(); err != nil || name != "nil-root" {
		t.Errorf("nil root = %q, %v", name, err)
	}
}

func TestTreeBinder_StringBool(t *testing.T) {
	root := binderTree(t)
	var enabled bool
	if err := BindTree(root).BindBool(&enabled, "tf.enabled").Apply(); err == nil {
		t.Error(`"on" is not a Go boolean literal and should fail`)
	}
}

func TestTreeBinder_ConversionErrors(t *testing.T) {
	root := binderTree(t)

	var (
		n int
		f float64
		v []float64
		d time.Duration
	)
	tests := []struct {
		name   string
		binder *TreeBinder
	}{
		{"fractional int", BindTree(root).BindInt(&n, "tf.marker_scale")},
		{"string int", BindTree(root).BindInt(&n, "tf.label")},
		{"string float", BindTree(root).BindFloat64(&f, "tf.label")},
		{"scalar slice", BindTree(root).BindFloat64Slice(&v, "tf.count")},
		{"string slice", BindTree(root).BindFloat64Slice(&v, "camera.name")},
		{"bad duration", BindTree(root).BindDuration(&d, "tf.label")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.binder.Apply()
			if !HasCode(err, ErrCodeInvalidValue) {
				t.Errorf("expected InvalidValue, got %v", err)
			}
		})
	}
}
