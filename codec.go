// codec.go: Encoding and decoding of storage forms
//
// Active files and backups are always JSON. YAML is accepted for import
// and produced for export.
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// ConfigFormat identifies a serialization format.
type ConfigFormat int

const (
	FormatJSON ConfigFormat = iota
	FormatYAML
	FormatUnknown
)

// String returns the format name.
func (cf ConfigFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatYAML:
		return "YAML"
	default:
		return "Unknown"
	}
}

// Extension returns the file extension for the format, including the dot.
func (cf ConfigFormat) Extension() string {
	switch cf {
	case FormatYAML:
		return ".yaml"
	default:
		return ".json"
	}
}

// DetectFormat guesses the format from a file extension.
func DetectFormat(filePath string) ConfigFormat {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return FormatJSON
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// ParseFormat parses a format name such as "json" or "yaml".
func ParseFormat(name string) ConfigFormat {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// Decode parses data into a storage form: *OrderedMap for objects, []any for
// arrays, int/float64/string/bool/nil for scalars.
func Decode(data []byte, format ConfigFormat) (any, error) {
	var (
		v   any
		err error
	)
	switch format {
	case FormatJSON:
		v, err = decodeOrderedJSON(data)
	case FormatYAML:
		v, err = decodeOrderedYAML(data)
	default:
		return nil, errors.New(ErrCodeUnsupportedFormat, fmt.Sprintf("unsupported format: %s", format))
	}
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeParseError, fmt.Sprintf("invalid %s content", format))
	}
	return v, nil
}

// Encode serializes a storage form. JSON output is indented and keeps
// integral floats distinguishable from integers ("1.0", not "1").
func Encode(v any, format ConfigFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(prepareJSON(v), "", "    ")
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeSerializationError, "JSON marshal failed")
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, errors.Wrap(err, ErrCodeSerializationError, "YAML marshal failed")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, ErrCodeSerializationError, "YAML marshal failed")
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.New(ErrCodeUnsupportedFormat, fmt.Sprintf("unsupported format: %s", format))
	}
}

// prepareJSON rewrites floats holding integral values as json.Number with a
// fractional part so they decode back as float64.
func prepareJSON(v any) any {
	switch t := v.(type) {
	case *OrderedMap:
		out := NewOrderedMap()
		for _, k := range t.keys {
			out.Set(k, prepareJSON(t.values[k]))
		}
		return out
	case map[string]any:
		out := NewOrderedMap()
		for _, k := range sortedKeys(t) {
			out.Set(k, prepareJSON(t[k]))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = prepareJSON(item)
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = floatNumber(f)
		}
		return out
	case float64:
		return floatNumber(t)
	case float32:
		return floatNumber(float64(t))
	default:
		return v
	}
}

func floatNumber(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		// json.Marshal reports these as unsupported values
		return f
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}
