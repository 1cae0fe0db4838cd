// Utility functions for the paramstore CLI
//
// Argument checks, format selection, value parsing and file helpers shared
// by the command handlers.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/agilira/paramstore"
)

var extendedDuration = regexp.MustCompile(`^(\d+)(d|w)$`)

// requireArgs returns the first n positional arguments, failing with a usage
// error when any is missing.
func requireArgs(ctx *orpheus.Context, usage string, n int) ([]string, error) {
	args := make([]string, n)
	for i := range args {
		args[i] = ctx.GetArg(i)
		if args[i] == "" {
			return nil, errors.New(ErrCodeUsage, "usage: paramstore "+usage)
		}
	}
	return args, nil
}

// outputFormat maps a --format value to a codec format.
func outputFormat(name string) (paramstore.ConfigFormat, error) {
	if name == "" {
		return paramstore.FormatJSON, nil
	}
	f := paramstore.ParseFormat(name)
	if f == paramstore.FormatUnknown {
		return f, errors.New(paramstore.ErrCodeUnsupportedFormat, "unsupported format '"+name+"'")
	}
	return f, nil
}

// inputFormat picks the format of an input file, detecting it from the
// extension when explicit is "auto" or empty.
func inputFormat(path, explicit string) (paramstore.ConfigFormat, error) {
	if explicit != "" && explicit != "auto" {
		return outputFormat(explicit)
	}
	f := paramstore.DetectFormat(path)
	if f == paramstore.FormatUnknown {
		return f, errors.New(paramstore.ErrCodeUnsupportedFormat, "cannot detect format of '"+path+"'").
			WithContext("path", path)
	}
	return f, nil
}

// readInput reads an input file; "-" reads stdin.
func readInput(path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return nil, errors.Wrap(err, paramstore.ErrCodeIOError, "failed to read input").
			WithContext("path", path)
	}
	return data, nil
}

// writeOutput writes an export file after checking it is writable.
func writeOutput(path string, data []byte) error {
	if err := checkFileWriteable(path); err != nil {
		return errors.Wrap(err, paramstore.ErrCodeIOError, "output is not writable").
			WithContext("path", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, paramstore.ErrCodeIOError, "failed to write output").
			WithContext("path", path)
	}
	return nil
}

// parseValue reads a command-line value as JSON (numbers, booleans, arrays,
// objects, quoted strings) and falls back to the raw text.
func parseValue(value string) any {
	lower := strings.ToLower(value)
	if lower == "true" || lower == "false" {
		return lower == "true"
	}
	if v, err := paramstore.Decode([]byte(value), paramstore.FormatJSON); err == nil && v != nil {
		return v
	}
	return value
}

// parseObject parses a JSON object argument into a plain map.
func parseObject(raw string) (map[string]any, error) {
	v, err := paramstore.Decode([]byte(raw), paramstore.FormatJSON)
	if err != nil {
		return nil, err
	}
	switch obj := v.(type) {
	case *paramstore.OrderedMap:
		return obj.ToMap(), nil
	case map[string]any:
		return obj, nil
	default:
		return nil, errors.New(ErrCodeUsage, "expected a JSON object, got "+fmt.Sprintf("%T", v))
	}
}

// rootPath maps the root spellings "." and "/" to the empty path.
func rootPath(path string) string {
	if path == "." || path == "/" {
		return ""
	}
	return path
}

func joinPath(parent, child string) string {
	if p := rootPath(parent); p != "" {
		return p + "." + child
	}
	return child
}

func (m *Manager) printValue(v any, format paramstore.ConfigFormat) error {
	data, err := paramstore.Encode(v, format)
	if err != nil {
		return err
	}
	_, err = m.out.Write(data)
	return err
}

// parseExtendedDuration parses duration strings with extended units (d, w).
// Supports all Go standard units (ns, us, ms, s, m, h) plus:
// - d: days (24 hours)
// - w: weeks (7 days)
//
// Examples: "30d", "2w", "7d", "24h", "5m", "30s"
func parseExtendedDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	matches := extendedDuration.FindStringSubmatch(s)
	if len(matches) != 3 {
		_, err := time.ParseDuration(s)
		return 0, err
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", matches[1])
	}

	switch matches[2] {
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	}
}

// checkFileWriteable verifies if a file can be written to.
// Returns error if file exists but is not writable (e.g., read-only permissions).
func checkFileWriteable(filePath string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return checkDirectoryWriteable(filepath.Dir(filePath))
	}
	if err != nil {
		return fmt.Errorf("cannot stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", filePath)
	}
	if info.Mode()&0200 == 0 {
		return fmt.Errorf("file is read-only (mode: %v)", info.Mode())
	}
	return nil
}

// checkDirectoryWriteable verifies if a directory can be written to.
func checkDirectoryWriteable(dirPath string) error {
	info, err := os.Stat(dirPath)
	if err != nil {
		return fmt.Errorf("cannot access directory %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dirPath)
	}
	if info.Mode()&0200 == 0 {
		return fmt.Errorf("directory is not writable (mode: %v)", info.Mode())
	}
	return nil
}
