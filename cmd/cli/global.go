// Global flag handling for the paramstore CLI
//
// Store-wide flags (--root, --category, --audit, ...) come before the
// command and are parsed by flash-flags; everything from the command name
// on is routed by Orpheus.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"strings"

	"github.com/agilira/paramstore"
)

// globalValueFlags take a separate value when not written as --name=value.
var globalValueFlags = map[string]bool{
	paramstore.FlagRootDir:            true,
	paramstore.FlagCategory:           true,
	paramstore.FlagFileMode:           true,
	paramstore.FlagAudit:              true,
	paramstore.FlagAuditMinLevel:      true,
	paramstore.FlagAuditBufferSize:    true,
	paramstore.FlagAuditFlushInterval: true,
}

var globalBoolFlags = map[string]bool{
	paramstore.FlagStrict:  true,
	paramstore.FlagVerbose: true,
}

// SplitGlobalArgs separates the leading store flags from the command and
// its arguments. Unknown flags such as --help stay with the command.
func SplitGlobalArgs(args []string) (global, rest []string) {
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			break
		}
		name := strings.TrimLeft(arg, "-")
		hasValue := false
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name, hasValue = name[:eq], true
		}
		switch {
		case globalBoolFlags[name]:
			global = append(global, arg)
			i++
		case globalValueFlags[name] && hasValue:
			global = append(global, arg)
			i++
		case globalValueFlags[name] && i+1 < len(args):
			global = append(global, arg, args[i+1])
			i += 2
		default:
			return global, args[i:]
		}
	}
	return global, args[i:]
}
