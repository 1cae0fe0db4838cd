// errors.go: Error codes and classification helpers for paramstore
//
// Every failure surfaced by the store carries one stable code so callers
// (CLI, HTTP layers) can map it to a user-visible outcome without parsing
// messages.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for paramstore operations
const (
	ErrCodeNotFound             = "PARAMSTORE_NOT_FOUND"
	ErrCodeDuplicateName        = "PARAMSTORE_DUPLICATE_NAME"
	ErrCodeAlreadyExists        = "PARAMSTORE_ALREADY_EXISTS"
	ErrCodeUnknownType          = "PARAMSTORE_UNKNOWN_TYPE"
	ErrCodeUnknownTemplate      = "PARAMSTORE_UNKNOWN_TEMPLATE"
	ErrCodeInvalidParent        = "PARAMSTORE_INVALID_PARENT"
	ErrCodeInvalidPath          = "PARAMSTORE_INVALID_PATH"
	ErrCodeInvalidName          = "PARAMSTORE_INVALID_NAME"
	ErrCodeInvalidValue         = "PARAMSTORE_INVALID_VALUE"
	ErrCodeIOError              = "PARAMSTORE_IO_ERROR"
	ErrCodeParseError           = "PARAMSTORE_PARSE_ERROR"
	ErrCodeSerializationError   = "PARAMSTORE_SERIALIZATION_ERROR"
	ErrCodeUnsupportedFormat    = "PARAMSTORE_UNSUPPORTED_FORMAT"
	ErrCodeInvalidConfig        = "PARAMSTORE_INVALID_CONFIG"
	ErrCodeInvalidAuditConfig   = "PARAMSTORE_INVALID_AUDIT_CONFIG"
	ErrCodeInvalidBufferSize    = "PARAMSTORE_INVALID_BUFFER_SIZE"
	ErrCodeInvalidFlushInterval = "PARAMSTORE_INVALID_FLUSH_INTERVAL"
	ErrCodeInvalidOutputFile    = "PARAMSTORE_INVALID_OUTPUT_FILE"
	ErrCodeAuditUnsupported     = "PARAMSTORE_AUDIT_UNSUPPORTED"
	ErrCodeWatcherBusy          = "PARAMSTORE_WATCHER_BUSY"
	ErrCodeWatcherStopped       = "PARAMSTORE_WATCHER_STOPPED"
	ErrCodeManagerClosed        = "PARAMSTORE_MANAGER_CLOSED"
)

// ErrorCode returns the paramstore code attached to err, walking the wrap
// chain. It returns an empty string for nil or uncoded errors.
func ErrorCode(err error) string {
	for err != nil {
		if coder, ok := err.(errors.ErrorCoder); ok {
			if code := string(coder.ErrorCode()); code != "" {
				return code
			}
		}
		err = goerrors.Unwrap(err)
	}
	return ""
}

// HasCode reports whether err (or anything it wraps) carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if coder, ok := err.(errors.ErrorCoder); ok && string(coder.ErrorCode()) == code {
			return true
		}
		err = goerrors.Unwrap(err)
	}
	return false
}

// IsNotFound reports a missing config, path segment or backup.
func IsNotFound(err error) bool { return HasCode(err, ErrCodeNotFound) }

// IsDuplicateName reports a sibling name collision.
func IsDuplicateName(err error) bool { return HasCode(err, ErrCodeDuplicateName) }

// IsAlreadyExists reports an attempt to create a config that exists.
func IsAlreadyExists(err error) bool { return HasCode(err, ErrCodeAlreadyExists) }

// IsUnknownType reports an unregistered parameter type.
func IsUnknownType(err error) bool { return HasCode(err, ErrCodeUnknownType) }

// IsInvalidParent reports an attempt to attach children to a value node.
func IsInvalidParent(err error) bool { return HasCode(err, ErrCodeInvalidParent) }

// IsIOFailure reports an underlying storage read/write failure.
func IsIOFailure(err error) bool { return HasCode(err, ErrCodeIOError) }

// IsParseError reports malformed persisted or imported content.
func IsParseError(err error) bool { return HasCode(err, ErrCodeParseError) }

func notFound(what, name string) *errors.Error {
	return errors.New(ErrCodeNotFound, what+" '"+name+"' not found").
		WithContext("name", name)
}

func ioFailure(err error, msg, path string) *errors.Error {
	return errors.Wrap(err, ErrCodeIOError, msg).WithContext("path", path)
}
