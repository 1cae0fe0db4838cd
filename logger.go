// logger.go: Logging contract
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"io"
	"log/slog"
)

// Logger receives the store's diagnostic output. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewDiscardLogger returns a Logger that drops everything.
func NewDiscardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTextLogger returns a slog text logger writing to w at level.
func NewTextLogger(w io.Writer, level slog.Level) Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
