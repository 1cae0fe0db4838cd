// paramstore: command-line access to a hierarchical parameter store
//
// Usage:
//
//	paramstore [--root DIR] [--category C] [--audit FILE] [--strict=false] [--verbose] <command> ...
//
// Store flags may also be set through PARAMSTORE_* environment variables;
// flags win over the environment.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/agilira/paramstore"
	"github.com/agilira/paramstore/cmd/cli"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global, rest := cli.SplitGlobalArgs(args)

	config, fs, err := paramstore.ParseFlags("paramstore", global)
	if err != nil {
		return err
	}
	if fs.GetBool(paramstore.FlagVerbose) {
		config.Logger = paramstore.NewTextLogger(os.Stderr, slog.LevelDebug)
	}

	store, err := paramstore.NewManager(*config)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()

	return cli.NewManager(store, os.Stdout).Run(rest)
}
