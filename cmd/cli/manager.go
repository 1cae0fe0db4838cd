// Package cli provides the paramstore command-line interface.
//
// Commands are built on the Orpheus framework and grouped git-style:
//
//	types       list | show
//	templates   list | show
//	config      list | get | create | delete | import | export | save
//	param       get | add | set | meta | delete | apply-template
//	backup      create | list | restore | delete
//	edit        start | revert | end | status
//	watch, audit query, info
//
// Every handler works on a *paramstore.Manager and writes to the Manager's
// output writer, so commands can be exercised without a terminal.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"
	"os"

	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/agilira/paramstore"
)

// Version is reported by `info` and `--version`.
const Version = "1.0.0"

// Manager routes CLI commands to a paramstore.Manager.
type Manager struct {
	app   *orpheus.App
	store *paramstore.Manager
	out   io.Writer
}

// NewManager builds the command tree over store. A nil out writes to stdout.
func NewManager(store *paramstore.Manager, out io.Writer) *Manager {
	if out == nil {
		out = os.Stdout
	}
	app := orpheus.New("paramstore").
		SetDescription("Hierarchical parameter store").
		SetVersion(Version)

	m := &Manager{app: app, store: store, out: out}

	m.setupTypeCommands()
	m.setupConfigCommands()
	m.setupParamCommands()
	m.setupBackupCommands()
	m.setupEditCommands()
	m.setupUtilityCommands()

	return m
}

// Run executes the command named by args (without the program name).
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

func (m *Manager) setupTypeCommands() {
	typesCmd := orpheus.NewCommand("types", "Parameter types")
	typesCmd.Subcommand("list", "List registered types", m.handleTypesList)
	typesCmd.Subcommand("show", "Show the template of a type", m.handleTypesShow)
	m.app.AddCommand(typesCmd)

	templatesCmd := orpheus.NewCommand("templates", "Group templates")
	templatesCmd.Subcommand("list", "List registered templates", m.handleTemplatesList)
	templatesCmd.Subcommand("show", "Show the parameters of a template", m.handleTemplatesShow)
	m.app.AddCommand(templatesCmd)
}

func (m *Manager) setupConfigCommands() {
	configCmd := orpheus.NewCommand("config", "Config file operations")

	// config list [--category=C]
	configCmd.Subcommand("list", "List configs of a category", m.handleConfigList).
		AddFlag("category", "c", "", "Category (default from --category)")

	// config get <name> [--clean] [--format=json]
	getCmd := configCmd.Subcommand("get", "Print a config", m.handleConfigGet)
	getCmd.AddFlag("category", "c", "", "Category")
	getCmd.AddFlag("format", "f", "json", "Output format (json|yaml)")
	getCmd.AddBoolFlag("clean", "", false, "Print the plain view without storage markers")

	configCmd.Subcommand("create", "Create an empty config", m.handleConfigCreate).
		AddFlag("category", "c", "", "Category")

	configCmd.Subcommand("delete", "Delete a config", m.handleConfigDelete).
		AddFlag("category", "c", "", "Category")

	// config import <name> <file> [--format=auto]
	configCmd.Subcommand("import", "Import a config from a file", m.handleConfigImport).
		AddFlag("category", "c", "", "Category").
		AddFlag("format", "f", "auto", "Input format (auto|json|yaml)")

	// config export <name> [--output=file] [--format=json] [--clean]
	exportCmd := configCmd.Subcommand("export", "Export a config", m.handleConfigExport)
	exportCmd.AddFlag("category", "c", "", "Category")
	exportCmd.AddFlag("format", "f", "json", "Output format (json|yaml)")
	exportCmd.AddFlag("output", "o", "", "Output file (default stdout)")
	exportCmd.AddBoolFlag("clean", "", false, "Export the plain view")

	// config save <name> <json>
	configCmd.Subcommand("save", "Save raw JSON content as a config", m.handleConfigSave).
		AddFlag("category", "c", "", "Category")

	m.app.AddCommand(configCmd)
}

func (m *Manager) setupParamCommands() {
	paramCmd := orpheus.NewCommand("param", "Parameter operations")

	getCmd := paramCmd.Subcommand("get", "Print a node", m.handleParamGet)
	getCmd.AddFlag("category", "c", "", "Category")
	getCmd.AddBoolFlag("clean", "", false, "Print the plain view")

	// param add <name> <parent> <type> <child> [--value=V] [--meta=JSON]
	paramCmd.Subcommand("add", "Add a typed parameter", m.handleParamAdd).
		AddFlag("category", "c", "", "Category").
		AddFlag("value", "v", "", "Initial value (JSON or plain text)").
		AddFlag("meta", "m", "", "Metadata overrides as a JSON object")

	// param set <name> <path> <value>
	paramCmd.Subcommand("set", "Update a value", m.handleParamSet).
		AddFlag("category", "c", "", "Category")

	// param meta <name> <path> <json>
	paramCmd.Subcommand("meta", "Replace metadata", m.handleParamMeta).
		AddFlag("category", "c", "", "Category")

	paramCmd.Subcommand("delete", "Delete a node", m.handleParamDelete).
		AddFlag("category", "c", "", "Category")

	// param apply-template <name> <parent> <group> [--template=T] [--fallback]
	applyCmd := paramCmd.Subcommand("apply-template", "Add a group built from a template", m.handleParamApplyTemplate)
	applyCmd.AddFlag("category", "c", "", "Category")
	applyCmd.AddFlag("template", "t", paramstore.DefaultTemplate, "Template name or topic type")
	applyCmd.AddBoolFlag("fallback", "", false, "Use the default template for unknown topic types")

	m.app.AddCommand(paramCmd)
}

func (m *Manager) setupBackupCommands() {
	backupCmd := orpheus.NewCommand("backup", "Backup management")
	for _, sub := range []struct {
		name, desc string
		handler    func(*orpheus.Context) error
	}{
		{"create", "Create a manual backup", m.handleBackupCreate},
		{"list", "List backups, newest first", m.handleBackupList},
		{"restore", "Restore a backup", m.handleBackupRestore},
		{"delete", "Delete a backup", m.handleBackupDelete},
	} {
		backupCmd.Subcommand(sub.name, sub.desc, sub.handler).
			AddFlag("category", "c", "", "Category")
	}
	m.app.AddCommand(backupCmd)
}

func (m *Manager) setupEditCommands() {
	editCmd := orpheus.NewCommand("edit", "Confirm/revert editing")
	for _, sub := range []struct {
		name, desc string
		handler    func(*orpheus.Context) error
	}{
		{"start", "Checkpoint a config", m.handleEditStart},
		{"revert", "Restore the checkpoint", m.handleEditRevert},
		{"end", "Confirm and drop the checkpoint", m.handleEditEnd},
		{"status", "Report whether a checkpoint exists", m.handleEditStatus},
	} {
		editCmd.Subcommand(sub.name, sub.desc, sub.handler).
			AddFlag("category", "c", "", "Category")
	}
	m.app.AddCommand(editCmd)
}

func (m *Manager) setupUtilityCommands() {
	// watch [category...] [--duration=0]
	watchCmd := orpheus.NewCommand("watch", "Print config changes as they happen")
	watchCmd.SetHandler(m.handleWatch)
	watchCmd.AddFlag("duration", "d", "0", "Stop after this long (0 runs until interrupted)")
	m.app.AddCommand(watchCmd)

	auditCmd := orpheus.NewCommand("audit", "Audit trail")
	queryCmd := auditCmd.Subcommand("query", "Query audit events", m.handleAuditQuery)
	queryCmd.AddFlag("since", "s", "24h", "Time range (e.g. 24h, 7d, 2w)")
	queryCmd.AddFlag("event", "e", "", "Event type filter")
	queryCmd.AddFlag("category", "c", "", "Category filter")
	queryCmd.AddFlag("config", "n", "", "Config name filter")
	queryCmd.AddFlag("level", "l", "", "Minimum level (info|warn|critical|security)")
	queryCmd.AddIntFlag("limit", "", 100, "Maximum results")
	m.app.AddCommand(auditCmd)

	infoCmd := orpheus.NewCommand("info", "Store configuration and statistics")
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Include audit statistics")
	m.app.AddCommand(infoCmd)
}
