// Command handlers for the paramstore CLI
//
// Handlers only unpack arguments and flags; the work is done by the
// Manager methods below them so it can be tested without Orpheus.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/agilira/paramstore"
)

// ErrCodeUsage marks missing or malformed command arguments.
const ErrCodeUsage = "PARAMSTORE_CLI_USAGE"

// Types and templates

func (m *Manager) handleTypesList(ctx *orpheus.Context) error {
	return m.listTypes()
}

func (m *Manager) handleTypesShow(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "types show <type>", 1)
	if err != nil {
		return err
	}
	return m.showType(args[0])
}

func (m *Manager) handleTemplatesList(ctx *orpheus.Context) error {
	return m.listTemplates()
}

func (m *Manager) handleTemplatesShow(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "templates show <template>", 1)
	if err != nil {
		return err
	}
	return m.showTemplate(args[0])
}

func (m *Manager) listTypes() error {
	for _, name := range m.store.Types().Names() {
		fmt.Fprintln(m.out, name)
	}
	return nil
}

func (m *Manager) showType(name string) error {
	form, err := m.store.Types().Template(name)
	if err != nil {
		return err
	}
	return m.printValue(form, paramstore.FormatJSON)
}

func (m *Manager) listTemplates() error {
	for _, name := range m.store.Templates().Names() {
		fmt.Fprintln(m.out, name)
	}
	return nil
}

func (m *Manager) showTemplate(name string) error {
	tpl, ok := m.store.Templates().Get(name)
	if !ok {
		return errors.New(paramstore.ErrCodeUnknownTemplate, "unknown template '"+name+"'")
	}
	for _, p := range tpl.Params {
		fmt.Fprintf(m.out, "%s\t%s\t%v\n", p.Name, p.Type, p.Value)
	}
	return nil
}

// Configs

func (m *Manager) handleConfigList(ctx *orpheus.Context) error {
	return m.configList(ctx.GetFlagString("category"))
}

func (m *Manager) handleConfigGet(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "config get <name>", 1)
	if err != nil {
		return err
	}
	format, err := outputFormat(ctx.GetFlagString("format"))
	if err != nil {
		return err
	}
	return m.configGet(ctx.GetFlagString("category"), args[0], format, ctx.GetFlagBool("clean"))
}

func (m *Manager) handleConfigCreate(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "config create <name>", 1)
	if err != nil {
		return err
	}
	return m.configCreate(ctx.GetFlagString("category"), args[0])
}

func (m *Manager) handleConfigDelete(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "config delete <name>", 1)
	if err != nil {
		return err
	}
	return m.configDelete(ctx.GetFlagString("category"), args[0])
}

func (m *Manager) handleConfigImport(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "config import <name> <file>", 2)
	if err != nil {
		return err
	}
	return m.configImport(ctx.GetFlagString("category"), args[0], args[1], ctx.GetFlagString("format"))
}

func (m *Manager) handleConfigExport(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "config export <name>", 1)
	if err != nil {
		return err
	}
	format, err := outputFormat(ctx.GetFlagString("format"))
	if err != nil {
		return err
	}
	return m.configExport(ctx.GetFlagString("category"), args[0], format,
		ctx.GetFlagString("output"), ctx.GetFlagBool("clean"))
}

func (m *Manager) handleConfigSave(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "config save <name> <json>", 2)
	if err != nil {
		return err
	}
	return m.configSave(ctx.GetFlagString("category"), args[0], args[1])
}

func (m *Manager) configList(category string) error {
	names, err := m.store.ListConfigs(category)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(m.out, name)
	}
	return nil
}

func (m *Manager) configGet(category, name string, format paramstore.ConfigFormat, clean bool) error {
	data, err := m.store.ExportConfig(category, name, format, clean)
	if err != nil {
		return err
	}
	_, err = m.out.Write(data)
	return err
}

func (m *Manager) configCreate(category, name string) error {
	if _, err := m.store.CreateConfig(category, name); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Created %s\n", name)
	return nil
}

func (m *Manager) configDelete(category, name string) error {
	if err := m.store.DeleteConfig(category, name); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Deleted %s\n", name)
	return nil
}

func (m *Manager) configImport(category, name, file, format string) error {
	f, err := inputFormat(file, format)
	if err != nil {
		return err
	}
	data, err := readInput(file)
	if err != nil {
		return err
	}
	if err := m.store.ImportConfig(category, name, data, f); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Imported %s from %s\n", name, file)
	return nil
}

func (m *Manager) configExport(category, name string, format paramstore.ConfigFormat, output string, clean bool) error {
	data, err := m.store.ExportConfig(category, name, format, clean)
	if err != nil {
		return err
	}
	if output == "" {
		_, err = m.out.Write(data)
		return err
	}
	if err := writeOutput(output, data); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Exported %s to %s\n", name, output)
	return nil
}

func (m *Manager) configSave(category, name, raw string) error {
	content, err := paramstore.Decode([]byte(raw), paramstore.FormatJSON)
	if err != nil {
		return err
	}
	if err := m.store.SaveRaw(category, name, content); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Saved %s\n", name)
	return nil
}

// Parameters

func (m *Manager) handleParamGet(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "param get <name> <path>", 1)
	if err != nil {
		return err
	}
	return m.paramGet(ctx.GetFlagString("category"), args[0], ctx.GetArg(1), ctx.GetFlagBool("clean"))
}

func (m *Manager) handleParamAdd(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "param add <name> <parent> <type> <child>", 4)
	if err != nil {
		return err
	}
	return m.paramAdd(ctx.GetFlagString("category"), args[0], args[1], args[2], args[3],
		ctx.GetFlagString("value"), ctx.GetFlagString("meta"))
}

func (m *Manager) handleParamSet(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "param set <name> <path> <value>", 3)
	if err != nil {
		return err
	}
	return m.paramSet(ctx.GetFlagString("category"), args[0], args[1], args[2])
}

func (m *Manager) handleParamMeta(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "param meta <name> <path> <json>", 3)
	if err != nil {
		return err
	}
	return m.paramMeta(ctx.GetFlagString("category"), args[0], args[1], args[2])
}

func (m *Manager) handleParamDelete(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "param delete <name> <path>", 2)
	if err != nil {
		return err
	}
	return m.paramDelete(ctx.GetFlagString("category"), args[0], args[1])
}

func (m *Manager) handleParamApplyTemplate(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "param apply-template <name> <parent> <group>", 3)
	if err != nil {
		return err
	}
	return m.applyTemplate(ctx.GetFlagString("category"), args[0], args[1], args[2],
		ctx.GetFlagString("template"), ctx.GetFlagBool("fallback"))
}

func (m *Manager) paramGet(category, name, path string, clean bool) error {
	node, err := m.store.GetNode(category, name, paramstore.ParsePath(rootPath(path)))
	if err != nil {
		return err
	}
	if clean {
		return m.printValue(node.ToCleanView(), paramstore.FormatJSON)
	}
	return m.printValue(node.ToStorageForm(), paramstore.FormatJSON)
}

func (m *Manager) paramAdd(category, name, parent, typeName, child, value, meta string) error {
	var opts []paramstore.ParamOption
	if value != "" {
		opts = append(opts, paramstore.WithValue(parseValue(value)))
	}
	if meta != "" {
		md, err := parseObject(meta)
		if err != nil {
			return err
		}
		opts = append(opts, paramstore.WithMetadata(md))
	}
	node, err := m.store.AddParameter(category, name, paramstore.ParsePath(rootPath(parent)), typeName, child, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Added %s = %v\n", joinPath(parent, child), node.Value)
	return nil
}

func (m *Manager) paramSet(category, name, path, value string) error {
	parsed := parseValue(value)
	if err := m.store.UpdateValue(category, name, paramstore.ParsePath(path), parsed); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Set %s = %v\n", path, parsed)
	return nil
}

func (m *Manager) paramMeta(category, name, path, raw string) error {
	md, err := parseObject(raw)
	if err != nil {
		return err
	}
	if err := m.store.UpdateMetadata(category, name, paramstore.ParsePath(path), md); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Updated metadata of %s\n", path)
	return nil
}

func (m *Manager) paramDelete(category, name, path string) error {
	if err := m.store.DeleteParameter(category, name, paramstore.ParsePath(path)); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Deleted %s\n", path)
	return nil
}

func (m *Manager) applyTemplate(category, name, parent, group, template string, fallback bool) error {
	apply := m.store.ApplyTemplate
	if fallback {
		apply = m.store.ApplyTopicTemplate
	}
	node, err := apply(category, name, paramstore.ParsePath(rootPath(parent)), group, template)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Added group %s with %d parameters\n", joinPath(parent, group), node.Len())
	return nil
}

// Backups

func (m *Manager) handleBackupCreate(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "backup create <name>", 1)
	if err != nil {
		return err
	}
	file, err := m.store.CreateBackup(ctx.GetFlagString("category"), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(m.out, file)
	return nil
}

func (m *Manager) handleBackupList(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "backup list <name>", 1)
	if err != nil {
		return err
	}
	return m.backupList(ctx.GetFlagString("category"), args[0])
}

func (m *Manager) handleBackupRestore(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "backup restore <name> <backup>", 2)
	if err != nil {
		return err
	}
	if err := m.store.RestoreBackup(ctx.GetFlagString("category"), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Restored %s from %s\n", args[0], args[1])
	return nil
}

func (m *Manager) handleBackupDelete(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "backup delete <name> <backup>", 2)
	if err != nil {
		return err
	}
	if err := m.store.DeleteBackup(ctx.GetFlagString("category"), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Deleted backup %s\n", args[1])
	return nil
}

func (m *Manager) backupList(category, name string) error {
	files, err := m.store.ListBackups(category, name)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(m.out, f)
	}
	return nil
}

// Edit sessions

func (m *Manager) handleEditStart(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "edit start <name>", 1)
	if err != nil {
		return err
	}
	session, err := m.store.StartEdit(ctx.GetFlagString("category"), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Editing %s (checkpoint %s)\n", args[0], session.BackupFile)
	return nil
}

func (m *Manager) handleEditRevert(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "edit revert <name>", 1)
	if err != nil {
		return err
	}
	if err := m.store.RevertEdit(ctx.GetFlagString("category"), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Reverted %s\n", args[0])
	return nil
}

func (m *Manager) handleEditEnd(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "edit end <name>", 1)
	if err != nil {
		return err
	}
	if err := m.store.EndEdit(ctx.GetFlagString("category"), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Confirmed %s\n", args[0])
	return nil
}

func (m *Manager) handleEditStatus(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "edit status <name>", 1)
	if err != nil {
		return err
	}
	return m.editStatus(ctx.GetFlagString("category"), args[0])
}

func (m *Manager) editStatus(category, name string) error {
	editing, err := m.store.InEdit(category, name)
	if err != nil {
		return err
	}
	if editing {
		fmt.Fprintf(m.out, "%s: editing\n", name)
	} else {
		fmt.Fprintf(m.out, "%s: clean\n", name)
	}
	return nil
}

// Utilities

// handleWatch prints changes until interrupted or until --duration elapses.
func (m *Manager) handleWatch(ctx *orpheus.Context) error {
	duration, err := parseExtendedDuration(ctx.GetFlagString("duration"))
	if err != nil {
		return errors.Wrap(err, ErrCodeUsage, "invalid --duration")
	}
	var categories []string
	for i := 0; ; i++ {
		arg := ctx.GetArg(i)
		if arg == "" {
			break
		}
		categories = append(categories, arg)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, duration)
		defer cancel()
	}
	return m.watch(runCtx, categories)
}

func (m *Manager) watch(ctx context.Context, categories []string) error {
	w, err := m.store.Watch(ctx, func(ev paramstore.ChangeEvent) {
		fmt.Fprintf(m.out, "%s %s/%s %s\n",
			ev.Timestamp.Format(time.RFC3339), ev.Category, ev.Name, ev.Operation)
	}, categories...)
	if err != nil {
		return err
	}
	fmt.Fprintln(m.out, "Watching for changes, press Ctrl+C to stop...")
	<-ctx.Done()
	return w.Stop()
}

func (m *Manager) handleAuditQuery(ctx *orpheus.Context) error {
	q := paramstore.AuditQuery{
		Event:    ctx.GetFlagString("event"),
		Category: ctx.GetFlagString("category"),
		Config:   ctx.GetFlagString("config"),
		Limit:    ctx.GetFlagInt("limit"),
	}
	if since := ctx.GetFlagString("since"); since != "" {
		d, err := parseExtendedDuration(since)
		if err != nil {
			return errors.Wrap(err, ErrCodeUsage, "invalid --since")
		}
		q.Since = time.Now().Add(-d)
	}
	if lvl := ctx.GetFlagString("level"); lvl != "" {
		level, ok := paramstore.ParseAuditLevel(lvl)
		if !ok {
			return errors.New(ErrCodeUsage, "invalid --level '"+lvl+"'")
		}
		q.MinLevel = level
	}
	return m.auditQuery(q)
}

func (m *Manager) auditQuery(q paramstore.AuditQuery) error {
	audit := m.store.Audit()
	if audit == nil {
		return errors.New(paramstore.ErrCodeInvalidAuditConfig, "audit logging not enabled")
	}
	if err := audit.Flush(); err != nil {
		return err
	}
	events, err := audit.Query(q)
	if err != nil {
		return err
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s %-8s %-18s %s",
			ev.Timestamp.Format(time.RFC3339), ev.Level, ev.Event, ev.Target())
		fmt.Fprintln(m.out, strings.TrimRight(line, " "))
	}
	return nil
}

func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	return m.info(ctx.GetFlagBool("verbose"))
}

func (m *Manager) info(verbose bool) error {
	cfg := m.store.Config()
	fmt.Fprintf(m.out, "paramstore %s\n", Version)
	fmt.Fprintf(m.out, "Root directory:   %s\n", cfg.RootDir)
	fmt.Fprintf(m.out, "Default category: %s\n", cfg.DefaultCategory)
	fmt.Fprintf(m.out, "Strict types:     %v\n", cfg.StrictTypes != nil && *cfg.StrictTypes)
	fmt.Fprintf(m.out, "Audit:            %v\n", m.store.Audit() != nil)

	categories, err := m.store.ListCategories()
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Categories:       %s\n", strings.Join(categories, ", "))

	if verbose && m.store.Audit() != nil {
		if err := m.store.Audit().Flush(); err != nil {
			return err
		}
		stats, err := m.store.Audit().Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "Audit events:     %d\n", stats.TotalEvents)
		levels := make([]string, 0, len(stats.EventsByLevel))
		for level := range stats.EventsByLevel {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		for _, level := range levels {
			fmt.Fprintf(m.out, "  %-10s %d\n", level, stats.EventsByLevel[level])
		}
	}
	return nil
}
