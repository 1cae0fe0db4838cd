// manager.go: Category parameter manager
//
// The Manager owns one Adapter per category, created on first reference.
// Trees are never cached: each operation loads the config, builds a fresh
// tree, works on it and, for mutations, writes it back. Mutations on the
// same (category, name) are serialized; a failure before the write leaves
// the stored config untouched.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package paramstore

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/agilira/go-errors"
)

// Manager coordinates configs across categories.
type Manager struct {
	config    *Config
	log       Logger
	types     *TypeRegistry
	templates *TemplateRegistry
	audit     *AuditLogger
	locks     *keyLock

	mu       sync.Mutex
	adapters map[string]Adapter
	sessions map[string]*EditSession
	watchers []*Watcher

	closed atomic.Bool
}

// NewManager validates cfg and returns a ready Manager. The audit trail is
// opened here when cfg.Audit.Enabled is set.
func NewManager(cfg Config) (*Manager, error) {
	config := cfg.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		config:    config,
		log:       config.Logger,
		types:     config.Types,
		templates: config.Templates,
		locks:     newKeyLock(),
		adapters:  make(map[string]Adapter),
		sessions:  make(map[string]*EditSession),
	}

	if config.Audit.Enabled {
		audit, err := NewAuditLogger(config.Audit)
		if err != nil {
			return nil, err
		}
		m.audit = audit
	}

	m.log.Debug("parameter manager ready",
		"root", config.RootDir,
		"default_category", config.DefaultCategory,
		"strict_types", config.strict(),
		"audit", config.Audit.Enabled)
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() *Config { return m.config }

// Types returns the type registry used by AddParameter.
func (m *Manager) Types() *TypeRegistry { return m.types }

// Templates returns the template registry used by ApplyTemplate.
func (m *Manager) Templates() *TemplateRegistry { return m.templates }

// Audit returns the audit logger, nil when auditing is disabled.
func (m *Manager) Audit() *AuditLogger { return m.audit }

// Close stops every watcher and flushes the audit trail. Further calls
// fail with ManagerClosed.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.mu.Lock()
	watchers := m.watchers
	m.watchers = nil
	m.mu.Unlock()

	for _, w := range watchers {
		_ = w.Stop()
	}
	if err := m.audit.Close(); err != nil {
		m.log.Error("failed to close audit trail", "error", err)
		return err
	}
	m.log.Debug("parameter manager closed")
	return nil
}

func (m *Manager) checkOpen() error {
	if m.closed.Load() {
		return errors.New(ErrCodeManagerClosed, "manager is closed")
	}
	return nil
}

func (m *Manager) category(category string) string {
	if category == "" {
		return m.config.DefaultCategory
	}
	return category
}

// adapter returns the category's adapter, creating it on first use.
func (m *Manager) adapter(category string) (Adapter, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if err := ValidateName("category", category); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.adapters[category]; ok {
		return a, nil
	}
	a, err := m.config.AdapterFactory(category)
	if err != nil {
		return nil, err
	}
	m.adapters[category] = a
	m.log.Debug("category adapter created", "category", category)
	return a, nil
}

// ListCategories returns every category present on disk or referenced
// since the Manager was created, sorted.
func (m *Manager) ListCategories() ([]string, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	m.mu.Lock()
	for name := range m.adapters {
		seen[name] = true
	}
	m.mu.Unlock()

	entries, err := os.ReadDir(m.config.RootDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, ioFailure(err, "failed to list categories", m.config.RootDir)
	}
	for _, e := range entries {
		if e.IsDir() && ValidateName("category", e.Name()) == nil {
			seen[e.Name()] = true
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// ListConfigs returns the config names of a category.
func (m *Manager) ListConfigs(category string) ([]string, error) {
	a, err := m.adapter(m.category(category))
	if err != nil {
		return nil, err
	}
	return a.ListConfigs()
}

// CreateConfig persists an empty tree. It fails with AlreadyExists when the
// config is present, even if its content is malformed.
func (m *Manager) CreateConfig(category, name string) (*ParamNode, error) {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return nil, err
	}
	unlock := m.locks.Lock(configKey(category, name))
	defer unlock()

	_, err = a.LoadConfig(name)
	switch {
	case err == nil, IsParseError(err), HasCode(err, ErrCodeUnsupportedFormat):
		return nil, errors.New(ErrCodeAlreadyExists,
			fmt.Sprintf("config '%s' already exists in category '%s'", name, category)).
			WithContext("category", category).
			WithContext("name", name)
	case !IsNotFound(err):
		return nil, err
	}

	root := NewGroup(RootName)
	if err := a.SaveConfig(name, root.ToStorageForm()); err != nil {
		m.log.Error("failed to create config", "category", category, "name", name, "error", err)
		return nil, err
	}
	m.log.Info("config created", "category", category, "name", name)
	m.audit.LogLifecycle(EventConfigCreated, category, name, nil)
	return root, nil
}

// GetConfig loads and builds a config tree.
func (m *Manager) GetConfig(category, name string) (*ParamNode, error) {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return nil, err
	}
	return m.load(a, name)
}

func (m *Manager) load(a Adapter, name string) (*ParamNode, error) {
	raw, err := a.LoadConfig(name)
	if err != nil {
		return nil, err
	}
	return BuildTree(raw, RootName), nil
}

// GetConfigView returns the clean view of a config: plain nested mappings
// and values, without storage markers.
func (m *Manager) GetConfigView(category, name string) (any, error) {
	root, err := m.GetConfig(category, name)
	if err != nil {
		return nil, err
	}
	return root.ToCleanView(), nil
}

// SaveRaw builds a tree from content and persists it, replacing the config
// unconditionally. No type validation is performed.
func (m *Manager) SaveRaw(category, name string, content any) error {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return err
	}
	unlock := m.locks.Lock(configKey(category, name))
	defer unlock()
	return m.saveRaw(a, category, name, content, EventConfigSaved)
}

func (m *Manager) saveRaw(a Adapter, category, name string, content any, event string) error {
	root := BuildTree(content, RootName)
	if err := a.SaveConfig(name, root.ToStorageForm()); err != nil {
		m.log.Error("failed to save config", "category", category, "name", name, "error", err)
		return err
	}
	m.log.Info("config saved", "category", category, "name", name, "event", event)
	m.audit.LogChange(event, category, name, "", nil, root.ToCleanView())
	return nil
}

// DeleteConfig removes a config. Its backups are kept.
func (m *Manager) DeleteConfig(category, name string) error {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return err
	}
	unlock := m.locks.Lock(configKey(category, name))
	defer unlock()

	deleted, err := a.DeleteConfig(name)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound("config", name).WithContext("category", category)
	}
	m.log.Info("config deleted", "category", category, "name", name)
	m.audit.LogLifecycle(EventConfigDeleted, category, name, nil)
	return nil
}

// GetNode resolves path inside a config.
func (m *Manager) GetNode(category, name string, path []string) (*ParamNode, error) {
	root, err := m.GetConfig(category, name)
	if err != nil {
		return nil, err
	}
	return resolve(root, path)
}

func resolve(root *ParamNode, path []string) (*ParamNode, error) {
	node, ok := root.GetChild(path)
	if !ok {
		return nil, errors.New(ErrCodeNotFound,
			fmt.Sprintf("path '%s' not found", FormatPath(path))).
			WithContext("path", FormatPath(path))
	}
	return node, nil
}

// mutate runs fn on a freshly loaded tree and saves the result. Nothing is
// written when fn fails.
func (m *Manager) mutate(category, name string, fn func(root *ParamNode) error) error {
	a, err := m.adapter(category)
	if err != nil {
		return err
	}
	unlock := m.locks.Lock(configKey(category, name))
	defer unlock()

	root, err := m.load(a, name)
	if err != nil {
		return err
	}
	if err := fn(root); err != nil {
		m.log.Debug("mutation rejected", "category", category, "name", name, "error", err)
		return err
	}
	if err := a.SaveConfig(name, root.ToStorageForm()); err != nil {
		m.log.Error("failed to save config", "category", category, "name", name, "error", err)
		return err
	}
	return nil
}

// AddParameter creates a parameter of typeName called childName under the
// group at parentPath. Use WithValue and WithMetadata to override the
// type's defaults.
func (m *Manager) AddParameter(category, name string, parentPath []string, typeName, childName string, opts ...ParamOption) (*ParamNode, error) {
	category = m.category(category)
	if err := validateChildName(childName); err != nil {
		return nil, err
	}

	var added *ParamNode
	err := m.mutate(category, name, func(root *ParamNode) error {
		parent, err := resolve(root, parentPath)
		if err != nil {
			return err
		}
		if parent.IsValueNode() {
			return errors.New(ErrCodeInvalidParent,
				fmt.Sprintf("'%s' holds a value and cannot have children", FormatPath(parentPath))).
				WithContext("path", FormatPath(parentPath))
		}
		child, err := m.types.CreateParameter(typeName, childName, opts...)
		if err != nil {
			return err
		}
		if m.config.strict() {
			if err := m.types.Validate(typeName, child.Value, child.Metadata); err != nil {
				return err
			}
		}
		if err := parent.AddChild(child); err != nil {
			return err
		}
		added = child
		return nil
	})
	if err != nil {
		return nil, err
	}

	path := FormatPath(added.Path())
	m.log.Info("parameter added", "category", category, "name", name, "path", path, "type", typeName)
	m.audit.LogChange(EventParamAdded, category, name, path, nil, added.ToStorageForm())
	return added, nil
}

// UpdateValue replaces the value at path, keeping metadata and children.
func (m *Manager) UpdateValue(category, name string, path []string, value any) error {
	category = m.category(category)
	if value == nil {
		return errors.New(ErrCodeInvalidValue, "value cannot be null").
			WithContext("path", FormatPath(path))
	}
	value = deepCopyValue(value)

	var old any
	err := m.mutate(category, name, func(root *ParamNode) error {
		node, err := resolve(root, path)
		if err != nil {
			return err
		}
		if t := node.Type(); t != "" && m.config.strict() && m.types.Has(t) {
			if err := m.types.Validate(t, value, node.Metadata); err != nil {
				return err
			}
		}
		old = node.Value
		node.Value = value
		return nil
	})
	if err != nil {
		return err
	}

	m.log.Info("value updated", "category", category, "name", name, "path", FormatPath(path))
	m.audit.LogChange(EventParamUpdated, category, name, FormatPath(path), old, value)
	return nil
}

// UpdateMetadata replaces the metadata at path wholesale.
func (m *Manager) UpdateMetadata(category, name string, path []string, metadata map[string]any) error {
	category = m.category(category)
	metadata = deepCopy(metadata)

	var old map[string]any
	err := m.mutate(category, name, func(root *ParamNode) error {
		node, err := resolve(root, path)
		if err != nil {
			return err
		}
		old = node.Metadata
		node.Metadata = metadata
		return nil
	})
	if err != nil {
		return err
	}

	m.log.Info("metadata updated", "category", category, "name", name, "path", FormatPath(path))
	m.audit.LogChange(EventMetadataUpdated, category, name, FormatPath(path), old, metadata)
	return nil
}

// DeleteParameter removes the node at path. The root cannot be deleted.
func (m *Manager) DeleteParameter(category, name string, path []string) error {
	category = m.category(category)
	if len(path) == 0 {
		return errors.New(ErrCodeInvalidPath, "cannot delete the root of a config").
			WithContext("category", category).
			WithContext("name", name)
	}

	var removed any
	err := m.mutate(category, name, func(root *ParamNode) error {
		parent, err := resolve(root, path[:len(path)-1])
		if err != nil {
			return err
		}
		last := path[len(path)-1]
		if child, ok := parent.Child(last); ok {
			removed = child.ToStorageForm()
		}
		return parent.RemoveChild(last)
	})
	if err != nil {
		return err
	}

	m.log.Info("parameter deleted", "category", category, "name", name, "path", FormatPath(path))
	m.audit.LogChange(EventParamDeleted, category, name, FormatPath(path), removed, nil)
	return nil
}

// ApplyTemplate instantiates template as a new group called groupName under
// parentPath.
func (m *Manager) ApplyTemplate(category, name string, parentPath []string, groupName, template string) (*ParamNode, error) {
	category = m.category(category)
	if err := validateChildName(groupName); err != nil {
		return nil, err
	}
	group, err := m.templates.Build(template, groupName)
	if err != nil {
		return nil, err
	}

	err = m.mutate(category, name, func(root *ParamNode) error {
		parent, err := resolve(root, parentPath)
		if err != nil {
			return err
		}
		if parent.IsValueNode() {
			return errors.New(ErrCodeInvalidParent,
				fmt.Sprintf("'%s' holds a value and cannot have children", FormatPath(parentPath))).
				WithContext("path", FormatPath(parentPath))
		}
		return parent.AddChild(group)
	})
	if err != nil {
		return nil, err
	}

	path := FormatPath(group.Path())
	m.log.Info("template applied", "category", category, "name", name, "path", path, "template", template)
	m.audit.Log(AuditInfo, EventTemplateApplied, category, name, path, nil, group.ToCleanView(),
		map[string]any{"template": template})
	return group, nil
}

// ApplyTopicTemplate applies the template registered for topicType, or the
// default template when there is none.
func (m *Manager) ApplyTopicTemplate(category, name string, parentPath []string, groupName, topicType string) (*ParamNode, error) {
	return m.ApplyTemplate(category, name, parentPath, groupName, m.templates.Resolve(topicType).Name)
}

// ImportConfig decodes data and stores it as the config, replacing any
// existing content.
func (m *Manager) ImportConfig(category, name string, data []byte, format ConfigFormat) error {
	category = m.category(category)
	raw, err := Decode(data, format)
	if err != nil {
		return err
	}
	if err := checkDocumentVersion(raw); err != nil {
		return err
	}
	a, err := m.adapter(category)
	if err != nil {
		return err
	}
	unlock := m.locks.Lock(configKey(category, name))
	defer unlock()
	return m.saveRaw(a, category, name, raw, EventConfigImported)
}

// ExportConfig encodes a config. With clean set the storage markers are
// dropped and the output is the plain view; otherwise the output can be
// imported back unchanged.
func (m *Manager) ExportConfig(category, name string, format ConfigFormat, clean bool) ([]byte, error) {
	root, err := m.GetConfig(category, name)
	if err != nil {
		return nil, err
	}
	if clean {
		return Encode(root.ToCleanView(), format)
	}
	return Encode(wrapDocument(root.ToStorageForm()), format)
}

// CreateBackup takes a manual snapshot and returns the backup file name.
func (m *Manager) CreateBackup(category, name string) (string, error) {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return "", err
	}
	unlock := m.locks.Lock(configKey(category, name))
	defer unlock()

	file, err := a.CreateBackup(name, false)
	if err != nil {
		return "", err
	}
	m.log.Info("backup created", "category", category, "name", name, "backup", file)
	m.audit.LogLifecycle(EventBackupCreated, category, name, map[string]any{"backup": file})
	return file, nil
}

// ListBackups returns the manual backups of a config, newest first.
func (m *Manager) ListBackups(category, name string) ([]string, error) {
	a, err := m.adapter(m.category(category))
	if err != nil {
		return nil, err
	}
	return a.ListBackups(name)
}

// RestoreBackup overwrites a config with one of its backups.
func (m *Manager) RestoreBackup(category, name, backupFile string) error {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return err
	}
	unlock := m.locks.Lock(configKey(category, name))
	defer unlock()

	if err := a.RestoreFromBackup(name, backupFile); err != nil {
		return err
	}
	m.log.Info("backup restored", "category", category, "name", name, "backup", backupFile)
	m.audit.Log(AuditCritical, EventBackupRestored, category, name, "", nil, nil,
		map[string]any{"backup": backupFile})
	return nil
}

// DeleteBackup removes one backup file.
func (m *Manager) DeleteBackup(category, name, backupFile string) error {
	category = m.category(category)
	a, err := m.adapter(category)
	if err != nil {
		return err
	}
	deleted, err := a.DeleteBackup(name, backupFile)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound("backup", backupFile).WithContext("category", category)
	}
	m.log.Info("backup deleted", "category", category, "name", name, "backup", backupFile)
	m.audit.LogLifecycle(EventBackupDeleted, category, name, map[string]any{"backup": backupFile})
	return nil
}
