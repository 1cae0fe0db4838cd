// Package paramstore provides a hierarchical, typed parameter store backed
// by JSON files, with backups, a confirm/revert edit workflow and an audit
// trail.
//
// # Data Model
//
// A config is a tree of ParamNodes. A node may hold a value, metadata and
// ordered children:
//
//   - a group has children and no value
//   - a value node has a value, usually with metadata describing its type
//   - a mixed node has both, which is rare and only produced by hand-written
//     files
//
// On disk a value node with metadata is stored as an object with the
// reserved keys "__value__" and "__metadata__". Value nodes without metadata
// collapse to their raw value, and every document carries "__format__": 1.
//
//	{
//	    "__format__": 1,
//	    "camera": {
//	        "fps": {"__value__": 30, "__metadata__": {"type": "number", "min": 1, "max": 120}},
//	        "name": "front"
//	    }
//	}
//
// BuildTree turns such a document into a tree, ToStorageForm turns a tree
// back into it, and ToCleanView drops the reserved keys to give the plain
// nested view applications usually want.
//
// # Storage Layout
//
// Configs are grouped in categories, one directory each under the root:
//
//	<root>/<category>/active/<name>.json
//	<root>/<category>/backups/<name>_<YYYYMMDD_HHMMSS>[_NNN].json
//	<root>/<category>/backups/<name>_auto_backup.json
//
// Writes are atomic (temp file, fsync, rename). Category, config and backup
// names are validated against traversal, separators, device names and
// control characters before any path is built.
//
// # Quick Start
//
//	store, err := paramstore.NewManager(paramstore.Config{RootDir: "configs"})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if _, err := store.CreateConfig("robots", "arm"); err != nil {
//		return err
//	}
//	_, err = store.ApplyTemplate("robots", "arm", nil, "tf", "tf2_msgs/TFMessage")
//	_, err = store.AddParameter("robots", "arm", []string{"tf"}, paramstore.TypeNumber, "rate",
//		paramstore.WithValue(10), paramstore.WithMetadata(map[string]any{"min": 1, "max": 100}))
//	err = store.UpdateValue("robots", "arm", []string{"tf", "rate"}, 20)
//
// An empty category selects Config.DefaultCategory.
//
// # Types and Templates
//
// TypeRegistry knows the parameter types (string, number, boolean, color,
// vector2, vector3, enumerate and any registered later) together with their
// default value, default metadata and validator. With StrictTypes on (the
// default) values are validated on add and update. TemplateRegistry builds
// whole groups from named templates such as "sensor_msgs/Imu".
//
// # Edit Sessions
//
// StartEdit snapshots a config into its auto-backup slot. Edits are then
// persisted as usual; RevertEdit restores the snapshot and EndEdit drops it.
// There is one slot per config, so a second StartEdit replaces the first
// snapshot.
//
// # Watching and Binding
//
// Manager.Watch reports config files created, updated or deleted by any
// process, debounced per config. BindTree copies tree values into Go
// variables:
//
//	var rate float64
//	err := paramstore.BindTree(root).BindFloat64(&rate, "tf.rate", 10).Apply()
//
// # Audit Trail
//
// With Config.Audit enabled every mutation is recorded with its old and new
// value, a checksum and the process identity. Trails ending in .jsonl are
// written as JSON lines; other names use SQLite. AuditLogger.Query and
// AuditLogger.Stats read the trail back.
//
// # Configuration
//
// Config can be filled in code, from PARAMSTORE_* environment variables
// (LoadConfigFromEnv) or from command-line flags (LoadConfigFromFlags),
// with flags taking precedence over the environment.
//
// # Errors
//
// Every failure is a go-errors *Error with a stable code such as
// PARAMSTORE_NOT_FOUND or PARAMSTORE_DUPLICATE_NAME. Use ErrorCode, HasCode
// or the Is* helpers to classify them.
//
// Repository: https://github.com/agilira/paramstore
package paramstore
