package metadata

import "github.com/cuemby/ridgeline/pkg/types"

// CurrentSchemaVersion is written onto every document ApplyToRegistry or
// ApplyToProjectMetadata produces.
const CurrentSchemaVersion = 1

// legacySchemaVersion is what an unmigrated document (or one with no
// schemaVersion field at all, decoding to the zero value) reports.
const legacySchemaVersion = 0

// NeedsMigration reports whether a decoded ProjectMetadata still carries
// the legacy schema and must be rewritten before use.
func NeedsMigration(meta types.ProjectMetadata) bool {
	return meta.SchemaVersion < CurrentSchemaVersion
}

// Migrate rewrites a legacy-schema ProjectMetadata to the current schema.
// It is idempotent and safe to replay: documents already at
// CurrentSchemaVersion are returned unchanged. The legacy schema carried no
// SchemaVersion field and stored repository roles directly under a flat
// "permissions" map; that shape no longer exists once a document has any
// repository, so the only legacy fixup needed going forward is stamping
// the version and ensuring the map fields this package always expects are
// non-nil.
func Migrate(meta types.ProjectMetadata) types.ProjectMetadata {
	if !NeedsMigration(meta) {
		return meta
	}
	if meta.Members == nil {
		meta.Members = make(map[string]types.Member)
	}
	if meta.AppIdentityRoles == nil {
		meta.AppIdentityRoles = make(map[string]types.ProjectRole)
	}
	if meta.Repositories == nil {
		meta.Repositories = make(map[string]types.RepositoryMetadata)
	}
	meta.SchemaVersion = CurrentSchemaVersion
	return meta
}
