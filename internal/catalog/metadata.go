// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package catalog implements dataset search and record management over the
discovered schema: the paginated query endpoint, record fetch/update/delete,
and the metadata field-lock protocol shared with ingestion.
*/
package catalog

import (
	"strings"

	"github.com/hep-fcc/datacat/internal/platform/constants"
)

// # Metadata Field Locks

// Curators pin individual metadata fields against automated overwrites by
// storing a sentinel key next to the data: "__<field>__lock__": true. The
// sentinels live inside the metadata document itself so they survive export,
// re-import, and schema changes without a side table.

// LockKey renders the sentinel key for a field name.
func LockKey(field string) string {
	return constants.MetadataLockPrefix + field + constants.MetadataLockSuffix
}

// LockedField parses a sentinel key back into its field name. The second
// return is false for ordinary metadata keys.
func LockedField(key string) (string, bool) {
	if !strings.HasPrefix(key, constants.MetadataLockPrefix) || !strings.HasSuffix(key, constants.MetadataLockSuffix) {
		return "", false
	}
	field := strings.TrimSuffix(strings.TrimPrefix(key, constants.MetadataLockPrefix), constants.MetadataLockSuffix)
	if field == "" {
		return "", false
	}
	return field, true
}

// IsLocked reports whether the metadata document carries an active lock
// sentinel for the field.
func IsLocked(metadata map[string]any, field string) bool {
	locked, ok := metadata[LockKey(field)].(bool)
	return ok && locked
}

// MergeMetadata folds an incoming metadata document into the existing one,
// honoring field locks:
//
//   - fields whose sentinel is true in the existing document keep their
//     existing value, whatever the incoming document says;
//   - an incoming sentinel set to true installs (or keeps) the lock;
//   - an incoming sentinel set to null removes the lock;
//   - every existing sentinel not explicitly removed is preserved.
//
// Neither input is mutated; the merged document is a fresh map.
func MergeMetadata(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for key, value := range existing {
		merged[key] = value
	}

	for key, value := range incoming {
		if field, ok := LockedField(key); ok {
			applySentinel(merged, field, value)
			continue
		}
		if IsLocked(existing, key) {
			continue
		}
		merged[key] = value
	}

	return merged
}

// applySentinel interprets an incoming lock sentinel: true installs the
// lock, null (or false) removes it.
func applySentinel(merged map[string]any, field string, value any) {
	if locked, ok := value.(bool); ok && locked {
		merged[LockKey(field)] = true
		return
	}
	delete(merged, LockKey(field))
}
