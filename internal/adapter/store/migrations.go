package store

import (
	"fmt"

	"ranker/internal/domain"
)

// CurrentSchemaVersion is the on-disk snapshot format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// SchemaCheck describes how a snapshot's format relates to this build.
type SchemaCheck struct {
	Version      int
	NeedsRebuild bool
	Reason       string
}

// CheckSchema compares a snapshot's recorded format version with
// CurrentSchemaVersion. Snapshots are immutable, so any mismatch can only
// be resolved by a CREATE build.
func CheckSchema(stats domain.IndexStats) SchemaCheck {
	result := SchemaCheck{Version: stats.SchemaVersion}
	switch {
	case stats.SchemaVersion == 0:
		result.NeedsRebuild = true
		result.Reason = "snapshot has no schema version"
	case stats.SchemaVersion < CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("schema v%d is older than v%d", stats.SchemaVersion, CurrentSchemaVersion)
	case stats.SchemaVersion > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("snapshot created by newer version (v%d > v%d)", stats.SchemaVersion, CurrentSchemaVersion)
	}
	return result
}

func (c SchemaCheck) Err() error {
	if !c.NeedsRebuild {
		return nil
	}
	return domain.Corruptf("%s; rebuild with --mode create", c.Reason)
}
