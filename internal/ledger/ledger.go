// Package ledger decides how the META row changes on each launch.
//
// The META table holds zero or one row. With no row a fresh record is
// created; with one row it is carried forward and restamped, and archived
// first when either tracked version moved. Anything else means the ledger is
// corrupt. Plan is pure so the transitions can be tested without a database.
package ledger

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// Action is the transition Plan chose.
type Action string

const (
	ActionInitialize Action = "initialize"
	ActionUpdate     Action = "update"
)

// Plan is the full set of writes for one launch.
type Plan struct {
	Action Action
	// Record replaces the contents of META.
	Record types.MetaRecord
	// Previous is the row that was in META, nil on initialize.
	Previous *types.MetaRecord
	// Archive is appended to META_HISTORY when the versions changed.
	Archive        *types.MetaHistoryRecord
	VersionChanged bool
}

// ChecksumFunc produces SALT_CHECK. It is called only when the ledger is
// initialized.
type ChecksumFunc func() (string, error)

// FormatTime renders a timestamp the way the ledger stores it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Next plans the transition from the rows currently in META.
func Next(rows []types.MetaRecord, build types.BuildInfo, now time.Time, checksum ChecksumFunc) (Plan, error) {
	stamp := FormatTime(now)

	switch n := len(rows); {
	case n == 0:
		salt, err := checksum()
		if err != nil {
			return Plan{}, fmt.Errorf("computing SALT_CHECK: %w", err)
		}
		return Plan{
			Action: ActionInitialize,
			Record: types.MetaRecord{
				ID:             1,
				StartTime:      stamp,
				PrevStartTime:  "",
				DBVersion:      build.DBVersion,
				EngineVersion:  build.EngineVersion,
				RuntimeVersion: build.RuntimeVersion,
				SQLVersion:     build.SQLVersion,
				SaltCheck:      salt,
			},
		}, nil

	case n == 1:
		prev := rows[0]
		plan := Plan{
			Action:         ActionUpdate,
			Previous:       &prev,
			VersionChanged: VersionChanged(prev, build),
		}
		if plan.VersionChanged {
			plan.Archive = &types.MetaHistoryRecord{MetaRecord: prev, CreateDate: stamp}
		}
		plan.Record = types.MetaRecord{
			ID:             prev.ID,
			StartTime:      stamp,
			PrevStartTime:  prev.StartTime,
			DBVersion:      build.DBVersion,
			EngineVersion:  build.EngineVersion,
			RuntimeVersion: build.RuntimeVersion,
			SQLVersion:     build.SQLVersion,
			SaltCheck:      prev.SaltCheck,
		}
		return plan, nil

	default:
		return Plan{}, fmt.Errorf("%w: %d rows", types.ErrLedgerCorrupt, n)
	}
}

// VersionChanged compares the tracked versions of a stored row with the
// running build. Runtime and SQL engine versions are not tracked.
func VersionChanged(stored types.MetaRecord, build types.BuildInfo) bool {
	return stored.DBVersion != build.DBVersion || stored.EngineVersion != build.EngineVersion
}
