package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/internal/ledger"
	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// EnsureLedger creates META and META_HISTORY in the main database.
func (b *Backend) EnsureLedger(ctx context.Context) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	for _, stmt := range []string{createMetaTable, createMetaHistoryTable} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating ledger tables: %w", err)
		}
	}
	return nil
}

// MetaRows returns every row in META. A healthy ledger has at most one.
func (b *Backend) MetaRows(ctx context.Context) ([]types.MetaRecord, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectMeta)
	if err != nil {
		return nil, fmt.Errorf("reading META: %w", err)
	}
	defer rows.Close()

	var out []types.MetaRecord
	for rows.Next() {
		rec, err := hydrateMetaRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MetaHistory returns archived META rows, oldest first.
func (b *Backend) MetaHistory(ctx context.Context) ([]types.MetaHistoryRecord, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectMetaHistory)
	if err != nil {
		return nil, fmt.Errorf("reading META_HISTORY: %w", err)
	}
	defer rows.Close()

	var out []types.MetaHistoryRecord
	for rows.Next() {
		var createDate sql.NullString
		meta, err := hydrateMetaRecord(rows, &createDate)
		if err != nil {
			return nil, err
		}
		out = append(out, types.MetaHistoryRecord{MetaRecord: meta, CreateDate: createDate.String})
	}
	return out, rows.Err()
}

// SaltCheck returns the stored SALT_CHECK, or "" when META is empty.
func (b *Backend) SaltCheck(ctx context.Context) (string, error) {
	rows, err := b.MetaRows(ctx)
	if err != nil {
		return "", err
	}
	switch len(rows) {
	case 0:
		return "", nil
	case 1:
		return rows[0].SaltCheck, nil
	default:
		return "", fmt.Errorf("%w: %d rows", types.ErrLedgerCorrupt, len(rows))
	}
}

// UpdateLedger applies this launch to META. With more than one row nothing
// is written and ErrLedgerCorrupt is returned. Otherwise the archive insert,
// the delete and the new row are committed in one transaction.
func (b *Backend) UpdateLedger(ctx context.Context, build types.BuildInfo, now time.Time, checksum ledger.ChecksumFunc) (ledger.Plan, error) {
	if err := b.EnsureLedger(ctx); err != nil {
		return ledger.Plan{}, err
	}
	rows, err := b.MetaRows(ctx)
	if err != nil {
		return ledger.Plan{}, err
	}
	plan, err := ledger.Next(rows, build, now, checksum)
	if err != nil {
		return ledger.Plan{}, err
	}

	db, err := b.conn()
	if err != nil {
		return ledger.Plan{}, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Plan{}, fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer tx.Rollback()

	if plan.Archive != nil {
		args := append(metaArgs(plan.Archive.MetaRecord), plan.Archive.CreateDate)
		if _, err := tx.ExecContext(ctx, insertMetaHistory, args...); err != nil {
			return ledger.Plan{}, fmt.Errorf("archiving META row: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, deleteMeta); err != nil {
		return ledger.Plan{}, fmt.Errorf("clearing META: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertMeta, metaArgs(plan.Record)...); err != nil {
		return ledger.Plan{}, fmt.Errorf("writing META: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ledger.Plan{}, fmt.Errorf("committing ledger: %w", err)
	}

	if plan.VersionChanged {
		b.logger.Warn("version changed since last start",
			zap.String("db_version_before", plan.Previous.DBVersion),
			zap.String("db_version", plan.Record.DBVersion),
			zap.String("engine_version_before", plan.Previous.EngineVersion),
			zap.String("engine_version", plan.Record.EngineVersion))
	}
	b.logger.Info("ledger updated",
		zap.String("action", string(plan.Action)),
		zap.String("start_time", plan.Record.StartTime),
		zap.String("prev_start_time", plan.Record.PrevStartTime))
	return plan, nil
}

func metaArgs(r types.MetaRecord) []any {
	return []any{
		r.ID, r.StartTime, r.PrevStartTime, r.DBVersion,
		r.EngineVersion, r.RuntimeVersion, r.SQLVersion, r.SaltCheck,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// hydrateMetaRecord reads one META row. Columns written by older releases
// may be NULL; they read as "".
func hydrateMetaRecord(row rowScanner, extra ...any) (types.MetaRecord, error) {
	var (
		r                                               types.MetaRecord
		id                                              sql.NullInt64
		start, prev, dbVersion, engine, runtime, sqlVer sql.NullString
		salt                                            sql.NullString
	)
	dest := append([]any{&id, &start, &prev, &dbVersion, &engine, &runtime, &sqlVer, &salt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return r, fmt.Errorf("scanning META row: %w", err)
	}
	r.ID = id.Int64
	r.StartTime = start.String
	r.PrevStartTime = prev.String
	r.DBVersion = dbVersion.String
	r.EngineVersion = engine.String
	r.RuntimeVersion = runtime.String
	r.SQLVersion = sqlVer.String
	r.SaltCheck = salt.String
	return r, nil
}
