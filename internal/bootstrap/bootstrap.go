// Package bootstrap runs a full database start: load the definition lists,
// attach the databases, resolve the schema, update the META ledger, check the
// stored SALT_CHECK and create missing views. Each stage must succeed before
// the next one starts.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/internal/integrity"
	"github.com/mesh-intelligence/dbstarter/internal/ledger"
	"github.com/mesh-intelligence/dbstarter/internal/lists"
	"github.com/mesh-intelligence/dbstarter/internal/metrics"
	"github.com/mesh-intelligence/dbstarter/internal/sqlite"
	"github.com/mesh-intelligence/dbstarter/pkg/types"
	"github.com/mesh-intelligence/dbstarter/pkg/version"
)

// Options configure Start.
type Options struct {
	Config types.Config
	// DefsDir overrides Config.DefsDir.
	DefsDir string
	Logger  *zap.Logger
	// Metrics is optional.
	Metrics *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
	// KeepOpenOnError returns the backend, marked unusable, when a stage
	// after attach fails. Otherwise it is detached.
	KeepOpenOnError bool
}

// Report describes a finished run.
type Report struct {
	RunID      string                `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Databases  types.DatabaseList    `json:"-"`
	Schema     *sqlite.ResolveReport `json:"-"`
	Ledger     ledger.Plan           `json:"-"`
	Views      *sqlite.ViewReport    `json:"-"`
}

// Start bootstraps the databases described by the definition directory and
// returns the attached backend. On error the backend is nil unless
// KeepOpenOnError is set and the failure happened after attach.
func Start(ctx context.Context, opts Options) (*sqlite.Backend, *Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := opts.Metrics
	cfg := opts.Config

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("generating run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID.String()))
	report := &Report{RunID: runID.String(), StartedAt: now()}

	if err := cfg.Validate(); err != nil {
		m.RecordRun(err, now())
		return nil, report, err
	}
	policy, _ := types.ParseCyclePolicy(cfg.Schema.CyclePolicy)

	// The checksum needs the salt key, so a missing key fails here before
	// any file is opened.
	checksum, err := integrity.Checksum(cfg.Salt)
	if err != nil {
		m.RecordRun(err, now())
		return nil, report, err
	}

	defsDir := opts.DefsDir
	if defsDir == "" {
		defsDir = cfg.DefsDir
	}

	var defs *lists.Definitions
	err = stage(m, metrics.StageLoad, func() error {
		var err error
		defs, err = lists.NewLoader(logger).LoadDir(defsDir)
		return err
	})
	if err != nil {
		m.RecordRun(err, now())
		return nil, report, err
	}
	report.Databases = defs.Databases

	b := sqlite.NewBackend(logger)
	err = stage(m, metrics.StageAttach, func() error {
		return b.Attach(ctx, defs.Databases)
	})
	if err != nil {
		m.RecordRun(err, now())
		return nil, report, err
	}

	fail := func(err error) (*sqlite.Backend, *Report, error) {
		m.RecordRun(err, now())
		logger.Error("bootstrap failed", zap.Error(err))
		if opts.KeepOpenOnError {
			b.MarkUnusable(err)
			return b, report, err
		}
		if derr := b.Detach(); derr != nil {
			logger.Warn("closing connection after failure", zap.Error(derr))
		}
		return nil, report, err
	}

	err = stage(m, metrics.StageSchema, func() error {
		var err error
		report.Schema, err = b.ResolveSchema(ctx, defs.Columns, policy)
		return err
	})
	if err != nil {
		return fail(err)
	}
	m.RecordTables(len(report.Schema.Created), len(report.Schema.Existing), len(report.Schema.Degraded))

	err = stage(m, metrics.StageLedger, func() error {
		sqlVersion, err := b.SQLiteVersion(ctx)
		if err != nil {
			return err
		}
		build := types.BuildInfo{
			DBVersion:      cfg.DBVersion,
			EngineVersion:  version.Version,
			RuntimeVersion: runtime.Version(),
			SQLVersion:     sqlVersion,
		}
		report.Ledger, err = b.UpdateLedger(ctx, build, now(), func() (string, error) { return checksum, nil })
		return err
	})
	if err != nil {
		return fail(err)
	}
	m.RecordLedger(string(report.Ledger.Action), report.Ledger.VersionChanged)

	err = stage(m, metrics.StageIntegrity, func() error {
		stored, err := b.SaltCheck(ctx)
		if err != nil {
			return err
		}
		err = integrity.Verify(stored, checksum)
		m.RecordIntegrity(integrityResult(err))
		return err
	})
	if err != nil {
		return fail(err)
	}
	logger.Info("integrity check passed")

	err = stage(m, metrics.StageViews, func() error {
		var err error
		report.Views, err = b.SyncViews(ctx, defs.Views)
		return err
	})
	if err != nil {
		return fail(err)
	}
	m.RecordViews(len(report.Views.Created), len(report.Views.Existing))

	report.FinishedAt = now()
	m.RecordRun(nil, report.FinishedAt)
	logger.Info("bootstrap complete",
		zap.Int("databases", len(defs.Databases)),
		zap.Int("tables", len(report.Schema.Order)),
		zap.Int("views", len(defs.Views)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return b, report, nil
}

func stage(m *metrics.Metrics, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.ObserveStage(name, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func integrityResult(err error) string {
	switch {
	case err == nil:
		return "match"
	case errors.Is(err, types.ErrIntegrityUnavailable):
		return "unavailable"
	default:
		return "mismatch"
	}
}
