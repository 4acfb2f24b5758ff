// Package sqlite runs a bootstrap against SQLite through modernc.org/sqlite.
//
// A Backend owns one *sql.DB limited to a single connection, so databases
// attached with ATTACH stay visible to every statement. The schema resolver,
// the META ledger, view synchronisation and table dumps all run through it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// driverName is the database/sql driver registered by modernc.org/sqlite.
const driverName = "sqlite"

// Backend is an open SQLite connection with the configured databases
// attached.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
	dbs      types.DatabaseList
	logger   *zap.Logger

	// unusable is set when a bootstrap stage failed after Attach. The
	// connection stays open for inspection but DB refuses to hand it out.
	unusable error
}

// NewBackend creates a detached backend. Call Attach to open it.
func NewBackend(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger.Named("sqlite")}
}

// DB returns the underlying connection pool. It fails when the backend is
// detached or was marked unusable.
func (b *Backend) DB() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrNotAttached
	}
	if b.unusable != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrBackendUnusable, b.unusable)
	}
	return b.db, nil
}

// DatabaseList returns the database list the backend was attached with.
func (b *Backend) DatabaseList() types.DatabaseList {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dbs
}

// MarkUnusable records the error that made the connection unsafe to use.
func (b *Backend) MarkUnusable(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unusable == nil {
		b.unusable = err
	}
}

// Usable reports whether DB would hand out the connection.
func (b *Backend) Usable() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attached && b.unusable == nil
}

// Detach closes the connection. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return err
	}
	b.db = nil
	b.attached = false
	return nil
}

// conn returns the connection for bootstrap stages, which run before the
// backend can be marked unusable.
func (b *Backend) conn() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrNotAttached
	}
	return b.db, nil
}

// SQLiteVersion returns sqlite_version() of the embedded engine.
func (b *Backend) SQLiteVersion(ctx context.Context) (string, error) {
	db, err := b.conn()
	if err != nil {
		return "", err
	}
	var v string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&v); err != nil {
		return "", fmt.Errorf("querying sqlite version: %w", err)
	}
	return v, nil
}
