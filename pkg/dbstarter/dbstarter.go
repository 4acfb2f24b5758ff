// Package dbstarter is the library entry point for bootstrapping databases.
// It exposes Start while keeping the engine adapter internal.
//
// Example:
//
//	db, closer, err := dbstarter.Start(ctx, dbstarter.Options{
//	    Config: types.Config{
//	        DBVersion: "1.0",
//	        Salt:      types.SaltConfig{HashMethod: "SHA256", KeyFile: "db_salt.txt"},
//	    },
//	    DefsDir: "init_tables",
//	})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
package dbstarter

import (
	"context"
	"database/sql"
	"io"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/internal/bootstrap"
	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// Options configure Start.
type Options struct {
	Config  types.Config
	DefsDir string
	Logger  *zap.Logger
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Start runs the full bootstrap and returns the connection with every
// database attached. The connection is limited to one underlying SQLite
// connection; closing the returned io.Closer detaches everything. On error
// nothing is left open.
func Start(ctx context.Context, opts Options) (*sql.DB, io.Closer, error) {
	b, _, err := bootstrap.Start(ctx, bootstrap.Options{
		Config:  opts.Config,
		DefsDir: opts.DefsDir,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	db, err := b.DB()
	if err != nil {
		b.Detach()
		return nil, nil, err
	}
	return db, closerFunc(b.Detach), nil
}
