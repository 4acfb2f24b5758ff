package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// ViewReport lists which configured views were created and which were
// already present.
type ViewReport struct {
	Created  []string
	Existing []string
}

// SyncViews creates every configured view whose name is not in the catalog.
// Views are matched by name only: an existing view with different SQL is left
// as it is. A view name may be schema-qualified ("users.adults"); an
// unqualified name is looked up in main.
//
// SQLite does not let a view stored in one file read tables of another, so a
// main view whose SQL reaches into an attached database is created as a temp
// view instead. Temp views last as long as the connection and are created
// again on every start.
func (b *Backend) SyncViews(ctx context.Context, views []types.ViewSpec) (*ViewReport, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	present, err := b.Views(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, 3*len(present))
	for _, v := range present {
		known[viewKey(v.Database+"."+v.Name)] = true
		switch v.Database {
		case types.MainSchema:
			known[viewKey(v.Name)] = true
		case tempSchema:
			known[viewKey(v.Name)] = true
			known[viewKey(types.MainSchema+"."+v.Name)] = true
		}
	}

	report := &ViewReport{}
	for _, v := range views {
		if known[viewKey(v.Name)] {
			report.Existing = append(report.Existing, v.Name)
			continue
		}
		temp, err := b.createView(ctx, db, v)
		if err != nil {
			return report, err
		}
		known[viewKey(v.Name)] = true
		report.Created = append(report.Created, v.Name)
		b.logger.Debug("view created", zap.String("view", v.Name), zap.Bool("temp", temp))
	}

	b.logger.Info("views synchronised",
		zap.Int("created", len(report.Created)),
		zap.Int("existing", len(report.Existing)))
	return report, nil
}

// createView runs CREATE VIEW, falling back to CREATE TEMP VIEW when a main
// view references another database. It reports whether the view is temp.
func (b *Backend) createView(ctx context.Context, db *sql.DB, v types.ViewSpec) (bool, error) {
	_, err := db.ExecContext(ctx, "CREATE VIEW "+v.Name+" AS "+v.SQL)
	if err == nil {
		return false, nil
	}
	name, inMain := mainViewName(v.Name)
	if !inMain || !strings.Contains(err.Error(), crossDatabaseViewError) {
		return false, fmt.Errorf("creating view %s: %w", v.Name, err)
	}

	b.logger.Debug("view reads attached databases, creating it as temp", zap.String("view", v.Name))
	if _, err := db.ExecContext(ctx, "CREATE TEMP VIEW "+name+" AS "+v.SQL); err != nil {
		return false, fmt.Errorf("creating temp view %s: %w", v.Name, err)
	}
	return true, nil
}

// crossDatabaseViewError is how SQLite rejects a stored view that reads
// another database.
const crossDatabaseViewError = "cannot reference objects in database"

// mainViewName strips a "main." qualifier. It reports false for names
// qualified with any other schema.
func mainViewName(name string) (string, bool) {
	i := strings.Index(name, ".")
	if i < 0 {
		return name, true
	}
	if strings.EqualFold(strings.Trim(name[:i], `"`), types.MainSchema) {
		return name[i+1:], true
	}
	return name, false
}
