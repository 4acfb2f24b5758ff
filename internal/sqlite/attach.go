package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/internal/schema"
	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// Attach opens the main database and attaches every primary database
// read-write and every secondary database read-only. The list is validated
// before any file is touched. Afterwards the attached catalog is checked
// against the list and a missing alias fails the attach.
func (b *Backend) Attach(ctx context.Context, dbs types.DatabaseList) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := dbs.Validate(); err != nil {
		return err
	}

	mainDB, _ := dbs.Main()
	if err := ensureParentDir(mainDB.Path); err != nil {
		return err
	}

	db, err := sql.Open(driverName, mainDB.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", mainDB.Path, err)
	}
	// ATTACH is per connection; one connection keeps every alias visible.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("opening %s: %w", mainDB.Path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	for _, d := range dbs.ByPurpose(types.PurposePrimary) {
		if err := ensureParentDir(d.Path); err != nil {
			db.Close()
			return err
		}
		if err := attachDatabase(ctx, db, d.Path, d.Name, false); err != nil {
			db.Close()
			return err
		}
	}
	for _, d := range dbs.ByPurpose(types.PurposeSecondary) {
		if err := attachDatabase(ctx, db, d.Path, d.Name, true); err != nil {
			db.Close()
			return err
		}
	}

	attached, err := listDatabases(ctx, db)
	if err != nil {
		db.Close()
		return err
	}
	present := make(map[string]bool, len(attached))
	for _, a := range attached {
		present[strings.ToLower(a.Name)] = true
	}
	var missing []string
	for _, d := range dbs {
		s, _ := dbs.SchemaFor(d.Name)
		if !present[strings.ToLower(s)] {
			missing = append(missing, d.Name)
		}
	}
	if len(missing) > 0 {
		db.Close()
		return fmt.Errorf("%w: %s", types.ErrAttachIncomplete, strings.Join(missing, ", "))
	}

	for _, a := range attached {
		b.logger.Info("attached database", zap.String("name", a.Name), zap.String("file", a.File))
	}

	b.db = db
	b.dbs = dbs
	b.attached = true
	b.unusable = nil
	return nil
}

// attachDatabase runs ATTACH DATABASE. Read-only attachments go through a
// file: URI with mode=ro.
func attachDatabase(ctx context.Context, db *sql.DB, path, name string, readOnly bool) error {
	target := path
	if readOnly {
		target = "file:" + uriPathEscaper.Replace(path) + "?mode=ro"
	}
	stmt := "ATTACH DATABASE ? AS " + schema.QuoteIdent(name)
	if _, err := db.ExecContext(ctx, stmt, target); err != nil {
		return fmt.Errorf("attaching %s as %s: %w", path, name, err)
	}
	return nil
}

var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// ensureParentDir creates the directory a database file lives in.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	return nil
}
