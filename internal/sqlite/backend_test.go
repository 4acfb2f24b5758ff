package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// testDatabases returns a main and a primary database under dir. The primary
// lives in a subdirectory that does not exist yet.
func testDatabases(dir string) types.DatabaseList {
	return types.DatabaseList{
		{Path: filepath.Join(dir, "meta.db"), Name: "meta", Purpose: types.PurposeMain},
		{Path: filepath.Join(dir, "data", "users.db"), Name: "users", Purpose: types.PurposePrimary},
	}
}

// attachBackend attaches dbs and detaches when the test ends.
func attachBackend(t *testing.T, dbs types.DatabaseList) *Backend {
	t.Helper()

	b := NewBackend(zaptest.NewLogger(t))
	require.NoError(t, b.Attach(context.Background(), dbs))
	t.Cleanup(func() { b.Detach() })
	return b
}

// seedDatabase creates a database file holding one table with one row.
func seedDatabase(t *testing.T, path, table string) {
	t.Helper()

	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE "` + table + `" (ID INTEGER PRIMARY KEY, NAME TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO "`+table+`" (NAME) VALUES (?)`, "seed")
	require.NoError(t, err)
}

func TestBackend_Attach(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbs := testDatabases(dir)

	b := attachBackend(t, dbs)

	assert.FileExists(t, filepath.Join(dir, "meta.db"))
	assert.FileExists(t, filepath.Join(dir, "data", "users.db"))

	attached, err := b.Databases(ctx)
	require.NoError(t, err)
	require.Len(t, attached, 2)
	assert.Equal(t, "main", attached[0].Name)
	assert.Equal(t, "users", attached[1].Name)

	err = b.Attach(ctx, dbs)
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)
}

func TestBackend_AttachSecondaryReadOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	archive := filepath.Join(dir, "archive.db")
	seedDatabase(t, archive, "events")

	dbs := append(testDatabases(dir), types.DatabaseSpec{
		Path: archive, Name: "archive", Purpose: types.PurposeSecondary,
	})
	b := attachBackend(t, dbs)

	exists, err := b.TableExists(ctx, "archive", "EVENTS")
	require.NoError(t, err)
	assert.True(t, exists)

	db, err := b.DB()
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO archive.events (NAME) VALUES ('x')`)
	assert.Error(t, err, "secondary databases are read-only")
}

func TestBackend_AttachMissingSecondary(t *testing.T) {
	dir := t.TempDir()
	dbs := append(testDatabases(dir), types.DatabaseSpec{
		Path: filepath.Join(dir, "absent.db"), Name: "absent", Purpose: types.PurposeSecondary,
	})

	b := NewBackend(zaptest.NewLogger(t))
	err := b.Attach(context.Background(), dbs)
	require.Error(t, err)

	_, err = b.DB()
	assert.ErrorIs(t, err, types.ErrNotAttached)
	_, statErr := os.Stat(filepath.Join(dir, "absent.db"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "read-only attach must not create the file")
}

func TestBackend_AttachInvalidList(t *testing.T) {
	dir := t.TempDir()
	dbs := types.DatabaseList{
		{Path: filepath.Join(dir, "a.db"), Name: "a", Purpose: types.PurposePrimary},
	}

	b := NewBackend(nil)
	err := b.Attach(context.Background(), dbs)
	assert.ErrorIs(t, err, types.ErrNoMainDatabase)
	assert.NoFileExists(t, filepath.Join(dir, "a.db"))
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend(nil)
	require.NoError(t, b.Attach(context.Background(), testDatabases(t.TempDir())))

	require.NoError(t, b.Detach())
	assert.NoError(t, b.Detach(), "Detach is idempotent")

	_, err := b.DB()
	assert.ErrorIs(t, err, types.ErrNotAttached)
	_, err = b.Tables(context.Background())
	assert.ErrorIs(t, err, types.ErrNotAttached)
}

func TestBackend_MarkUnusable(t *testing.T) {
	b := attachBackend(t, testDatabases(t.TempDir()))
	assert.True(t, b.Usable())

	b.MarkUnusable(types.ErrIntegrityMismatch)
	b.MarkUnusable(errors.New("later"))

	assert.False(t, b.Usable())
	_, err := b.DB()
	assert.ErrorIs(t, err, types.ErrBackendUnusable)
	assert.Contains(t, err.Error(), types.ErrIntegrityMismatch.Error())
}

func TestBackend_SQLiteVersion(t *testing.T) {
	b := attachBackend(t, testDatabases(t.TempDir()))

	v, err := b.SQLiteVersion(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^3\.\d+\.\d+`, v)
}
