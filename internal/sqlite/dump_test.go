package sqlite

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func dumpFixture(t *testing.T) *Backend {
	t.Helper()
	ctx := context.Background()

	b := attachBackend(t, testDatabases(t.TempDir()))
	_, err := b.ResolveSchema(ctx, []types.ColumnSpec{
		col("users", "people", "NAME", "TEXT"),
		col("users", "people", "NICK", "TEXT"),
	}, types.CycleDegrade)
	require.NoError(t, err)

	db, err := b.DB()
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO users.people (NAME, NICK) VALUES ('Ada', NULL), ('Grace', 'amazing')`)
	require.NoError(t, err)
	return b
}

func TestDump_CSV(t *testing.T) {
	b := dumpFixture(t)
	out := filepath.Join(t.TempDir(), "dump")

	m, err := b.Dump(context.Background(), out, DumpCSV)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, DumpEntry{Database: "users", Table: "people", File: filepath.Join(out, "users.people.csv"), Rows: 2}, m.Entries[0])

	assert.Equal(t, [][]string{
		{"ID", "NAME", "NICK"},
		{"1", "Ada", ""},
		{"2", "Grace", "amazing"},
	}, readCSV(t, filepath.Join(out, "users.people.csv")))

	assert.Equal(t, [][]string{
		{"database_name", "table_name", "file", "rows"},
		{"users", "people", "users.people.csv", "2"},
	}, readCSV(t, filepath.Join(out, ManifestFile)))
}

func TestDump_Parquet(t *testing.T) {
	b := dumpFixture(t)
	out := t.TempDir()

	m, err := b.Dump(context.Background(), out, DumpParquet)
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)

	data, err := os.ReadFile(filepath.Join(out, "users.people.parquet"))
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

func TestDump_ParquetAwkwardColumnNames(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))
	db, err := b.DB()
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE users.odd ("a,b" TEXT, "a=b" TEXT, "Été" TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO users.odd VALUES ('1', '2', '3')`)
	require.NoError(t, err)

	out := t.TempDir()
	m, err := b.Dump(ctx, out, DumpParquet)
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, 1, m.Entries[0].Rows)

	data, err := os.ReadFile(filepath.Join(out, "users.odd.parquet"))
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(data[:4]))
}

func TestParquetColumnNames(t *testing.T) {
	got := parquetColumnNames([]string{"ID", "a,b", "a=b", "A_B", "", "name with space", "Été"})
	assert.Equal(t, []string{"ID", "a_b", "a_b_2", "A_B_3", "column_5", "name_with_space", "_t_"}, got)
}

func TestDump_UnusableBackend(t *testing.T) {
	b := dumpFixture(t)
	b.MarkUnusable(types.ErrIntegrityMismatch)

	_, err := b.Dump(context.Background(), t.TempDir(), DumpCSV)
	assert.ErrorIs(t, err, types.ErrBackendUnusable)
}

func TestParseDumpFormat(t *testing.T) {
	f, err := ParseDumpFormat(" Parquet ")
	require.NoError(t, err)
	assert.Equal(t, DumpParquet, f)

	_, err = ParseDumpFormat("xlsx")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestDump_JSONL(t *testing.T) {
	b := dumpFixture(t)
	out := t.TempDir()

	_, err := b.Dump(context.Background(), out, DumpJSONL)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(out, "users.people.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var rows []map[string]*string
	dec := json.NewDecoder(f)
	for dec.More() {
		var row map[string]*string
		require.NoError(t, dec.Decode(&row))
		rows = append(rows, row)
	}
	require.Len(t, rows, 2)
	assert.Equal(t, "Ada", *rows[0]["NAME"])
	assert.Nil(t, rows[0]["NICK"])
	assert.Equal(t, "amazing", *rows[1]["NICK"])

	leftovers, err := filepath.Glob(filepath.Join(out, ".dump-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
