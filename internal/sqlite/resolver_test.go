package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

func col(db, table, column, typ string, links ...string) types.ColumnSpec {
	return types.ColumnSpec{Database: db, Table: table, Column: column, Type: typ, LinksTo: links}
}

func columnNames(cols []ColumnInfo) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func TestResolveSchema_DependenciesFirst(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	cols := []types.ColumnSpec{
		col("users", "orders", "TOTAL", "REAL", "customers"),
		col("users", "customers", "NAME", "TEXT"),
	}
	report, err := b.ResolveSchema(ctx, cols, types.CycleDegrade)
	require.NoError(t, err)

	assert.Equal(t, []string{"users.customers", "users.orders"}, report.Order)
	assert.Equal(t, []string{"users.customers", "users.orders"}, report.Created)
	assert.Empty(t, report.Degraded)

	orderCols, err := b.Columns(ctx, "users", "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "TOTAL", "customers_ID"}, columnNames(orderCols))
	assert.True(t, orderCols[0].PrimaryKey)

	fks, err := b.ForeignKeys(ctx, "users", "orders")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "customers", fks[0].Table)
	assert.Equal(t, "customers_ID", fks[0].From)
	assert.Equal(t, "ID", fks[0].To)
}

func TestResolveSchema_DeclaredID(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	cols := []types.ColumnSpec{
		col("users", "people", "id", "TEXT"),
		col("users", "people", "NAME", "TEXT"),
	}
	_, err := b.ResolveSchema(ctx, cols, types.CycleDegrade)
	require.NoError(t, err)

	got, err := b.Columns(ctx, "users", "people")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "id", got[0].Name)
	assert.Equal(t, "TEXT", got[0].Type)
	assert.False(t, got[0].PrimaryKey)
}

func TestResolveSchema_MainAlias(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	report, err := b.ResolveSchema(ctx, []types.ColumnSpec{col("META", "settings", "VALUE", "TEXT")}, types.CycleDegrade)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.settings"}, report.Created)

	exists, err := b.TableExists(ctx, "main", "settings")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestResolveSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	cols := []types.ColumnSpec{
		col("users", "customers", "NAME", "TEXT"),
		col("users", "orders", "TOTAL", "REAL", "customers"),
	}
	_, err := b.ResolveSchema(ctx, cols, types.CycleDegrade)
	require.NoError(t, err)

	// A column added later is not applied to an existing table.
	cols = append(cols, col("users", "customers", "EMAIL", "TEXT"))
	report, err := b.ResolveSchema(ctx, cols, types.CycleDegrade)
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, []string{"users.customers", "users.orders"}, report.Existing)

	got, err := b.Columns(ctx, "users", "customers")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "NAME"}, columnNames(got))
}

func TestResolveSchema_CycleDegrades(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	cols := []types.ColumnSpec{
		col("users", "a", "X", "TEXT", "b"),
		col("users", "b", "Y", "TEXT", "a"),
	}
	report, err := b.ResolveSchema(ctx, cols, types.CycleDegrade)
	require.NoError(t, err)

	assert.Equal(t, []string{"users.b", "users.a"}, report.Order)
	assert.Equal(t, []string{"users.b"}, report.Degraded)
	assert.Equal(t, []string{"users.a"}, report.Created)
	require.Len(t, report.BackEdges, 1)

	bCols, err := b.Columns(ctx, "users", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Y", "a_ID"}, columnNames(bCols))
	fks, err := b.ForeignKeys(ctx, "users", "b")
	require.NoError(t, err)
	assert.Empty(t, fks)

	fks, err = b.ForeignKeys(ctx, "users", "a")
	require.NoError(t, err)
	assert.Len(t, fks, 1)
}

func TestResolveSchema_CycleRejected(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	cols := []types.ColumnSpec{
		col("users", "a", "X", "TEXT", "b"),
		col("users", "b", "Y", "TEXT", "a"),
	}
	_, err := b.ResolveSchema(ctx, cols, types.CycleReject)
	assert.ErrorIs(t, err, types.ErrCyclicSchema)

	tables, err := b.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestResolveSchema_SelfLink(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	report, err := b.ResolveSchema(ctx, []types.ColumnSpec{col("users", "nodes", "LABEL", "TEXT", "nodes")}, types.CycleReject)
	require.NoError(t, err)
	assert.Equal(t, []string{"users.nodes"}, report.Created)

	fks, err := b.ForeignKeys(ctx, "users", "nodes")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "nodes", fks[0].Table)
}

func TestResolveSchema_CrossDatabaseLink(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	cols := []types.ColumnSpec{
		col("meta", "tenants", "NAME", "TEXT"),
		col("users", "people", "NAME", "TEXT", "meta.tenants"),
	}
	report, err := b.ResolveSchema(ctx, cols, types.CycleDegrade)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.tenants", "users.people"}, report.Created)

	got, err := b.Columns(ctx, "users", "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "NAME", "tenants_ID"}, columnNames(got))

	fks, err := b.ForeignKeys(ctx, "users", "people")
	require.NoError(t, err)
	assert.Empty(t, fks)
}

func TestResolveSchema_UndefinedTargetDegrades(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	report, err := b.ResolveSchema(ctx, []types.ColumnSpec{col("users", "orders", "TOTAL", "REAL", "ghosts")}, types.CycleDegrade)
	require.NoError(t, err)
	assert.Equal(t, []string{"users.orders"}, report.Degraded)

	got, err := b.Columns(ctx, "users", "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "TOTAL", "ghosts_ID"}, columnNames(got))
}

func TestResolveSchema_Errors(t *testing.T) {
	tests := []struct {
		name string
		cols []types.ColumnSpec
		want error
	}{
		{
			name: "unknown database",
			cols: []types.ColumnSpec{col("nowhere", "t", "X", "TEXT")},
			want: types.ErrUnknownDatabase,
		},
		{
			name: "duplicate column",
			cols: []types.ColumnSpec{col("users", "t", "X", "TEXT"), col("users", "t", "x", "INTEGER")},
			want: types.ErrDuplicateColumn,
		},
		{
			name: "invalid link",
			cols: []types.ColumnSpec{col("users", "t", "X", "TEXT", "a.b.c")},
			want: types.ErrInvalidLink,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := attachBackend(t, testDatabases(t.TempDir()))
			_, err := b.ResolveSchema(context.Background(), tt.cols, types.CycleDegrade)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveSchema_BadTypeIsFatal(t *testing.T) {
	ctx := context.Background()
	b := attachBackend(t, testDatabases(t.TempDir()))

	cols := []types.ColumnSpec{
		col("users", "good", "X", "TEXT"),
		col("users", "broken", "Y", "TEXT DEFAULT"),
	}
	report, err := b.ResolveSchema(ctx, cols, types.CycleDegrade)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users.broken")
	assert.Equal(t, []string{"users.good"}, report.Created)
}

func TestResolveSchema_LinkWarningsOnlyWhenCreated(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	b := NewBackend(zap.New(core))
	require.NoError(t, b.Attach(ctx, testDatabases(t.TempDir())))
	t.Cleanup(func() { b.Detach() })

	cols := []types.ColumnSpec{
		col("users", "people", "NAME", "TEXT"),
		col("meta", "orders", "AMOUNT", "REAL", "users.people", "users.ghosts"),
	}

	_, err := b.ResolveSchema(ctx, cols, types.CycleDegrade)
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("cross-database link created without constraint").Len())
	assert.Equal(t, 1, logs.FilterMessage("link target table is not defined").Len())

	logs.TakeAll()
	report, err := b.ResolveSchema(ctx, cols, types.CycleDegrade)
	require.NoError(t, err)
	assert.Len(t, report.Existing, 2)
	assert.Zero(t, logs.Len())
}
