package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLink(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		target  string
		want    Link
		wantErr bool
	}{
		{
			name:   "same database table",
			from:   "users",
			target: "accounts",
			want:   Link{Database: "users", Table: "accounts"},
		},
		{
			name:   "qualified same database",
			from:   "users",
			target: "users.accounts",
			want:   Link{Database: "users", Table: "accounts"},
		},
		{
			name:   "cross database",
			from:   "users",
			target: "models.runs",
			want:   Link{Database: "models", Table: "runs", CrossDatabase: true},
		},
		{
			name:   "whitespace trimmed",
			from:   "users",
			target: "  accounts ",
			want:   Link{Database: "users", Table: "accounts"},
		},
		{name: "empty", from: "users", target: " ", wantErr: true},
		{name: "too many parts", from: "users", target: "a.b.c", wantErr: true},
		{name: "empty table part", from: "users", target: "models.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLink(tt.from, tt.target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLink)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinkForeignKeyColumn(t *testing.T) {
	l := Link{Database: "models", Table: "runs"}
	assert.Equal(t, "runs_ID", l.ForeignKeyColumn())
	assert.Equal(t, "models.runs", l.Key())
}

func TestTableSpecHasColumn(t *testing.T) {
	ts := TableSpec{
		Database: "users",
		Table:    "people",
		Columns:  []ColumnSpec{{Column: "id"}, {Column: "NAME"}},
	}
	assert.True(t, ts.HasColumn("ID"))
	assert.True(t, ts.HasColumn("name"))
	assert.False(t, ts.HasColumn("age"))
	assert.Equal(t, "users.people", ts.Key())
}
