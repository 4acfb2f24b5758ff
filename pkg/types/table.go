package types

import (
	"fmt"
	"strings"
)

// IDColumn is the primary key column every created table carries.
const IDColumn = "ID"

// ColumnSpec is one row of def_tables.
type ColumnSpec struct {
	Database string
	Table    string
	Column   string
	Type     string
	// LinksTo holds raw link targets, each "table" or "db.table".
	LinksTo []string
}

// Link is a parsed link target.
type Link struct {
	Database string
	Table    string
	// CrossDatabase is set when the target lives in another database. SQLite
	// cannot enforce foreign keys across attached databases.
	CrossDatabase bool
}

// Key returns "database.table".
func (l Link) Key() string {
	return TableKey(l.Database, l.Table)
}

// ForeignKeyColumn is the synthesized column name for this link.
func (l Link) ForeignKeyColumn() string {
	return l.Table + "_" + IDColumn
}

// ParseLink resolves a LINKS_TO entry relative to the database of the table
// that declares it.
func ParseLink(fromDatabase, target string) (Link, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Link{}, fmt.Errorf("%w: empty target", ErrInvalidLink)
	}
	parts := strings.Split(target, ".")
	switch len(parts) {
	case 1:
		return Link{Database: fromDatabase, Table: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Link{}, fmt.Errorf("%w: %q", ErrInvalidLink, target)
		}
		return Link{
			Database:      parts[0],
			Table:         parts[1],
			CrossDatabase: !strings.EqualFold(parts[0], fromDatabase),
		}, nil
	default:
		return Link{}, fmt.Errorf("%w: %q", ErrInvalidLink, target)
	}
}

// TableSpec is every ColumnSpec sharing one (database, table) pair plus the
// links those columns declare.
type TableSpec struct {
	Database string
	Table    string
	Columns  []ColumnSpec
	Links    []Link
}

// Key returns "database.table", the node key in the dependency graph.
func (t *TableSpec) Key() string {
	return TableKey(t.Database, t.Table)
}

// HasColumn reports whether a column with the given name is declared.
// SQLite column names are case-insensitive.
func (t *TableSpec) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Column, name) {
			return true
		}
	}
	return false
}

// TableKey builds the dependency graph key for a table.
func TableKey(database, table string) string {
	return strings.ToLower(database) + "." + strings.ToLower(table)
}
