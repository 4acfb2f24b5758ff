// Package schema turns flat def_tables rows into table definitions ordered by
// their links. It builds the dependency graph and the CREATE TABLE text but
// never talks to a database; internal/sqlite executes what it produces.
package schema

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// CanonicalFunc maps a configured database name to the name tables are keyed
// by. Two aliases of the same database must map to the same value.
type CanonicalFunc func(database string) string

// Identity leaves database names as configured.
func Identity(database string) string { return database }

// Group collects column rows into tables keyed by (database, table). Tables
// keep the order in which they first appear and columns keep declaration
// order. Link targets are parsed and de-duplicated per table.
func Group(cols []types.ColumnSpec, canon CanonicalFunc) ([]*types.TableSpec, error) {
	if canon == nil {
		canon = Identity
	}

	var tables []*types.TableSpec
	byKey := make(map[string]*types.TableSpec)

	for _, c := range cols {
		if c.Database == "" || c.Table == "" || c.Column == "" {
			return nil, fmt.Errorf("%w: column row needs DBNAME, TABLENAME and VARNAME (got %q.%q.%q)",
				types.ErrMissingField, c.Database, c.Table, c.Column)
		}
		if strings.TrimSpace(c.Type) == "" {
			return nil, fmt.Errorf("%w: %s.%s.%s has no TYPE", types.ErrMissingField, c.Database, c.Table, c.Column)
		}

		c.Database = canon(c.Database)
		key := types.TableKey(c.Database, c.Table)
		t, ok := byKey[key]
		if !ok {
			t = &types.TableSpec{Database: c.Database, Table: c.Table}
			byKey[key] = t
			tables = append(tables, t)
		}
		if t.HasColumn(c.Column) {
			return nil, fmt.Errorf("%w: %s.%s", types.ErrDuplicateColumn, key, c.Column)
		}
		t.Columns = append(t.Columns, c)

		for _, raw := range c.LinksTo {
			l, err := types.ParseLink(c.Database, raw)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", key, c.Column, err)
			}
			l.Database = canon(l.Database)
			l.CrossDatabase = !strings.EqualFold(l.Database, c.Database)
			if !hasLink(t.Links, l) {
				t.Links = append(t.Links, l)
			}
		}
	}
	return tables, nil
}

func hasLink(links []types.Link, l types.Link) bool {
	for _, x := range links {
		if x.Key() == l.Key() {
			return true
		}
	}
	return false
}
