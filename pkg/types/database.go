package types

import (
	"fmt"
	"strings"
)

// Purpose says how a database file takes part in the bootstrap.
type Purpose string

// Database purposes. Exactly one database is PurposeMain; it is the file the
// connection is opened on and it holds the META ledger.
const (
	PurposeMain      Purpose = "main"
	PurposePrimary   Purpose = "primary"
	PurposeSecondary Purpose = "secondary"
)

// MainSchema is the SQLite schema name of the database the connection was
// opened on. The configured name of the main database is an alias for it.
const MainSchema = "main"

// ParsePurpose converts a db_list PURPOSE cell into a Purpose.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(strings.ToLower(strings.TrimSpace(s))); p {
	case PurposeMain, PurposePrimary, PurposeSecondary:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPurpose, s)
	}
}

// ReadOnly reports whether databases with this purpose are attached read-only.
func (p Purpose) ReadOnly() bool {
	return p == PurposeSecondary
}

// DatabaseSpec is one row of db_list: a database file and the alias it is
// attached under.
type DatabaseSpec struct {
	Path    string
	Name    string
	Purpose Purpose
}

// DatabaseList is the parsed db_list. It is loaded once and not modified.
type DatabaseList []DatabaseSpec

// Validate checks the list before anything touches the filesystem: every row
// has a path and a name, names are unique (case-insensitive, as SQLite
// schema names are) and exactly one row is the main database.
func (l DatabaseList) Validate() error {
	seen := make(map[string]bool, len(l))
	mains := 0
	for i, d := range l {
		if d.Path == "" {
			return fmt.Errorf("%w: db_list row %d has no PATH", ErrMissingField, i+1)
		}
		if d.Name == "" {
			return fmt.Errorf("%w: db_list row %d has no DB_NAME", ErrMissingField, i+1)
		}
		key := strings.ToLower(d.Name)
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateDatabase, d.Name)
		}
		seen[key] = true
		switch d.Purpose {
		case PurposeMain:
			mains++
		case PurposePrimary, PurposeSecondary:
		default:
			return fmt.Errorf("%w: %q for %s", ErrUnknownPurpose, d.Purpose, d.Name)
		}
	}
	switch {
	case mains == 0:
		return ErrNoMainDatabase
	case mains > 1:
		return fmt.Errorf("%w: found %d", ErrMultipleMainDatabases, mains)
	}
	return nil
}

// Main returns the main database. Call Validate first.
func (l DatabaseList) Main() (DatabaseSpec, bool) {
	for _, d := range l {
		if d.Purpose == PurposeMain {
			return d, true
		}
	}
	return DatabaseSpec{}, false
}

// ByPurpose returns the databases with the given purpose in list order.
func (l DatabaseList) ByPurpose(p Purpose) []DatabaseSpec {
	var out []DatabaseSpec
	for _, d := range l {
		if d.Purpose == p {
			out = append(out, d)
		}
	}
	return out
}

// Names returns every configured alias in list order.
func (l DatabaseList) Names() []string {
	out := make([]string, 0, len(l))
	for _, d := range l {
		out = append(out, d.Name)
	}
	return out
}

// SchemaFor maps a configured database name to the SQLite schema that holds
// it. The main database's name maps to "main"; "main" itself is accepted too.
// Unknown names are returned unchanged with ok=false.
func (l DatabaseList) SchemaFor(name string) (schema string, ok bool) {
	if strings.EqualFold(name, MainSchema) {
		return MainSchema, true
	}
	for _, d := range l {
		if strings.EqualFold(d.Name, name) {
			if d.Purpose == PurposeMain {
				return MainSchema, true
			}
			return d.Name, true
		}
	}
	return name, false
}
