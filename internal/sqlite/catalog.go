package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/dbstarter/internal/schema"
)

// tempSchema holds objects that live only as long as the connection.
const tempSchema = "temp"

// DatabaseInfo is one row of PRAGMA database_list.
type DatabaseInfo struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// TableInfo names a table in an attached database.
type TableInfo struct {
	Database string `json:"database"`
	Name     string `json:"name"`
}

// ViewInfo is a view and the SQL it was created with.
type ViewInfo struct {
	Database string `json:"database"`
	Name     string `json:"name"`
	SQL      string `json:"sql"`
}

// ColumnInfo is one row of PRAGMA table_info.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key"`
}

// ForeignKeyInfo is one row of PRAGMA foreign_key_list.
type ForeignKeyInfo struct {
	From  string `json:"from"`
	Table string `json:"table"`
	To    string `json:"to"`
}

// Databases lists the attached databases, main first. The temp schema is
// left out.
func (b *Backend) Databases(ctx context.Context) ([]DatabaseInfo, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	return listDatabases(ctx, db)
}

func listDatabases(ctx context.Context, db *sql.DB) ([]DatabaseInfo, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("listing databases: %w", err)
	}
	defer rows.Close()

	var out []DatabaseInfo
	for rows.Next() {
		var (
			seq  int
			info DatabaseInfo
		)
		if err := rows.Scan(&seq, &info.Name, &info.File); err != nil {
			return nil, fmt.Errorf("scanning database list: %w", err)
		}
		if info.Name == tempSchema {
			continue
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Tables lists user tables across every attached database.
func (b *Backend) Tables(ctx context.Context) ([]TableInfo, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	dbs, err := listDatabases(ctx, db)
	if err != nil {
		return nil, err
	}

	var out []TableInfo
	for _, d := range dbs {
		q := "SELECT name FROM " + schema.QuoteIdent(d.Name) +
			".sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
		names, err := queryStrings(ctx, db, q)
		if err != nil {
			return nil, fmt.Errorf("listing tables in %s: %w", d.Name, err)
		}
		for _, n := range names {
			out = append(out, TableInfo{Database: d.Name, Name: n})
		}
	}
	return out, nil
}

// TableExists reports whether the schema holds a table of that name. Table
// names compare case-insensitively, as SQLite resolves them.
func (b *Backend) TableExists(ctx context.Context, schemaName, table string) (bool, error) {
	db, err := b.conn()
	if err != nil {
		return false, err
	}
	q := "SELECT count(*) FROM " + schema.QuoteIdent(schemaName) +
		".sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE"
	var n int
	if err := db.QueryRowContext(ctx, q, table).Scan(&n); err != nil {
		return false, fmt.Errorf("checking table %s.%s: %w", schemaName, table, err)
	}
	return n > 0, nil
}

// Views lists views across every attached database and the temp schema.
func (b *Backend) Views(ctx context.Context) ([]ViewInfo, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	dbs, err := listDatabases(ctx, db)
	if err != nil {
		return nil, err
	}

	var out []ViewInfo
	for _, d := range append(dbs, DatabaseInfo{Name: tempSchema}) {
		q := "SELECT name, sql FROM " + schema.QuoteIdent(d.Name) +
			".sqlite_master WHERE type = 'view' ORDER BY name"
		rows, err := db.QueryContext(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("listing views in %s: %w", d.Name, err)
		}
		for rows.Next() {
			v := ViewInfo{Database: d.Name}
			var text sql.NullString
			if err := rows.Scan(&v.Name, &text); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning view: %w", err)
			}
			v.SQL = text.String
			out = append(out, v)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Columns returns the columns of a table in declaration order.
func (b *Backend) Columns(ctx context.Context, schemaName, table string) ([]ColumnInfo, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	q := "PRAGMA " + schema.QuoteIdent(schemaName) + ".table_info(" + schema.QuoteIdent(table) + ")"
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s.%s: %w", schemaName, table, err)
	}
	defer rows.Close()

	var out []ColumnInfo
	for rows.Next() {
		var (
			cid     int
			c       ColumnInfo
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		c.PrimaryKey = pk > 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// ForeignKeys returns the REFERENCES constraints declared on a table.
func (b *Backend) ForeignKeys(ctx context.Context, schemaName, table string) ([]ForeignKeyInfo, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	q := "PRAGMA " + schema.QuoteIdent(schemaName) + ".foreign_key_list(" + schema.QuoteIdent(table) + ")"
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading foreign keys of %s.%s: %w", schemaName, table, err)
	}
	defer rows.Close()

	var out []ForeignKeyInfo
	for rows.Next() {
		var (
			id, seq                   int
			fk                        ForeignKeyInfo
			to                        sql.NullString
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&id, &seq, &fk.Table, &fk.From, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scanning foreign key: %w", err)
		}
		fk.To = to.String
		out = append(out, fk)
	}
	return out, rows.Err()
}

func queryStrings(ctx context.Context, db *sql.DB, q string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// viewKey is the lookup key for a view name, optionally schema-qualified.
func viewKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
