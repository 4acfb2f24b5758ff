package schema

import (
	"strings"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// Column types used for synthesized columns.
const (
	PrimaryKeyType = "INTEGER PRIMARY KEY"
	ForeignKeyType = "INTEGER"
)

// Column is a name and its declared type, used verbatim in DDL.
type Column struct {
	Name string
	Type string
}

// ForeignKey is a column synthesized for a link.
type ForeignKey struct {
	Column string
	Link   types.Link
	// Constrained is false for cross-database links, which the engine cannot
	// enforce.
	Constrained bool
}

// TableDef is everything needed to create one table.
type TableDef struct {
	Spec *types.TableSpec
	// Columns are the synthesized ID (when added) followed by the declared
	// columns. Foreign key columns are kept apart so they can be demoted.
	Columns       []Column
	ForeignKeys   []ForeignKey
	SynthesizedID bool
}

// Define builds the column list for a table: an ID primary key is prepended
// when none is declared and each link adds a <target>_ID column unless a
// column of that name exists already.
func Define(t *types.TableSpec) TableDef {
	def := TableDef{Spec: t}

	if !t.HasColumn(types.IDColumn) {
		def.Columns = append(def.Columns, Column{Name: types.IDColumn, Type: PrimaryKeyType})
		def.SynthesizedID = true
	}
	for _, c := range t.Columns {
		def.Columns = append(def.Columns, Column{Name: c.Column, Type: strings.TrimSpace(c.Type)})
	}

	taken := make(map[string]bool)
	for _, c := range def.Columns {
		taken[strings.ToLower(c.Name)] = true
	}
	for _, l := range t.Links {
		name := l.ForeignKeyColumn()
		if taken[strings.ToLower(name)] {
			continue
		}
		taken[strings.ToLower(name)] = true
		def.ForeignKeys = append(def.ForeignKeys, ForeignKey{
			Column:      name,
			Link:        l,
			Constrained: !l.CrossDatabase,
		})
	}
	return def
}

// HasConstraints reports whether any synthesized foreign key carries a
// REFERENCES clause.
func (d TableDef) HasConstraints() bool {
	for _, fk := range d.ForeignKeys {
		if fk.Constrained {
			return true
		}
	}
	return false
}

// References returns the tables, in this table's database, that the
// constrained foreign keys point at. A self reference is left out.
func (d TableDef) References() []string {
	var out []string
	for _, fk := range d.ForeignKeys {
		if fk.Constrained && !strings.EqualFold(fk.Link.Table, d.Spec.Table) {
			out = append(out, fk.Link.Table)
		}
	}
	return out
}

// ColumnNames lists every column the table will have, foreign keys last.
func (d TableDef) ColumnNames() []string {
	out := make([]string, 0, len(d.Columns)+len(d.ForeignKeys))
	for _, c := range d.Columns {
		out = append(out, c.Name)
	}
	for _, fk := range d.ForeignKeys {
		out = append(out, fk.Column)
	}
	return out
}

// CreateSQL renders CREATE TABLE IF NOT EXISTS for the given schema. With
// constrained false every foreign key is a plain INTEGER column.
func (d TableDef) CreateSQL(schemaName string, constrained bool) string {
	parts := make([]string, 0, len(d.Columns)+len(d.ForeignKeys))
	for _, c := range d.Columns {
		parts = append(parts, QuoteIdent(c.Name)+" "+c.Type)
	}
	for _, fk := range d.ForeignKeys {
		col := QuoteIdent(fk.Column) + " " + ForeignKeyType
		if constrained && fk.Constrained {
			col += " REFERENCES " + QuoteIdent(fk.Link.Table) + "(" + QuoteIdent(types.IDColumn) + ")"
		}
		parts = append(parts, col)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(QualifiedName(schemaName, d.Spec.Table))
	b.WriteString(" (")
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(")")
	return b.String()
}

// QuoteIdent double-quotes an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName renders "schema"."name".
func QualifiedName(schemaName, name string) string {
	return QuoteIdent(schemaName) + "." + QuoteIdent(name)
}
