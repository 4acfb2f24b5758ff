package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/internal/schema"
	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// DumpFormat is the file format Dump writes tables in.
type DumpFormat string

const (
	DumpCSV     DumpFormat = "csv"
	DumpJSONL   DumpFormat = "jsonl"
	DumpParquet DumpFormat = "parquet"
)

// ManifestFile lists every dumped table.
const ManifestFile = "dumped_tables.csv"

// ParseDumpFormat accepts "csv", "jsonl" or "parquet" in any case.
func ParseDumpFormat(s string) (DumpFormat, error) {
	switch f := DumpFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case DumpCSV, DumpJSONL, DumpParquet:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown dump format %q", types.ErrInvalidConfig, s)
	}
}

// DumpEntry is one dumped table.
type DumpEntry struct {
	Database string `json:"database"`
	Table    string `json:"table"`
	File     string `json:"file"`
	Rows     int    `json:"rows"`
}

// DumpManifest is the result of a Dump run.
type DumpManifest struct {
	ID      string      `json:"id"`
	Format  DumpFormat  `json:"format"`
	Dir     string      `json:"dir"`
	Entries []DumpEntry `json:"entries"`
}

// Dump writes every table of every attached database into dir, one file per
// table named <database>.<table>.<format>, plus a dumped_tables.csv
// manifest. Values are written as text; NULL becomes an empty CSV cell or a
// null JSON or Parquet value.
func (b *Backend) Dump(ctx context.Context, dir string, format DumpFormat) (*DumpManifest, error) {
	db, err := b.DB()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dump directory: %w", err)
	}
	tables, err := b.Tables(ctx)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating dump id: %w", err)
	}
	manifest := &DumpManifest{ID: id.String(), Format: format, Dir: dir}

	for _, t := range tables {
		file := filepath.Join(dir, t.Database+"."+t.Name+"."+string(format))
		header, records, err := readTable(ctx, db, t)
		if err != nil {
			return nil, err
		}
		switch format {
		case DumpParquet:
			err = writeParquet(file, header, records)
		case DumpJSONL:
			err = writeJSONL(file, header, records)
		default:
			err = writeCSV(file, header, records)
		}
		if err != nil {
			return nil, fmt.Errorf("dumping %s.%s: %w", t.Database, t.Name, err)
		}
		manifest.Entries = append(manifest.Entries, DumpEntry{
			Database: t.Database, Table: t.Name, File: file, Rows: len(records),
		})
	}

	if err := writeManifest(filepath.Join(dir, ManifestFile), manifest.Entries); err != nil {
		return nil, err
	}
	b.logger.Info("tables dumped",
		zap.String("dump_id", manifest.ID),
		zap.String("format", string(format)),
		zap.Int("tables", len(manifest.Entries)))
	return manifest, nil
}

func readTable(ctx context.Context, db *sql.DB, t TableInfo) ([]string, [][]*string, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+schema.QualifiedName(t.Database, t.Name))
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s.%s: %w", t.Database, t.Name, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var records [][]*string
	for rows.Next() {
		cells := make([]sql.NullString, len(header))
		dest := make([]any, len(header))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("scanning %s.%s: %w", t.Database, t.Name, err)
		}
		rec := make([]*string, len(header))
		for i, c := range cells {
			if c.Valid {
				v := c.String
				rec[i] = &v
			}
		}
		records = append(records, rec)
	}
	return header, records, rows.Err()
}

func writeCSV(path string, header []string, records [][]*string) error {
	return atomicWrite(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(header); err != nil {
			return err
		}
		row := make([]string, len(header))
		for _, rec := range records {
			for i, v := range rec {
				row[i] = ""
				if v != nil {
					row[i] = *v
				}
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

func writeParquet(path string, header []string, records [][]*string) error {
	pf, err := createLocalFile(path)
	if err != nil {
		return err
	}
	defer pf.Close()

	names := parquetColumnNames(header)
	md := make([]string, len(names))
	for i, name := range names {
		md[i] = "name=" + name + ", type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"
	}
	pw, err := writer.NewCSVWriter(md, pf, 1)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := pw.WriteString(rec); err != nil {
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return err
	}
	return pf.Close()
}

// parquetColumnNames maps column names onto what a parquet-go schema tag can
// carry: letters, digits and underscores. Anything else becomes an
// underscore. Names that collide, ignoring case, get a numeric suffix.
func parquetColumnNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		clean := strings.Map(func(r rune) rune {
			if r == '_' || r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return r
			}
			return '_'
		}, name)
		if clean == "" {
			clean = "column_" + strconv.Itoa(i+1)
		}
		base := clean
		for n := 2; seen[strings.ToLower(clean)]; n++ {
			clean = base + "_" + strconv.Itoa(n)
		}
		seen[strings.ToLower(clean)] = true
		out[i] = clean
	}
	return out
}

func writeManifest(path string, entries []DumpEntry) error {
	err := atomicWrite(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write([]string{"database_name", "table_name", "file", "rows"}); err != nil {
			return err
		}
		for _, e := range entries {
			if err := w.Write([]string{e.Database, e.Table, filepath.Base(e.File), strconv.Itoa(e.Rows)}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
