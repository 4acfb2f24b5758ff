// Package lists reads the three definition files a bootstrap starts from:
// db_list.csv (pipe separated), def_tables.csv (comma separated) and
// views.csv (pipe separated). Each is read by header name into typed records.
package lists

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// Definition file names inside the definitions directory.
const (
	DatabaseListFile = "db_list.csv"
	TablesFile       = "def_tables.csv"
	ViewsFile        = "views.csv"
)

// Loader reads definition files. Cells with surrounding whitespace are
// trimmed and reported once per file so the source can be fixed.
type Loader struct {
	logger *zap.Logger
}

// NewLoader returns a Loader that logs through logger.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Definitions are the parsed contents of a definitions directory.
type Definitions struct {
	Databases types.DatabaseList
	Columns   []types.ColumnSpec
	Views     []types.ViewSpec
}

// LoadDir reads all three files from dir. db_list.csv and def_tables.csv are
// required; a missing views.csv means no views.
func (l *Loader) LoadDir(dir string) (*Definitions, error) {
	dbs, err := l.LoadDatabaseList(filepath.Join(dir, DatabaseListFile))
	if err != nil {
		return nil, err
	}
	cols, err := l.LoadColumns(filepath.Join(dir, TablesFile))
	if err != nil {
		return nil, err
	}
	views, err := l.LoadViews(filepath.Join(dir, ViewsFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return &Definitions{Databases: dbs, Columns: cols, Views: views}, nil
}

// LoadDatabaseList reads and validates db_list.csv.
func (l *Loader) LoadDatabaseList(path string) (types.DatabaseList, error) {
	recs, err := l.readFile(path, Layout{Comma: '|', Required: []string{"PATH", "DB_NAME", "PURPOSE"}})
	if err != nil {
		return nil, err
	}
	list := make(types.DatabaseList, 0, len(recs))
	for i, r := range recs {
		p, err := types.ParsePurpose(r["PURPOSE"])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(path), i+1, err)
		}
		list = append(list, types.DatabaseSpec{Path: r["PATH"], Name: r["DB_NAME"], Purpose: p})
	}
	if err := list.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return list, nil
}

// LoadColumns reads def_tables.csv. LINKS_TO is optional and may hold a
// comma separated list of targets, quoted or not when it is the last column.
func (l *Loader) LoadColumns(path string) ([]types.ColumnSpec, error) {
	recs, err := l.readFile(path, Layout{
		Comma:    ',',
		Required: []string{"DBNAME", "TABLENAME", "VARNAME", "TYPE"},
		Optional: []string{"LINKS_TO"},
		Rest:     "LINKS_TO",
	})
	if err != nil {
		return nil, err
	}
	cols := make([]types.ColumnSpec, 0, len(recs))
	for _, r := range recs {
		cols = append(cols, types.ColumnSpec{
			Database: r["DBNAME"],
			Table:    r["TABLENAME"],
			Column:   r["VARNAME"],
			Type:     r["TYPE"],
			LinksTo:  splitLinks(r["LINKS_TO"]),
		})
	}
	return cols, nil
}

// LoadViews reads views.csv. A missing file returns an error wrapping
// os.ErrNotExist.
func (l *Loader) LoadViews(path string) ([]types.ViewSpec, error) {
	recs, err := l.readFile(path, Layout{Comma: '|', Required: []string{"VIEW_NAME", "SQL"}, Rest: "SQL"})
	if err != nil {
		return nil, err
	}
	views := make([]types.ViewSpec, 0, len(recs))
	for i, r := range recs {
		if r["VIEW_NAME"] == "" || r["SQL"] == "" {
			return nil, fmt.Errorf("%w: %s row %d needs VIEW_NAME and SQL", types.ErrMissingField, filepath.Base(path), i+1)
		}
		views = append(views, types.ViewSpec{Name: r["VIEW_NAME"], SQL: strings.TrimSuffix(r["SQL"], ";")})
	}
	return views, nil
}

func splitLinks(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readFile opens path and decodes it with ReadRecords.
func (l *Loader) readFile(path string, layout Layout) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	recs, cleaned, err := ReadRecords(f, layout)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if cleaned > 0 {
		l.logger.Warn("definition file had surrounding whitespace, please fix it",
			zap.String("file", path),
			zap.Int("cells", cleaned))
	}
	return recs, nil
}

// Layout describes the columns of a definition file.
type Layout struct {
	Comma    rune
	Required []string
	Optional []string
	// Rest names a column that takes every surplus field of a row when it is
	// the last header column. The fields are joined back with Comma.
	Rest string
}

// ReadRecords decodes a delimited file with a header row into one map per
// row keyed by upper-case header. Only required and optional headers are
// kept; a missing required header is an error. Blank lines are skipped and
// every cell is trimmed; cleaned counts the cells that changed. A row with
// more non-empty fields than the header is malformed unless layout.Rest
// absorbs them.
func ReadRecords(r io.Reader, layout Layout) (recs []map[string]string, cleaned int, err error) {
	cr := csv.NewReader(r)
	cr.Comma = layout.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, 0, fmt.Errorf("%w: empty file", types.ErrMissingField)
	}
	if err != nil {
		return nil, 0, err
	}

	index := make(map[string]int)
	for i, h := range header {
		h = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[h] = i
	}
	for _, name := range layout.Required {
		if _, ok := index[name]; !ok {
			return nil, 0, fmt.Errorf("%w: column %s", types.ErrMissingField, name)
		}
	}
	wanted := append(append([]string{}, layout.Required...), layout.Optional...)

	rest := -1
	if i, ok := index[layout.Rest]; ok && layout.Rest != "" && i == len(header)-1 {
		rest = i
	}

	for n := 1; ; n++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, cleaned, err
		}
		if blank(row) {
			continue
		}
		if len(row) > len(header) {
			if rest >= 0 {
				row = append(row[:rest:rest], strings.Join(row[rest:], string(layout.Comma)))
			} else if !blank(row[len(header):]) {
				return nil, cleaned, fmt.Errorf("%w: row %d has %d fields, header has %d",
					types.ErrMalformedRow, n, len(row), len(header))
			}
		}
		rec := make(map[string]string, len(wanted))
		for _, name := range wanted {
			i, ok := index[name]
			if !ok || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v != row[i] {
				cleaned++
			}
			rec[name] = v
		}
		recs = append(recs, rec)
	}
	return recs, cleaned, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
