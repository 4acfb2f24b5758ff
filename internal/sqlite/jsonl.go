package sqlite

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeJSONL writes one JSON object per row, keyed by column name. NULL
// becomes null.
func writeJSONL(path string, header []string, records [][]*string) error {
	return atomicWrite(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		row := make(map[string]*string, len(header))
		for _, rec := range records {
			for i, name := range header {
				row[name] = rec[i]
			}
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("writing record: %w", err)
			}
		}
		return nil
	})
}

// atomicWrite writes path through a temp file in the same directory using
// the fsync and rename pattern, so readers never see a partial file.
func atomicWrite(path string, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dump-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
