package sqlite

import (
	"os"

	"github.com/xitongsys/parquet-go/source"
)

// localFile is a parquet-go source backed by the local file system.
type localFile struct {
	*os.File
	path string
}

var _ source.ParquetFile = (*localFile)(nil)

func createLocalFile(path string) (*localFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &localFile{File: f, path: path}, nil
}

// Create opens a new file for writing.
func (f *localFile) Create(name string) (source.ParquetFile, error) {
	return createLocalFile(name)
}

// Open opens a file for reading. An empty name reopens this file.
func (f *localFile) Open(name string) (source.ParquetFile, error) {
	if name == "" {
		name = f.path
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &localFile{File: file, path: name}, nil
}
