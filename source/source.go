// Package source reads row records from delimited and document files.
//
// A Reader yields its rows lazily and in file order. Rows are read from the
// underlying file exactly once; to restart, Open the path again.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/andys/moviesync/errs"
)

// Record is one row of field name to scalar value data.
type Record map[string]any

// Row is a single item produced by a Reader. Exactly one of Record and Err
// is set. An Err of kind errs.Validation is scoped to that row and the
// sequence continues; any other Err ends the sequence.
type Row struct {
	Line   int
	Record Record
	Err    error
}

// Format identifies how a file is decoded.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatOf infers the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", path)
	}
}

// Reader produces the rows of one opened file.
type Reader struct {
	path   string
	format Format
	file   *os.File
}

// Open opens path for reading. It fails with errs.NotFound when the path
// does not exist.
func Open(path string) (*Reader, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Errorf(errs.NotFound, "open source", "no file found at %s", path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Reader{path: path, format: format, file: f}, nil
}

// Path returns the file the reader was opened on.
func (r *Reader) Path() string { return r.path }

// Rows returns the file's rows in order.
func (r *Reader) Rows() iter.Seq[Row] {
	switch r.format {
	case CSV:
		return r.csvRows()
	case JSON:
		return r.jsonRows()
	default:
		return r.yamlRows()
	}
}

// Close releases the file handle.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Records is a convenience returning every valid record in path, failing
// on the first error of any kind.
func Records(path string) ([]Record, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []Record
	for row := range r.Rows() {
		if row.Err != nil {
			return nil, row.Err
		}
		out = append(out, row.Record)
	}
	return out, nil
}

func invalidRow(line int, format string, args ...any) Row {
	return Row{Line: line, Err: errs.Errorf(errs.Validation, fmt.Sprintf("row %d", line), format, args...)}
}
