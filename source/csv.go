package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
)

const utf8BOM = "\ufeff"

// csvRows maps each data row onto the header row. Empty cells become nil.
func (r *Reader) csvRows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		br := bufio.NewReader(r.file)
		if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
			_, _ = br.Discard(len(utf8BOM))
		}

		cr := csv.NewReader(br)
		cr.FieldsPerRecord = -1
		cr.ReuseRecord = false

		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(Row{Line: 1, Err: fmt.Errorf("failed to read csv header of %s: %w", r.path, err)})
			return
		}

		for {
			fields, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var perr *csv.ParseError
				if errors.As(err, &perr) {
					if !yield(invalidRow(perr.Line, "malformed csv row: %v", perr.Err)) {
						return
					}
					continue
				}
				yield(Row{Err: fmt.Errorf("failed to read %s: %w", r.path, err)})
				return
			}
			line, _ := cr.FieldPos(0)
			if len(fields) > len(header) {
				if !yield(invalidRow(line, "row has %d fields, header has %d", len(fields), len(header))) {
					return
				}
				continue
			}

			rec := make(Record, len(header))
			for i, name := range header {
				if i >= len(fields) || fields[i] == "" {
					rec[name] = nil
					continue
				}
				rec[name] = fields[i]
			}
			if !yield(Row{Line: line, Record: rec}) {
				return
			}
		}
	}
}
