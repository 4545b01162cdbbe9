package prepare

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/andys/moviesync/errs"
)

// table is an in-memory CSV file: ordered columns and string cells.
type table struct {
	cols []string
	rows [][]string
}

func (t *table) index(col string) int {
	for i, c := range t.cols {
		if c == col {
			return i
		}
	}
	return -1
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Errorf(errs.NotFound, "read csv", "no file found at %s", path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if b, err := br.Peek(3); err == nil && string(b) == "\ufeff" {
		_, _ = br.Discard(3)
	}
	r := csv.NewReader(br)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header of %s: %w", path, err)
	}
	t := &table{cols: header}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		t.rows = append(t.rows, row)
	}
}

func writeTable(path string, t *table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.cols); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(t.rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// dropIncomplete removes rows with any empty cell.
func (t *table) dropIncomplete() {
	kept := t.rows[:0]
	for _, row := range t.rows {
		complete := len(row) == len(t.cols)
		for _, cell := range row {
			if cell == "" {
				complete = false
				break
			}
		}
		if complete {
			kept = append(kept, row)
		}
	}
	t.rows = kept
}

// innerJoin joins left and right on key. Left row order is kept; right
// matches follow in right order. Clashing non-key columns get the _x and
// _y suffixes.
func innerJoin(left, right *table, key string) (*table, error) {
	li, ri := left.index(key), right.index(key)
	if li < 0 || ri < 0 {
		return nil, errs.Errorf(errs.Validation, "merge", "join column %q missing", key)
	}

	rightCols := make(map[string]bool, len(right.cols))
	for _, c := range right.cols {
		if c != key {
			rightCols[c] = true
		}
	}
	leftCols := make(map[string]bool, len(left.cols))
	out := &table{}
	for _, c := range left.cols {
		leftCols[c] = true
		if c != key && rightCols[c] {
			c += "_x"
		}
		out.cols = append(out.cols, c)
	}
	for _, c := range right.cols {
		if c == key {
			continue
		}
		if leftCols[c] {
			c += "_y"
		}
		out.cols = append(out.cols, c)
	}

	byKey := make(map[string][][]string)
	for _, row := range right.rows {
		byKey[row[ri]] = append(byKey[row[ri]], row)
	}
	for _, lrow := range left.rows {
		for _, rrow := range byKey[lrow[li]] {
			joined := make([]string, 0, len(out.cols))
			joined = append(joined, lrow...)
			for j, cell := range rrow {
				if j != ri {
					joined = append(joined, cell)
				}
			}
			out.rows = append(out.rows, joined)
		}
	}
	return out, nil
}

func (t *table) drop(cols []string) error {
	for _, col := range cols {
		i := t.index(col)
		if i < 0 {
			return errs.Errorf(errs.Validation, "drop columns", "column %q not found", col)
		}
		t.cols = append(t.cols[:i:i], t.cols[i+1:]...)
		for r, row := range t.rows {
			t.rows[r] = append(row[:i:i], row[i+1:]...)
		}
	}
	return nil
}

func (t *table) rename(names map[string]string) {
	for i, c := range t.cols {
		if to, ok := names[c]; ok {
			t.cols[i] = to
		}
	}
}

// assignKey sets col to 1..n, appending the column if it is new.
func (t *table) assignKey(col string) {
	i := t.index(col)
	if i < 0 {
		t.cols = append(t.cols, col)
		i = len(t.cols) - 1
		for r := range t.rows {
			t.rows[r] = append(t.rows[r], "")
		}
	}
	for r := range t.rows {
		t.rows[r][i] = fmt.Sprint(r + 1)
	}
}
