package prepare

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andys/moviesync/errs"
)

// CombineOptions describe the merge of the converted files.
type CombineOptions struct {
	MovieCSV    string
	GenreCSV    string
	YearCSV     string
	MergedCSV   string
	DropColumns []string
	DtypeMap    map[string]string
	TablePK     string
	RenameCols  map[string]string
}

// Combine joins year, genre and movie rows on id and writes the merged CSV.
// Incomplete rows are dropped before the join. Columns are then dropped,
// cast, renamed, and the primary key column is numbered from 1.
func Combine(opts CombineOptions) (int, error) {
	var tables []*table
	for _, path := range []string{opts.YearCSV, opts.GenreCSV, opts.MovieCSV} {
		t, err := readTable(path)
		if err != nil {
			return 0, err
		}
		t.dropIncomplete()
		tables = append(tables, t)
	}

	merged, err := innerJoin(tables[0], tables[1], "id")
	if err != nil {
		return 0, err
	}
	if merged, err = innerJoin(merged, tables[2], "id"); err != nil {
		return 0, err
	}
	if err := merged.drop(opts.DropColumns); err != nil {
		return 0, err
	}
	if err := merged.cast(opts.DtypeMap); err != nil {
		return 0, err
	}
	merged.rename(opts.RenameCols)
	if opts.TablePK != "" {
		merged.assignKey(opts.TablePK)
	}
	return len(merged.rows), writeTable(opts.MergedCSV, merged)
}

func (t *table) cast(dtypes map[string]string) error {
	for _, col := range sortedKeys(dtypes) {
		i := t.index(col)
		if i < 0 {
			return errs.Errorf(errs.Validation, "cast", "column %q not found", col)
		}
		for r, row := range t.rows {
			v, err := castValue(row[i], dtypes[col])
			if err != nil {
				return errs.Errorf(errs.Validation, "cast", "row %d column %s: %v", r+1, col, err)
			}
			row[i] = v
		}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func castValue(v, dtype string) (string, error) {
	switch strings.ToLower(dtype) {
	case "int", "int32", "int64":
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f != float64(int64(f)) {
			return "", fmt.Errorf("cannot cast %q to int", v)
		}
		return strconv.FormatInt(int64(f), 10), nil
	case "float", "float32", "float64":
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "", fmt.Errorf("cannot cast %q to float", v)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case "str", "string", "object":
		return v, nil
	case "datetime", "datetime64", "datetime64[ns]":
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC().Format(time.RFC3339), nil
			}
		}
		return "", fmt.Errorf("cannot cast %q to datetime", v)
	default:
		return "", fmt.Errorf("unsupported dtype %q", dtype)
	}
}
