// Package prepare reshapes the raw genre, year and movie files into the
// single merged CSV the loader consumes.
package prepare

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/andys/moviesync/errs"
	"github.com/andys/moviesync/source"
)

var (
	defaultGenreHeader = []string{"genre", "id", "name"}
	defaultYearHeader  = []string{"year", "frequency", "id"}
)

// ConvertGenres turns {genre: {movie_id: name}} into rows of genre, id and
// name. Genres whose value is not a mapping are skipped with a warning.
func ConvertGenres(in, out string, header []string, log *slog.Logger) (int, error) {
	doc, err := readDocument(in)
	if err != nil {
		return 0, err
	}
	t := &table{cols: orHeader(header, defaultGenreHeader)}
	for _, genre := range sortedKeys(doc) {
		movies, ok := doc[genre].(map[string]any)
		if !ok {
			log.Warn("genre entry must be a mapping", "genre", genre, "value", doc[genre])
			continue
		}
		for _, id := range sortedKeys(movies) {
			t.rows = append(t.rows, t.project(map[string]string{
				"genre": genre,
				"id":    id,
				"name":  fmt.Sprint(movies[id]),
			}))
		}
	}
	return len(t.rows), writeTable(out, t)
}

// ConvertYears turns {year: {movie_ids: "a,b", freq: n}} into rows of year,
// frequency and id. Empty years are ignored; entries without movie_ids are
// skipped with a warning.
func ConvertYears(in, out string, header []string, log *slog.Logger) (int, error) {
	doc, err := readDocument(in)
	if err != nil {
		return 0, err
	}
	t := &table{cols: orHeader(header, defaultYearHeader)}
	for _, year := range sortedKeys(doc) {
		info, ok := doc[year].(map[string]any)
		if year == "" || !ok || len(info) == 0 {
			continue
		}
		ids, _ := info["movie_ids"].(string)
		if ids == "" {
			log.Warn("year entry has no movie_ids", "year", year)
			continue
		}
		freq := ""
		if v, ok := info["freq"]; ok && v != nil {
			freq = fmt.Sprint(v)
		}
		for _, id := range strings.Split(ids, ",") {
			t.rows = append(t.rows, t.project(map[string]string{
				"year":      year,
				"frequency": freq,
				"id":        strings.TrimSpace(id),
			}))
		}
	}
	return len(t.rows), writeTable(out, t)
}

func readDocument(path string) (source.Record, error) {
	recs, err := source.Records(path)
	if err != nil {
		return nil, err
	}
	if len(recs) != 1 {
		return nil, errs.Errorf(errs.Validation, "read document", "%s must hold a single mapping", path)
	}
	return recs[0], nil
}

func (t *table) project(values map[string]string) []string {
	row := make([]string, len(t.cols))
	for i, c := range t.cols {
		row[i] = values[c]
	}
	return row
}

func orHeader(h, def []string) []string {
	if len(h) == 0 {
		return def
	}
	return h
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
