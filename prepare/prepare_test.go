package prepare

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/frankban/quicktest"

	"github.com/andys/moviesync/config"
	"github.com/andys/moviesync/errs"
)

func writeFile(c *quicktest.C, dir, name, content string) string {
	path := filepath.Join(dir, name)
	c.Assert(os.WriteFile(path, []byte(content), 0o644), quicktest.IsNil)
	return path
}

func readFile(c *quicktest.C, path string) string {
	b, err := os.ReadFile(path)
	c.Assert(err, quicktest.IsNil)
	return string(b)
}

func newLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestConvertGenres(t *testing.T) {
	c := quicktest.New(t)
	dir := c.TempDir()
	in := writeFile(c, dir, "genre.json", `{
		"Drama": {"tt3": "Gamma"},
		"Action": {"tt2": "Beta", "tt1": "Alpha"},
		"Broken": "not a mapping"
	}`)
	out := filepath.Join(dir, "genre.csv")
	log, buf := newLogger()

	n, err := ConvertGenres(in, out, nil, log)
	c.Assert(err, quicktest.IsNil)
	c.Assert(n, quicktest.Equals, 3)
	c.Assert(readFile(c, out), quicktest.Equals,
		"genre,id,name\nAction,tt1,Alpha\nAction,tt2,Beta\nDrama,tt3,Gamma\n")
	c.Assert(buf.String(), quicktest.Matches, `(?s).*genre entry must be a mapping.*genre=Broken.*`)
}

func TestConvertGenresCustomHeader(t *testing.T) {
	c := quicktest.New(t)
	dir := c.TempDir()
	in := writeFile(c, dir, "genre.yaml", "Action:\n  tt1: Alpha\n")
	out := filepath.Join(dir, "genre.csv")
	log, _ := newLogger()

	_, err := ConvertGenres(in, out, []string{"id", "genre"}, log)
	c.Assert(err, quicktest.IsNil)
	c.Assert(readFile(c, out), quicktest.Equals, "id,genre\ntt1,Action\n")
}

func TestConvertGenresMissingFile(t *testing.T) {
	c := quicktest.New(t)
	log, _ := newLogger()
	_, err := ConvertGenres(filepath.Join(c.TempDir(), "nope.json"), "out.csv", nil, log)
	c.Assert(errs.Is(err, errs.NotFound), quicktest.IsTrue)
}

func TestConvertYears(t *testing.T) {
	c := quicktest.New(t)
	dir := c.TempDir()
	in := writeFile(c, dir, "year.json", `{
		"2000": {"movie_ids": "tt1, tt2", "freq": 2},
		"2001": {},
		"2002": {"freq": 1},
		"": {"movie_ids": "tt9", "freq": 1}
	}`)
	out := filepath.Join(dir, "year.csv")
	log, buf := newLogger()

	n, err := ConvertYears(in, out, nil, log)
	c.Assert(err, quicktest.IsNil)
	c.Assert(n, quicktest.Equals, 2)
	c.Assert(readFile(c, out), quicktest.Equals, "year,frequency,id\n2000,2,tt1\n2000,2,tt2\n")
	c.Assert(buf.String(), quicktest.Matches, `(?s).*year entry has no movie_ids.*year=2002.*`)
}

func TestConvertYearsRejectsArray(t *testing.T) {
	c := quicktest.New(t)
	dir := c.TempDir()
	in := writeFile(c, dir, "year.json", `[{"a": 1}, {"b": 2}]`)
	log, _ := newLogger()

	_, err := ConvertYears(in, filepath.Join(dir, "year.csv"), nil, log)
	c.Assert(errs.Is(err, errs.Validation), quicktest.IsTrue)
}

func TestInnerJoinSuffixes(t *testing.T) {
	c := quicktest.New(t)
	left := &table{cols: []string{"id", "name"}, rows: [][]string{{"1", "a"}, {"2", "b"}, {"3", "c"}}}
	right := &table{cols: []string{"name", "id"}, rows: [][]string{{"B", "2"}, {"A", "1"}, {"A2", "1"}}}

	out, err := innerJoin(left, right, "id")
	c.Assert(err, quicktest.IsNil)
	c.Assert(out.cols, quicktest.DeepEquals, []string{"id", "name_x", "name_y"})
	c.Assert(out.rows, quicktest.DeepEquals, [][]string{
		{"1", "a", "A"},
		{"1", "a", "A2"},
		{"2", "b", "B"},
	})

	_, err = innerJoin(left, &table{cols: []string{"other"}}, "id")
	c.Assert(errs.Is(err, errs.Validation), quicktest.IsTrue)
}

func TestTableOperations(t *testing.T) {
	c := quicktest.New(t)
	tbl := &table{
		cols: []string{"a", "b", "c"},
		rows: [][]string{{"1", "2", "3"}, {"4", "", "6"}, {"7", "8", "9"}},
	}
	tbl.dropIncomplete()
	c.Assert(tbl.rows, quicktest.HasLen, 2)

	c.Assert(tbl.drop([]string{"b"}), quicktest.IsNil)
	c.Assert(tbl.cols, quicktest.DeepEquals, []string{"a", "c"})
	c.Assert(tbl.rows, quicktest.DeepEquals, [][]string{{"1", "3"}, {"7", "9"}})
	c.Assert(errs.Is(tbl.drop([]string{"zzz"}), errs.Validation), quicktest.IsTrue)

	tbl.rename(map[string]string{"a": "alpha"})
	tbl.assignKey("id")
	c.Assert(tbl.cols, quicktest.DeepEquals, []string{"alpha", "c", "id"})
	c.Assert(tbl.rows, quicktest.DeepEquals, [][]string{{"1", "3", "1"}, {"7", "9", "2"}})

	tbl.assignKey("c")
	c.Assert(tbl.rows, quicktest.DeepEquals, [][]string{{"1", "1", "1"}, {"7", "2", "2"}})
}

func TestCastValue(t *testing.T) {
	c := quicktest.New(t)
	tests := []struct {
		value, dtype, want string
		fails              bool
	}{
		{value: "2000", dtype: "int", want: "2000"},
		{value: "2000.0", dtype: "int64", want: "2000"},
		{value: "2000.5", dtype: "int", fails: true},
		{value: "abc", dtype: "int", fails: true},
		{value: "1.50", dtype: "float", want: "1.5"},
		{value: "x", dtype: "float", fails: true},
		{value: "keep me", dtype: "str", want: "keep me"},
		{value: "2020-01-02", dtype: "datetime", want: "2020-01-02T00:00:00Z"},
		{value: "2020-01-03 10:00:00", dtype: "datetime", want: "2020-01-03T10:00:00Z"},
		{value: "2020-01-03T10:00:00+02:00", dtype: "datetime", want: "2020-01-03T08:00:00Z"},
		{value: "yesterday", dtype: "datetime", fails: true},
		{value: "1", dtype: "complex", fails: true},
	}
	for _, test := range tests {
		got, err := castValue(test.value, test.dtype)
		if test.fails {
			c.Assert(err, quicktest.IsNotNil, quicktest.Commentf("%s as %s", test.value, test.dtype))
			continue
		}
		c.Assert(err, quicktest.IsNil)
		c.Assert(got, quicktest.Equals, test.want)
	}
}

func combineFixtures(c *quicktest.C, dir string) CombineOptions {
	return CombineOptions{
		YearCSV:     writeFile(c, dir, "year.csv", "year,frequency,id\n2000,2.0,tt1\n2000,2.0,tt2\n2001,,tt3\n"),
		GenreCSV:    writeFile(c, dir, "genre.csv", "genre,id,name\nAction,tt1,Alpha\nDrama,tt2,Beta\nComedy,tt9,Gamma\n"),
		MovieCSV:    writeFile(c, dir, "movies.csv", "\ufeffid,title,link,created_at\ntt1,Alpha,http://a,2020-01-02\ntt2,Beta,http://b,2020-01-03 10:00:00\n"),
		MergedCSV:   filepath.Join(dir, "merged.csv"),
		DropColumns: []string{"title"},
		DtypeMap:    map[string]string{"year": "int", "frequency": "int", "created_at": "datetime"},
		TablePK:     "id",
		RenameCols:  map[string]string{"id": "movie_id", "name": "movie_name"},
	}
}

func TestCombine(t *testing.T) {
	c := quicktest.New(t)
	opts := combineFixtures(c, c.TempDir())

	n, err := Combine(opts)
	c.Assert(err, quicktest.IsNil)
	c.Assert(n, quicktest.Equals, 2)
	c.Assert(readFile(c, opts.MergedCSV), quicktest.Equals,
		"year,frequency,movie_id,genre,movie_name,link,created_at,id\n"+
			"2000,2,tt1,Action,Alpha,http://a,2020-01-02T00:00:00Z,1\n"+
			"2000,2,tt2,Drama,Beta,http://b,2020-01-03T10:00:00Z,2\n")
}

func TestCombineErrors(t *testing.T) {
	c := quicktest.New(t)
	dir := c.TempDir()

	opts := combineFixtures(c, dir)
	opts.MovieCSV = filepath.Join(dir, "missing.csv")
	_, err := Combine(opts)
	c.Assert(errs.Is(err, errs.NotFound), quicktest.IsTrue)

	opts = combineFixtures(c, dir)
	opts.DtypeMap = map[string]string{"genre": "int"}
	_, err = Combine(opts)
	c.Assert(errs.Is(err, errs.Validation), quicktest.IsTrue)
	c.Assert(err, quicktest.ErrorMatches, `.*row 1 column genre: cannot cast "Action" to int`)
}

func TestFolders(t *testing.T) {
	c := quicktest.New(t)
	log, _ := newLogger()
	dir := filepath.Join(c.TempDir(), "nested", "data")

	c.Assert(CreateFolder(dir, log), quicktest.IsNil)
	c.Assert(CreateFolder(dir, log), quicktest.IsNil)
	writeFile(c, dir, "file.csv", "a\n")

	c.Assert(RemoveFolder(dir), quicktest.IsNil)
	_, err := os.Stat(dir)
	c.Assert(os.IsNotExist(err), quicktest.IsTrue)

	c.Assert(errs.Is(RemoveFolder(dir), errs.NotFound), quicktest.IsTrue)
	c.Assert(errs.Is(RemoveFolder("."), errs.Configuration), quicktest.IsTrue)
	c.Assert(errs.Is(RemoveFolder("/"), errs.Configuration), quicktest.IsTrue)
}

func TestRun(t *testing.T) {
	c := quicktest.New(t)
	dir := c.TempDir()
	data := filepath.Join(dir, "data")
	cfg := &config.Config{
		PersistencePath: data,
		MovieCSV:        writeFile(c, dir, "movies.csv", "id,title,link,created_at\ntt1,Alpha,http://a,2020-01-02\n"),
		GenreData: config.GenreData{
			JSON: writeFile(c, dir, "genre.json", `{"Action": {"tt1": "Alpha"}}`),
			CSV:  filepath.Join(data, "genre.csv"),
		},
		YearData: config.YearData{
			JSON: writeFile(c, dir, "year.json", `{"1999": {"movie_ids": "tt1", "freq": 1}}`),
			CSV:  filepath.Join(data, "year.csv"),
		},
		CombineFile: config.CombineFile{
			MergedCSV:   filepath.Join(data, "merged.csv"),
			DropColumns: []string{"title"},
			RenameCols:  map[string]string{"id": "movie_id", "name": "movie_name"},
			TablePK:     "id",
		},
		WorkerCount: 2,
	}
	log, buf := newLogger()

	merged, err := Run(context.Background(), cfg, log)
	c.Assert(err, quicktest.IsNil)
	c.Assert(merged, quicktest.Equals, cfg.CombineFile.MergedCSV)
	c.Assert(readFile(c, merged), quicktest.Equals,
		"year,frequency,movie_id,genre,movie_name,link,created_at,id\n1999,1,tt1,Action,Alpha,http://a,2020-01-02,1\n")
	c.Assert(buf.String(), quicktest.Matches, `(?s).*files combined.*rows=1.*`)
}

func TestRunConfigErrors(t *testing.T) {
	c := quicktest.New(t)
	log, _ := newLogger()

	_, err := Run(context.Background(), &config.Config{}, log)
	c.Assert(errs.Is(err, errs.Configuration), quicktest.IsTrue)
	c.Assert(err, quicktest.ErrorMatches, `.*"movie_csv".*`)

	dir := c.TempDir()
	cfg := &config.Config{
		MovieCSV:    filepath.Join(dir, "movies.csv"),
		GenreData:   config.GenreData{JSON: filepath.Join(dir, "missing.json"), CSV: filepath.Join(dir, "g.csv")},
		YearData:    config.YearData{JSON: filepath.Join(dir, "missing.json"), CSV: filepath.Join(dir, "y.csv")},
		CombineFile: config.CombineFile{MergedCSV: filepath.Join(dir, "m.csv")},
	}
	_, err = Run(context.Background(), cfg, log)
	c.Assert(errs.Is(err, errs.NotFound), quicktest.IsTrue)
}
