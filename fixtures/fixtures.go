// Package fixtures generates synthetic raw input files: a movie CSV plus the
// genre and year JSON documents, in the shapes the prepare step consumes.
package fixtures

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/brianvoe/gofakeit/v7"
	"gopkg.in/yaml.v3"

	"github.com/andys/moviesync/config"
)

// Files are the paths written by Generate.
type Files struct {
	Movies string
	Genres string
	Years  string
}

type movie struct {
	id        string
	title     string
	link      string
	createdAt time.Time
	genre     string
	year      int
}

var (
	createdFrom = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	createdTo   = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Generate writes n movies into dir. The same seed yields the same files.
func Generate(dir string, n int, seed uint64) (Files, error) {
	if n <= 0 {
		return Files{}, fmt.Errorf("movie count must be positive, got %d", n)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	movies := fake(n, seed)
	files := Files{
		Movies: filepath.Join(dir, "movies.csv"),
		Genres: filepath.Join(dir, "genre.json"),
		Years:  filepath.Join(dir, "year.json"),
	}

	pool := pond.NewPool(3)
	defer pool.StopAndWait()
	group := pool.NewGroup()
	group.SubmitErr(func() error { return writeMovies(files.Movies, movies) })
	group.SubmitErr(func() error { return writeJSON(files.Genres, genres(movies)) })
	group.SubmitErr(func() error { return writeJSON(files.Years, years(movies)) })
	if err := group.Wait(); err != nil {
		return Files{}, err
	}
	return files, nil
}

// fake builds the movies up front so concurrent writers share no faker state.
func fake(n int, seed uint64) []movie {
	faker := gofakeit.New(seed)
	seen := make(map[string]bool, n)
	movies := make([]movie, 0, n)
	for len(movies) < n {
		id := faker.Numerify("tt#######")
		if seen[id] {
			continue
		}
		seen[id] = true
		movies = append(movies, movie{
			id:        id,
			title:     faker.MovieName(),
			link:      faker.URL(),
			createdAt: faker.DateRange(createdFrom, createdTo).UTC(),
			genre:     faker.MovieGenre(),
			year:      faker.Number(1950, 2024),
		})
	}
	return movies
}

func writeMovies(path string, movies []movie) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	rows := [][]string{{"id", "title", "link", "created_at"}}
	for _, m := range movies {
		rows = append(rows, []string{m.id, m.title, m.link, m.createdAt.Format(time.DateTime)})
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// genres is {genre: {movie_id: title}}.
func genres(movies []movie) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, m := range movies {
		if out[m.genre] == nil {
			out[m.genre] = make(map[string]string)
		}
		out[m.genre][m.id] = m.title
	}
	return out
}

type yearEntry struct {
	MovieIDs string `json:"movie_ids"`
	Freq     int    `json:"freq"`
}

// years is {year: {movie_ids: "a,b", freq: n}}.
func years(movies []movie) map[string]yearEntry {
	ids := make(map[string][]string)
	for _, m := range movies {
		y := strconv.Itoa(m.year)
		ids[y] = append(ids[y], m.id)
	}
	out := make(map[string]yearEntry, len(ids))
	for y, list := range ids {
		sort.Strings(list)
		out[y] = yearEntry{MovieIDs: strings.Join(list, ","), Freq: len(list)}
	}
	return out
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Config returns a pipeline configuration reading files and writing the
// intermediate CSVs into workDir.
func Config(files Files, workDir string) *config.Config {
	return &config.Config{
		PersistencePath:     workDir,
		BatchSize:           100,
		DeleteConsumedFiles: true,
		UniqueKeys:          []string{"movie_id", "genre"},
		MovieCSV:            files.Movies,
		GenreData: config.GenreData{
			JSON:   files.Genres,
			CSV:    filepath.Join(workDir, "genre.csv"),
			Header: []string{"genre", "id", "name"},
		},
		YearData: config.YearData{
			JSON:   files.Years,
			CSV:    filepath.Join(workDir, "year.csv"),
			Header: []string{"year", "frequency", "id"},
		},
		CombineFile: config.CombineFile{
			MergedCSV:   filepath.Join(workDir, "merged.csv"),
			DropColumns: []string{"title"},
			DtypeMap:    map[string]string{"year": "int", "frequency": "int", "created_at": "datetime"},
			TablePK:     "id",
			RenameCols:  map[string]string{"id": "movie_id", "name": "movie_name"},
		},
	}
}

// WriteConfig writes cfg as YAML to path.
func WriteConfig(path string, cfg *config.Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
