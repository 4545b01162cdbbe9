package prepare

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alitto/pond/v2"

	"github.com/andys/moviesync/config"
	"github.com/andys/moviesync/errs"
)

// Run converts the genre and year files concurrently, then merges them with
// the movie file. It returns the merged CSV path.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) (string, error) {
	if err := validate(cfg); err != nil {
		return "", err
	}
	if cfg.PersistencePath != "" {
		if err := CreateFolder(cfg.PersistencePath, log); err != nil {
			return "", err
		}
	}

	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 2
	}
	pool := pond.NewPool(workers, pond.WithContext(ctx))
	defer pool.StopAndWait()

	group := pool.NewGroup()
	group.SubmitErr(func() error {
		n, err := ConvertGenres(cfg.GenreData.JSON, cfg.GenreData.CSV, cfg.GenreData.Header, log)
		if err != nil {
			return fmt.Errorf("failed to convert genres: %w", err)
		}
		log.Info("genres converted", "file", cfg.GenreData.CSV, "rows", n)
		return nil
	})
	group.SubmitErr(func() error {
		n, err := ConvertYears(cfg.YearData.JSON, cfg.YearData.CSV, cfg.YearData.Header, log)
		if err != nil {
			return fmt.Errorf("failed to convert years: %w", err)
		}
		log.Info("years converted", "file", cfg.YearData.CSV, "rows", n)
		return nil
	})
	if err := group.Wait(); err != nil {
		return "", err
	}

	cf := cfg.CombineFile
	n, err := Combine(CombineOptions{
		MovieCSV:    cfg.MovieCSV,
		GenreCSV:    cfg.GenreData.CSV,
		YearCSV:     cfg.YearData.CSV,
		MergedCSV:   cf.MergedCSV,
		DropColumns: cf.DropColumns,
		DtypeMap:    cf.DtypeMap,
		TablePK:     cf.TablePK,
		RenameCols:  cf.RenameCols,
	})
	if err != nil {
		return "", fmt.Errorf("failed to combine files: %w", err)
	}
	log.Info("files combined", "file", cf.MergedCSV, "rows", n)
	return cf.MergedCSV, nil
}

func validate(cfg *config.Config) error {
	required := []struct{ key, val string }{
		{"movie_csv", cfg.MovieCSV},
		{"genre_data.genre_json", cfg.GenreData.JSON},
		{"genre_data.genre_csv", cfg.GenreData.CSV},
		{"year_data.year_json", cfg.YearData.JSON},
		{"year_data.year_csv", cfg.YearData.CSV},
		{"combine_file.merged_csv", cfg.CombineFile.MergedCSV},
	}
	for _, r := range required {
		if r.val == "" {
			return errs.Errorf(errs.Configuration, "prepare", "a %q value must be included in config file", r.key)
		}
	}
	return nil
}
