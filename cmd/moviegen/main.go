package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/andys/moviesync/fixtures"
)

type options struct {
	out     string
	workDir string
	config  string
	count   int
	seed    uint64
}

func main() {
	var opts options

	app := &cli.App{
		Name:  "moviegen",
		Usage: "Generate synthetic movie, genre and year input files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "Directory for the generated raw files",
				Value:       "data/raw",
				Destination: &opts.out,
			},
			&cli.StringFlag{
				Name:        "work-dir",
				Usage:       "Directory the generated config points the intermediate files at",
				Value:       "data/work",
				Destination: &opts.workDir,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Also write a matching config file to this path",
				Destination: &opts.config,
			},
			&cli.IntFlag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "Number of movies",
				Value:       100,
				Destination: &opts.count,
			},
			&cli.Uint64Flag{
				Name:        "seed",
				Usage:       "Random seed, the same seed writes the same files",
				Value:       1,
				Destination: &opts.seed,
			},
		},
		Action: func(c *cli.Context) error {
			files, err := fixtures.Generate(opts.out, opts.count, opts.seed)
			if err != nil {
				return fmt.Errorf("failed to generate files: %w", err)
			}
			fmt.Printf("Wrote %d movies to %s\n", opts.count, filepath.Dir(files.Movies))

			if opts.config == "" {
				return nil
			}
			if err := fixtures.WriteConfig(opts.config, fixtures.Config(files, opts.workDir)); err != nil {
				return err
			}
			fmt.Printf("Wrote config to %s\n", opts.config)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
