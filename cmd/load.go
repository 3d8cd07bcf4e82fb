package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/timesheet-sql/internal/config"
	"github.com/kyleking/timesheet-sql/internal/embedding"
	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/logging"
	"github.com/kyleking/timesheet-sql/internal/nameindex"
)

func LoadCommand() *cli.Command {
	return &cli.Command{
		Name:        "load",
		Usage:       "Load a timesheet CSV into the database",
		ArgsUsage:   "<file.csv>",
		Description: `Replace the timesheet table with the contents of a CSV export and rebuild the project and resource name indexes.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return apperrors.New(apperrors.ErrTypeValidation, "load takes exactly one CSV path").
					WithSuggestion("Usage: timesheet-sql load <file.csv>")
			}

			return runLoad(ctx, output(cmd), cmd.Args().First())
		},
	}
}

func runLoad(ctx context.Context, w io.Writer, path string) error {
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}

	logger := getLoggerFromContext(ctx)

	if err := cfg.EnsureDirectories(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTypeFileSystem, "failed to prepare data directories")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " Loading " + path
	s.Start()

	load, err := store.LoadCSV(ctx, path)
	if err != nil {
		s.Stop()
		return err
	}

	logger.WithFields(map[string]any{
		"load_id": load.ID,
		"rows":    load.Rows,
		"source":  load.Source,
	}).Info("Loaded CSV")

	s.Lock()
	s.Suffix = " Indexing names"
	s.Unlock()

	if err := pruneCache(ctx, cfg, logger); err != nil {
		s.Stop()
		return err
	}

	e, err := newEngine(ctx, cfg, store, logger)

	s.Stop()

	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Loaded %d rows into %s from %s (%s)\n",
		load.Rows, load.Table, load.Source, load.Duration.Round(time.Millisecond))

	set := e.names.Load()
	for _, entity := range []nameindex.Entity{nameindex.EntityProject, nameindex.EntityResource} {
		if ix, ok := set.Index(entity); ok {
			fmt.Fprintf(w, "Indexed %d %s names\n", ix.Len(), entity)
		}
	}

	return nil
}

// pruneCache drops expired embedding cache entries before names are reindexed
func pruneCache(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	fileCache, err := embedding.OpenCache(cfg)
	if err != nil || fileCache == nil {
		return err
	}

	removed, err := fileCache.Cleanup(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTypeFileSystem, "failed to prune embedding cache")
	}

	logger.Debugf("Removed %d expired embedding cache entries", removed)

	return nil
}
