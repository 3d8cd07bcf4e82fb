package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/timesheet-sql/internal/cache"
	"github.com/kyleking/timesheet-sql/internal/embedding"
	"github.com/kyleking/timesheet-sql/internal/formatter"
	"github.com/kyleking/timesheet-sql/internal/storage"
)

func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:        "stats",
		Usage:       "Display database statistics",
		Description: `Show the loaded row and column counts, database size, recent CSV loads and, when enabled, the embedding cache.`,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "history", Value: 5, Usage: "number of recent loads to show"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			fileCache, err := embedding.OpenCache(cfg)
			if err != nil {
				return err
			}

			return runStatsWithStorage(ctx, output(cmd), store, fileCache, int(cmd.Int("history")))
		},
	}
}

// runStatsWithStorage prints database statistics; fileCache may be nil
func runStatsWithStorage(ctx context.Context, w io.Writer, store storage.Store, fileCache *cache.FileCache, history int) error {
	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	loads, err := store.LoadHistory(ctx, history)
	if err != nil {
		return fmt.Errorf("failed to get load history: %w", err)
	}

	f := formatter.NewFormatter()
	fmt.Fprintln(w, f.FormatStats(stats, loads))

	if fileCache == nil {
		return nil
	}

	cacheStats, err := fileCache.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache statistics: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, f.FormatCacheStats(fileCache.Directory(), cacheStats))

	return nil
}
