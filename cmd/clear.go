package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/timesheet-sql/internal/cache"
	"github.com/kyleking/timesheet-sql/internal/embedding"
	"github.com/kyleking/timesheet-sql/internal/storage"
)

func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Drop the loaded timesheet data",
		Description: `Drop the timesheet table and empty the embedding cache. With --history the
load history is reset as well. This action requires confirmation.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "skip the confirmation prompt"},
			&cli.BoolFlag{Name: "history", Usage: "also reset the load history"},
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

			var in io.Reader = os.Stdin
			if r := cmd.Root().Reader; r != nil {
				in = r
			}

			return runClearWithStorage(ctx, output(cmd), in, store, fileCache, clearOptions{
				force:   cmd.Bool("force"),
				history: cmd.Bool("history"),
			})
		},
	}
}

type clearOptions struct {
	force   bool
	history bool
}

// runClearWithStorage drops the table, empties fileCache (which may be nil) and
// optionally resets the load history
func runClearWithStorage(
	ctx context.Context,
	w io.Writer,
	in io.Reader,
	store storage.Store,
	fileCache *cache.FileCache,
	opts clearOptions,
) error {
	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	var cached int64

	if fileCache != nil {
		cacheStats, err := fileCache.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get cache statistics: %w", err)
		}

		cached = cacheStats.TotalEntries
	}

	var plan []string

	if stats.TableExists {
		plan = append(plan, fmt.Sprintf("table %s (%d rows)", stats.Table, stats.Rows))
	}

	if cached > 0 {
		plan = append(plan, fmt.Sprintf("%d cached embeddings", cached))
	}

	if opts.history && stats.Loads > 0 {
		plan = append(plan, fmt.Sprintf("%d load history records", stats.Loads))
	}

	if len(plan) == 0 {
		fmt.Fprintln(w, "Nothing to clear.")
		return nil
	}

	fmt.Fprintln(w, "This will delete:")

	for _, item := range plan {
		fmt.Fprintf(w, "  - %s\n", item)
	}

	if !opts.force {
		fmt.Fprint(w, "\nType 'yes' to confirm: ")

		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintln(w, "Operation cancelled.")
			return nil
		}
	}

	if _, err := store.DropTable(ctx); err != nil {
		return err
	}

	if fileCache != nil {
		if err := fileCache.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear embedding cache: %w", err)
		}
	}

	if opts.history {
		if err := store.ResetHistory(ctx); err != nil {
			return err
		}
	}

	getLoggerFromContext(ctx).Infof("Cleared table %s and %d cached embeddings", stats.Table, cached)

	fmt.Fprintln(w, "Cleared.")

	return nil
}
