package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/timesheet-sql/internal/formatter"
	"github.com/kyleking/timesheet-sql/internal/schema"
)

func ColumnsCommand() *cli.Command {
	return &cli.Command{
		Name:        "columns",
		Usage:       "List the table columns and the words that refer to them",
		Description: `Show the columns of the loaded table (or the standard timesheet columns when nothing is loaded) together with the phrases a question can use for each.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runColumns(ctx, output(cmd))
		},
	}
}

func runColumns(ctx context.Context, w io.Writer) error {
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog := schema.Timesheet()

	exists, err := store.TableExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		if catalog, err = store.Catalog(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, formatter.NewFormatter().FormatColumns(catalog, schema.TimesheetKeywords()))

	return nil
}
