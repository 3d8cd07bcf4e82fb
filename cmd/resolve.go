package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/formatter"
	"github.com/kyleking/timesheet-sql/internal/nameindex"
)

func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:        "resolve",
		Usage:       "Show which loaded name a project or resource query matches",
		ArgsUsage:   "<project|resource> <name>",
		Description: `Look up the nearest project or resource name in the loaded data, with its similarity score.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 2 {
				return apperrors.New(apperrors.ErrTypeValidation, "resolve needs an entity and a name").
					WithSuggestion("Usage: timesheet-sql resolve resource \"Ramyasree\"")
			}

			entity, err := nameindex.ParseEntity(cmd.Args().First())
			if err != nil {
				return err
			}

			name := strings.Join(cmd.Args().Tail(), " ")

			return runResolve(ctx, output(cmd), entity, name)
		},
	}
}

func runResolve(ctx context.Context, w io.Writer, entity nameindex.Entity, name string) error {
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	e, err := newEngine(ctx, cfg, store, getLoggerFromContext(ctx))
	if err != nil {
		return err
	}

	if !e.loaded {
		return apperrors.NewTableMissingError(cfg.Database.Table)
	}

	m, err := e.resolve(ctx, entity, name)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, formatter.NewFormatter().FormatMatch(entity, m, cfg.Resolver.Threshold))

	return nil
}
