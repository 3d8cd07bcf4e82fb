package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/formatter"
	"github.com/kyleking/timesheet-sql/internal/query"
	"github.com/kyleking/timesheet-sql/internal/storage"
)

func TranslateCommand() *cli.Command {
	return &cli.Command{
		Name:      "translate",
		Usage:     "Print the SQL for a question without running it",
		ArgsUsage: "<question>",
		Description: `Translate a plain-English question into a single SELECT over the timesheet table.

Examples:
  timesheet-sql translate "how many days did HY_RR_01 work"
  timesheet-sql translate --explain "total hours of Ramyashree in November 2025"`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "explain", Usage: "show how the question was read"},
			&cli.BoolFlag{Name: "json", Usage: "print the translation as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			question, err := questionArg(cmd)
			if err != nil {
				return err
			}

			return runTranslate(ctx, output(cmd), question, cmd.Bool("explain"), cmd.Bool("json"))
		},
	}
}

func AskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Translate a question and run it",
		ArgsUsage: "<question>",
		Description: `Translate a plain-English question into SQL, run it against the loaded
timesheet and print the rows.

Examples:
  timesheet-sql ask "list projects of Anika Verma"
  timesheet-sql ask --format json "sum of posted hours of Project A"`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "output format: table, json, csv, markdown"},
			&cli.BoolFlag{Name: "show-sql", Usage: "print the SQL before the rows"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			question, err := questionArg(cmd)
			if err != nil {
				return err
			}

			format, err := formatter.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}

			return runAsk(ctx, output(cmd), question, format, cmd.Bool("show-sql"))
		},
	}
}

func questionArg(cmd *cli.Command) (string, error) {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return "", apperrors.New(apperrors.ErrTypeValidation, "a question is required").
			WithSuggestion(fmt.Sprintf("Usage: timesheet-sql %s \"how many days did HY_RR_01 work\"", cmd.Name))
	}

	return question, nil
}

func runTranslate(ctx context.Context, w io.Writer, question string, explain, asJSON bool) error {
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

	tr, err := e.translate(ctx, question)
	if err != nil {
		return err
	}

	f := formatter.NewFormatter()

	if asJSON {
		out, err := f.FormatTranslationJSON(tr)
		if err != nil {
			return err
		}

		fmt.Fprintln(w, out)

		return nil
	}

	fmt.Fprintln(w, f.FormatTranslation(tr, explain))

	return nil
}

type askOutput struct {
	*query.Translation
	Result storage.Result `json:"result"`
}

func runAsk(ctx context.Context, w io.Writer, question string, format formatter.OutputFormat, showSQL bool) error {
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}

	logger := getLoggerFromContext(ctx)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	e, err := newEngine(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	if !e.loaded {
		return apperrors.NewTableMissingError(cfg.Database.Table)
	}

	tr, err := e.translate(ctx, question)
	if err != nil {
		return err
	}

	result := store.Execute(ctx, tr.SQL)
	if !result.Success {
		logger.WithField("request_id", tr.RequestID).Errorf("Query failed: %s", result.Error)
	}

	f := formatter.NewFormatter()

	if format == formatter.FormatJSON {
		out, err := f.RenderJSON(askOutput{Translation: tr, Result: result})
		if err != nil {
			return err
		}

		fmt.Fprintln(w, out)

		return queryError(result)
	}

	if showSQL {
		fmt.Fprintf(w, "%s\n\n", tr.SQL)
	}

	if err := queryError(result); err != nil {
		return err
	}

	out, err := f.FormatResult(result, format)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, out)

	return nil
}

func queryError(result storage.Result) error {
	if result.Success {
		return nil
	}

	return apperrors.Newf(apperrors.ErrTypeDatabase, "query failed: %s", result.Error).
		WithSuggestion("Run 'timesheet-sql translate --explain' with the same question to see how it was read")
}
