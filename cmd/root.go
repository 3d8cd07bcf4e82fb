package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/timesheet-sql/internal/config"
	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/logging"
)

// NewApp builds the command tree
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "timesheet-sql",
		Usage: "Ask questions about a timesheet export in plain English",
		Description: `timesheet-sql loads a timesheet CSV into a local DuckDB database and
translates questions such as "total hours of Ramyashree in 2025-11" into SQL.
Project and resource names are matched against the loaded data, so small
spelling differences still find the right rows.`,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "path to the DuckDB database file"},
			&cli.StringFlag{Name: "table", Usage: "name of the timesheet table"},
			&cli.StringFlag{Name: "log-level", Usage: "log level: debug, info, warn, error"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log progress at info level"},
			&cli.BoolFlag{Name: "debug", Usage: "log everything, including how questions are parsed"},
			&cli.Float64Flag{Name: "threshold", Usage: "minimum similarity for a name match, within [-1, 1]"},
			&cli.StringFlag{Name: "embedder", Usage: "embedding provider: ngram or ollama"},
		},
		Before: setupRuntime,
		After:  closeRuntime,
		Commands: []*cli.Command{
			LoadCommand(),
			TranslateCommand(),
			AskCommand(),
			ResolveCommand(),
			ColumnsCommand(),
			StatsCommand(),
			ClearCommand(),
			ConfigCommand(),
		},
	}
}

// Execute runs the CLI with the process arguments and prints any failure
func Execute() error {
	app := NewApp()

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		printError(os.Stderr, err)
	}

	return err
}

func setupRuntime(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	overrides := map[string]any{
		"db":        cmd.String("db"),
		"table":     cmd.String("table"),
		"log-level": cmd.String("log-level"),
		"embedder":  cmd.String("embedder"),
		"verbose":   cmd.Bool("verbose"),
		"debug":     cmd.Bool("debug"),
	}

	if cmd.IsSet("threshold") {
		overrides["threshold"] = cmd.Float64("threshold")
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		logging.SetupFallbackLogger()
		return ctx, apperrors.Wrap(err, apperrors.ErrTypeConfig, "failed to load configuration").
			WithSuggestion("Run 'timesheet-sql config' with valid settings to see the active values")
	}

	cfg.ExpandAllPaths()

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return ctx, apperrors.Wrap(err, apperrors.ErrTypeConfig, "failed to initialize logger")
	}

	return withRuntime(ctx, &runtime{cfg: cfg, logger: logger}), nil
}

func closeRuntime(ctx context.Context, _ *cli.Command) error {
	if rt := runtimeFromContext(ctx); rt != nil {
		return rt.logger.Close()
	}

	return nil
}

type runtimeKey struct{}

type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
}

func withRuntime(ctx context.Context, rt *runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

func runtimeFromContext(ctx context.Context) *runtime {
	rt, _ := ctx.Value(runtimeKey{}).(*runtime)
	return rt
}

func getConfigFromContext(ctx context.Context) *config.Config {
	if rt := runtimeFromContext(ctx); rt != nil {
		return rt.cfg
	}

	return nil
}

func getLoggerFromContext(ctx context.Context) *logging.Logger {
	if rt := runtimeFromContext(ctx); rt != nil {
		return rt.logger
	}

	return logging.GetLogger()
}

func requireConfig(ctx context.Context) (*config.Config, error) {
	cfg := getConfigFromContext(ctx)
	if cfg == nil {
		return nil, apperrors.NewConfigError("configuration was not loaded", "")
	}

	return cfg, nil
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	for _, s := range apperrors.GetSuggestions(err) {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}
