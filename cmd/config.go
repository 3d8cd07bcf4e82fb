package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/timesheet-sql/internal/config"
	"github.com/kyleking/timesheet-sql/internal/errors"
)

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Usage:       "Display the active configuration",
		Description: `Show the current active configuration including all settings from file, environment variables, and command-line flags.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the configuration as JSON"},
			&cli.BoolFlag{Name: "save", Usage: "write the active configuration to the config file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("save") {
				return runConfigSave(ctx, output(cmd))
			}

			return runConfig(ctx, output(cmd), cmd.Bool("json"))
		},
	}
}

func runConfig(ctx context.Context, w io.Writer, asJSON bool) error {
	cfg := getConfigFromContext(ctx)
	if cfg == nil {
		return errors.NewConfigError("failed to load configuration", "")
	}

	if asJSON || cfg.Debug.Enabled {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}

		fmt.Fprintln(w, string(data))

		return nil
	}

	printConfig(w, cfg)

	return nil
}

// runConfigSave persists the merged configuration so later runs start from it
func runConfigSave(ctx context.Context, w io.Writer) error {
	cfg := getConfigFromContext(ctx)
	if cfg == nil {
		return errors.NewConfigError("failed to load configuration", "")
	}

	if err := config.SaveConfig(cfg); err != nil {
		return errors.Wrap(err, errors.ErrTypeFileSystem, "failed to save configuration")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return errors.Wrap(err, errors.ErrTypeFileSystem, "failed to create configured directories")
	}

	fmt.Fprintf(w, "Saved configuration to %s\n", config.Path())

	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Active Configuration:")

	fmt.Fprintln(w, "\nDatabase:")
	fmt.Fprintf(w, "  Path: %s\n", cfg.Database.Path)
	fmt.Fprintf(w, "  Table: %s\n", cfg.Database.Table)
	fmt.Fprintf(w, "  Max Connections: %d\n", cfg.Database.MaxConnections)
	fmt.Fprintf(w, "  Query Timeout: %s\n", cfg.Database.QueryTimeout)

	fmt.Fprintln(w, "\nResolver:")
	fmt.Fprintf(w, "  Threshold: %.2f\n", cfg.Resolver.Threshold)

	fmt.Fprintln(w, "\nEmbedding:")
	fmt.Fprintf(w, "  Provider: %s\n", cfg.Embedding.Provider)
	fmt.Fprintf(w, "  Dimensions: %d\n", cfg.Embedding.Dimensions)

	if cfg.Embedding.Provider == "ollama" {
		fmt.Fprintf(w, "  Model: %s\n", cfg.Embedding.Model)
		fmt.Fprintf(w, "  Base URL: %s\n", cfg.Embedding.BaseURL)
		fmt.Fprintf(w, "  Timeout: %s\n", cfg.Embedding.Timeout)
	}

	fmt.Fprintln(w, "\nCache:")
	fmt.Fprintf(w, "  Enabled: %t\n", cfg.Cache.Enabled)

	if cfg.Cache.Enabled {
		fmt.Fprintf(w, "  Directory: %s\n", cfg.Cache.Directory)
		fmt.Fprintf(w, "  TTL: %d hours\n", cfg.Cache.TTLHours)
	}

	fmt.Fprintln(w, "\nLogging:")
	fmt.Fprintf(w, "  Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "  Format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "  Output: %s\n", cfg.Logging.Output)

	if cfg.Logging.Output == "file" {
		fmt.Fprintf(w, "  File: %s\n", cfg.Logging.File)
	}

	fmt.Fprintln(w, "\nDebug:")
	fmt.Fprintf(w, "  Enabled: %t\n", cfg.Debug.Enabled)
	fmt.Fprintf(w, "  Verbose: %t\n", cfg.Debug.Verbose)
}
