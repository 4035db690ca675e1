package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/claudebridge/internal/app"
)

// globalFlagKeys maps root flags onto config keys.
var globalFlagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-file":   "log.file",
	"otlp-logs":  "log.otlp",
}

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version, commit string) error {
	return newRootCommand(version, commit).Run(ctx, args)
}

func newRootCommand(version, commit string) *cli.Command {
	return &cli.Command{
		Name:    app.Name,
		Usage:   "Serve the Anthropic Messages API from an OpenAI-compatible backend",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML config file",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "dotenv file loaded before reading the environment (default: .env if present)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "write logs to a size-rotated file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "otlp-logs",
				Usage: "export logs via OpenTelemetry (http|grpc|stdout)",
			},
		},
		Before:         loadDotenv,
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			serveCommand(version),
			authCommand(),
			configCommand(),
		},
	}
}

// loadDotenv loads the --env file, or .env when it exists. Variables already present in the
// environment win.
func loadDotenv(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("env")
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ctx, fmt.Errorf("failed to load .env: %w", err)
		}
		return ctx, nil
	}

	if err := godotenv.Load(path); err != nil {
		return ctx, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	slog.DebugContext(ctx, "loaded env file", "path", path)
	return ctx, nil
}

// loadConfig layers explicitly set flags over the file and environment configuration.
// extraKeys adds command-local flags to the global ones.
func loadConfig(cmd *cli.Command, extraKeys map[string]string) (*app.Config, error) {
	flags := make(map[string]any)
	for _, keys := range []map[string]string{globalFlagKeys, extraKeys} {
		for name, key := range keys {
			if cmd.IsSet(name) {
				flags[key] = cmd.Value(name)
			}
		}
	}

	cfg, err := app.LoadConfig(cmd.String("config"), flags, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
