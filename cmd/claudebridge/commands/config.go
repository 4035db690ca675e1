package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration as TOML with secrets masked",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd, nil)
					if err != nil {
						return err
					}
					out, err := cfg.TOML()
					if err != nil {
						return fmt.Errorf("failed to render config: %w", err)
					}
					_, err = cmd.Root().Writer.Write(out)
					return err
				},
			},
		},
	}
}
