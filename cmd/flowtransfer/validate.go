package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dukex/flowtransfer/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Run validators over the selected source workflows without touching the target",
		Flags: append(commonFlags(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the validation report as JSON",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit with an error when any workflow has issues",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(logLevel(command))
			logger := log.WithModule("cli")

			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			opts, err := buildOptions(command, cfg)
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			report, err := rt.newManager().Validate(ctx, opts)
			if err != nil {
				return err
			}

			if command.Bool("json") {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")

				err = encoder.Encode(report)
				if err != nil {
					return err
				}
			} else {
				printValidation(os.Stdout, report)
			}

			if command.Bool("strict") && report.Invalid > 0 {
				return fmt.Errorf("%d of %d workflows have issues", report.Invalid, report.Total)
			}

			return nil
		},
	}
}
