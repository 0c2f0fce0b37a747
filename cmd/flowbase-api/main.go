// Package main provides the Flowbase API server.
package main

import (
	"context"
	"os"

	"github.com/dukex/flowbase/pkg/cmd"
	"github.com/dukex/flowbase/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort = 9091
	serviceName = "flowbase-api"
)

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Manage, test and run automations",
		EnableShellCompletion: true,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		}, cmd.Flags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Flowbase API")

			stack, err := cmd.NewStack(ctx, logger, cmd.StackConfigFromCommand(command, serviceName))
			if err != nil {
				return err
			}

			defer func() {
				err := stack.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close resources", "error", err)
				}
			}()

			api := NewAPI(logger, stack)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
