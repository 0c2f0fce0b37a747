// Package main provides the Flowbase worker: it runs automations on record
// events from the bus and on the schedule.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/flowbase/pkg/cmd"
	"github.com/dukex/flowbase/pkg/log"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "flowbase-worker"

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		EnableShellCompletion: true,
		Usage:                 "Run automations on record events and schedules",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "schedule-spec",
				Usage:   "Cron spec of the schedule trigger tick",
				Value:   defaultScheduleSpec,
				Sources: cli.EnvVars("SCHEDULE_SPEC"),
			},
			&cli.StringFlag{
				Name:    "date-scan-spec",
				Usage:   "Cron spec of the date_approaching scan",
				Value:   defaultDateScanSpec,
				Sources: cli.EnvVars("DATE_SCAN_SPEC"),
			},
		}, cmd.Flags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule(serviceName).With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Flowbase Worker")

			stack, err := cmd.NewStack(ctx, logger, cmd.StackConfigFromCommand(command, serviceName+"-"+workerID))
			if err != nil {
				return err
			}

			defer func() {
				err := stack.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close resources", "error", err)
				}
			}()

			worker := NewWorker(stack.Runner, stack.EventBus, logger, Schedule{
				Ticks:    command.String("schedule-spec"),
				DateScan: command.String("date-scan-spec"),
			})

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)

				return err
			}

			<-ctx.Done()
			logger.InfoContext(ctx, "Shutting down worker...")

			worker.Stop()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
