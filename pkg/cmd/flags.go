package cmd

import (
	"time"

	"github.com/dukex/flowbase/pkg/mailer"
	cli "github.com/urfave/cli/v3"
)

const defaultMinInterval = time.Minute

// Flags returns the flags shared by every binary that runs automations.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Automation persistence URL (postgres:// or a directory)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "store-url",
			Usage:   "Record store URL (postgres:// or memory://)",
			Value:   "memory://",
			Sources: cli.EnvVars("STORE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, gochannel), empty to disable",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "rate-limit-url",
			Usage:   "Redis URL shared by replicas for run intervals, in-process when empty",
			Sources: cli.EnvVars("RATE_LIMIT_URL"),
		},
		&cli.DurationFlag{
			Name:    "default-min-interval",
			Usage:   "Minimum time between two runs of an automation without its own interval",
			Value:   defaultMinInterval,
			Sources: cli.EnvVars("DEFAULT_MIN_INTERVAL"),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP relay host, emails are only logged when empty",
			Sources: cli.EnvVars("SMTP_HOST"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Sources: cli.EnvVars("SMTP_PORT"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Sources: cli.EnvVars("SMTP_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Sources: cli.EnvVars("SMTP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "noreply@flowbase.local",
			Sources: cli.EnvVars("SMTP_FROM"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// StackConfigFromCommand reads the shared flags.
func StackConfigFromCommand(command *cli.Command, serviceName string) StackConfig {
	return StackConfig{
		ServiceName:        serviceName,
		DatabaseURL:        command.String("database-url"),
		StoreURL:           command.String("store-url"),
		EventBus:           command.String("event-bus"),
		KafkaBrokers:       command.String("kafka-brokers"),
		RateLimitURL:       command.String("rate-limit-url"),
		DefaultMinInterval: command.Duration("default-min-interval"),
		OtelEnabled:        command.Bool("otel-enabled"),
		SMTP: mailer.Config{
			Host:     command.String("smtp-host"),
			Port:     command.Int("smtp-port"),
			Username: command.String("smtp-username"),
			Password: command.String("smtp-password"),
			From:     command.String("smtp-from"),
		},
	}
}
