package cmd

import (
	"log/slog"

	"github.com/dukex/flowbase/pkg/mailer"
	"github.com/dukex/flowbase/pkg/protocol"
)

// NewEmailSender uses SMTP when a host is configured and logs emails otherwise.
func NewEmailSender(config mailer.Config, logger *slog.Logger) protocol.EmailSender {
	if config.Host == "" {
		logger.Warn("SMTP host not configured, emails will only be logged")

		return mailer.NewLogSender(logger)
	}

	return mailer.NewSMTPSender(config, logger)
}
