// Package email renders and sends send_email actions.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/template"
)

var ErrMissingRecipient = errors.New("email recipient is empty")

// Action performs send_email actions through an EmailSender.
type Action struct {
	sender protocol.EmailSender
	logger *slog.Logger
}

func NewAction(sender protocol.EmailSender, logger *slog.Logger) *Action {
	return &Action{
		sender: sender,
		logger: log.Module(logger, "email_action"),
	}
}

// Render builds the email for the in-flight record.
func Render(action models.SendEmailAction, record models.Record) (protocol.Email, error) {
	email := protocol.Email{
		To:      splitAddresses(template.Render(action.To, record)),
		Cc:      splitAddresses(template.Render(action.Cc, record)),
		Subject: template.Render(action.Subject, record),
		Body:    template.Render(action.Body, record),
	}

	if len(email.To) == 0 {
		return email, fmt.Errorf("%w: %q rendered to nothing", ErrMissingRecipient, action.To)
	}

	return email, nil
}

func (a *Action) SendEmail(ctx context.Context, action models.SendEmailAction, actx *protocol.ActionContext) models.ActionResult {
	email, err := Render(action, actx.Record)
	if err != nil {
		return models.ActionFailed(err)
	}

	err = a.sender.Send(ctx, email)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to send email",
			"action_id", action.ID,
			"automation_id", actx.AutomationID(),
			"error", err,
		)

		return models.ActionFailed(err)
	}

	return models.ActionSucceeded(map[string]any{
		"to":      email.To,
		"cc":      email.Cc,
		"subject": email.Subject,
	})
}

func splitAddresses(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})

	addresses := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			addresses = append(addresses, part)
		}
	}

	return addresses
}
