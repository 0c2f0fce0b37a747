package protocol

import "context"

type Email struct {
	To      []string
	Cc      []string
	Subject string
	Body    string
}

// EmailSender delivers an email. Dry runs use a sender without side effects.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}
