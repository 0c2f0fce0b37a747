package actions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukex/flowbase/pkg/actions/email"
	"github.com/dukex/flowbase/pkg/actions/record"
	"github.com/dukex/flowbase/pkg/actions/script"
	"github.com/dukex/flowbase/pkg/actions/webhook"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
)

// Handlers composes the live action handlers.
type Handlers struct {
	Email   *email.Action
	Webhook *webhook.Action
	Records *record.Actions
	Scripts *script.Action
}

var _ protocol.ActionHandlers = (*Handlers)(nil)

func (h *Handlers) SendEmail(ctx context.Context, action models.SendEmailAction, actx *protocol.ActionContext) models.ActionResult {
	return h.Email.SendEmail(ctx, action, actx)
}

func (h *Handlers) SendWebhook(ctx context.Context, action models.SendWebhookAction, actx *protocol.ActionContext) models.ActionResult {
	return h.Webhook.SendWebhook(ctx, action, actx)
}

func (h *Handlers) UpdateRecord(ctx context.Context, action models.UpdateRecordAction, actx *protocol.ActionContext) models.ActionResult {
	return h.Records.UpdateRecord(ctx, action, actx)
}

func (h *Handlers) CreateRecord(ctx context.Context, action models.CreateRecordAction, actx *protocol.ActionContext) models.ActionResult {
	return h.Records.CreateRecord(ctx, action, actx)
}

func (h *Handlers) DeleteRecord(ctx context.Context, action models.DeleteRecordAction, actx *protocol.ActionContext) models.ActionResult {
	return h.Records.DeleteRecord(ctx, action, actx)
}

func (h *Handlers) SetFieldValue(ctx context.Context, action models.SetFieldValueAction, actx *protocol.ActionContext) models.ActionResult {
	return h.Records.SetFieldValue(ctx, action, actx)
}

func (h *Handlers) DuplicateRecord(ctx context.Context, action models.DuplicateRecordAction, actx *protocol.ActionContext) models.ActionResult {
	return h.Records.DuplicateRecord(ctx, action, actx)
}

func (h *Handlers) RunScript(ctx context.Context, action models.RunScriptAction, actx *protocol.ActionContext) models.ActionResult {
	return h.Scripts.RunScript(ctx, action, actx)
}

// Dependencies are the collaborators the live handlers need.
type Dependencies struct {
	Sender     protocol.EmailSender
	HTTPClient *http.Client
	Store      protocol.RecordStore
	Resolver   protocol.TableResolver
	Logger     *slog.Logger
}

// NewHandlers wires the live handlers from their collaborators.
func NewHandlers(deps Dependencies) *Handlers {
	records := record.NewActions(deps.Store, deps.Resolver, deps.Logger)

	return &Handlers{
		Email:   email.NewAction(deps.Sender, deps.Logger),
		Webhook: webhook.NewAction(deps.HTTPClient, deps.Logger),
		Records: records,
		Scripts: script.NewAction(records, deps.Logger),
	}
}
