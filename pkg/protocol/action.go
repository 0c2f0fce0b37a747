package protocol

import (
	"context"

	"github.com/dukex/flowbase/pkg/models"
)

// ActionContext is the state shared by the actions of one automation run.
// Handlers may update Record (set_field_value, run_script) so that later
// actions see the new values.
type ActionContext struct {
	Record     models.Record
	OldRecord  models.Record
	NewRecord  models.Record
	Automation *models.Automation
	// Table is the table the in-flight record belongs to, when known.
	Table   models.TableRef
	Results []models.ActionResult
}

// AutomationID returns the id of the running automation, or "".
func (c *ActionContext) AutomationID() string {
	if c.Automation == nil {
		return ""
	}

	return c.Automation.ID
}

// AutomationName returns the name of the running automation, or "".
func (c *ActionContext) AutomationName() string {
	if c.Automation == nil {
		return ""
	}

	return c.Automation.Name
}

// ActionHandlers performs the effect of every action variant. Implementations
// report failures in the returned result and never panic on bad input.
type ActionHandlers interface {
	SendEmail(ctx context.Context, action models.SendEmailAction, actx *ActionContext) models.ActionResult
	SendWebhook(ctx context.Context, action models.SendWebhookAction, actx *ActionContext) models.ActionResult
	UpdateRecord(ctx context.Context, action models.UpdateRecordAction, actx *ActionContext) models.ActionResult
	CreateRecord(ctx context.Context, action models.CreateRecordAction, actx *ActionContext) models.ActionResult
	DeleteRecord(ctx context.Context, action models.DeleteRecordAction, actx *ActionContext) models.ActionResult
	SetFieldValue(ctx context.Context, action models.SetFieldValueAction, actx *ActionContext) models.ActionResult
	DuplicateRecord(ctx context.Context, action models.DuplicateRecordAction, actx *ActionContext) models.ActionResult
	RunScript(ctx context.Context, action models.RunScriptAction, actx *ActionContext) models.ActionResult
}
