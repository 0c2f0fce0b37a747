// Package simulate provides action handlers without side effects for the
// sandbox. Each handler validates and renders its action, applies record
// changes to the in-flight record only, and records a human readable trace.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/flowbase/pkg/actions/email"
	"github.com/dukex/flowbase/pkg/actions/script"
	"github.com/dukex/flowbase/pkg/actions/webhook"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/template"
)

var (
	ErrMissingTable        = errors.New("missing table")
	ErrMissingTableContext = errors.New("missing table context")
	ErrMissingRecordID     = errors.New("missing record id")
	ErrNotAMap             = errors.New("script result is not a map")
)

// Evaluator runs run_script expressions. Evaluation must be side-effect free.
type Evaluator interface {
	Evaluate(expression string, env map[string]any) (any, error)
}

// Handlers is a one-shot set of simulated handlers; create one per sandbox run.
type Handlers struct {
	scripts Evaluator
	trace   []string
}

func New(scripts Evaluator) *Handlers {
	return &Handlers{scripts: scripts}
}

// Trace returns the lines recorded so far.
func (h *Handlers) Trace() []string {
	return append([]string(nil), h.trace...)
}

func (h *Handlers) logf(format string, args ...any) {
	h.trace = append(h.trace, fmt.Sprintf(format, args...))
}

func (h *Handlers) SendEmail(_ context.Context, action models.SendEmailAction, actx *protocol.ActionContext) models.ActionResult {
	rendered, err := email.Render(action, actx.Record)
	if err != nil {
		return models.ActionFailed(err)
	}

	h.logf("Would send email to %s with subject %q", strings.Join(rendered.To, ", "), rendered.Subject)

	return models.ActionSucceeded(map[string]any{
		"simulated": true,
		"to":        rendered.To,
		"cc":        rendered.Cc,
		"subject":   rendered.Subject,
		"body":      rendered.Body,
	})
}

func (h *Handlers) SendWebhook(_ context.Context, action models.SendWebhookAction, actx *protocol.ActionContext) models.ActionResult {
	request, err := webhook.Preview(action, actx)
	if err != nil {
		return models.ActionFailed(err)
	}

	h.logf("Would call webhook %s %s", request["method"], request["url"])

	request["simulated"] = true

	return models.ActionSucceeded(request)
}

func (h *Handlers) UpdateRecord(_ context.Context, action models.UpdateRecordAction, actx *protocol.ActionContext) models.ActionResult {
	table := tableOrContext(action.Table(), actx)
	if table.IsZero() {
		return models.ActionFailed(ErrMissingTable)
	}

	id := recordID(action.RecordID, actx)
	if id == "" {
		return models.ActionFailed(ErrMissingRecordID)
	}

	fields := template.RenderFields(action.FieldUpdates, actx.Record)

	if id == actx.Record.ID() {
		merge(actx, fields)
	}

	h.logf("Would update record %s in table %s: %s", id, table, describe(fields))

	return models.ActionSucceeded(simulated(table, id, fields))
}

func (h *Handlers) CreateRecord(_ context.Context, action models.CreateRecordAction, actx *protocol.ActionContext) models.ActionResult {
	if action.Table().IsZero() {
		return models.ActionFailed(ErrMissingTable)
	}

	fields := template.RenderFields(action.Fields, actx.Record)

	h.logf("Would create a record in table %s: %s", action.Table(), describe(fields))

	return models.ActionSucceeded(simulated(action.Table(), "", fields))
}

func (h *Handlers) DeleteRecord(_ context.Context, action models.DeleteRecordAction, actx *protocol.ActionContext) models.ActionResult {
	table := tableOrContext(action.Table(), actx)
	if table.IsZero() {
		return models.ActionFailed(ErrMissingTable)
	}

	id := recordID(action.RecordID, actx)
	if id == "" {
		return models.ActionFailed(ErrMissingRecordID)
	}

	h.logf("Would delete record %s from table %s", id, table)

	return models.ActionSucceeded(simulated(table, id, nil))
}

func (h *Handlers) SetFieldValue(_ context.Context, action models.SetFieldValueAction, actx *protocol.ActionContext) models.ActionResult {
	if actx.Table.IsZero() {
		return models.ActionFailed(ErrMissingTableContext)
	}

	if strings.TrimSpace(action.Field) == "" {
		return models.ActionFailed(errors.New("missing field"))
	}

	value := template.RenderValue(action.Value, actx.Record)
	merge(actx, models.Record{action.Field: value})

	h.logf("Would set %s to %q", action.Field, value.Text())

	return models.ActionSucceeded(simulated(actx.Table, actx.Record.ID(), models.Record{action.Field: value}))
}

func (h *Handlers) DuplicateRecord(_ context.Context, action models.DuplicateRecordAction, actx *protocol.ActionContext) models.ActionResult {
	table := tableOrContext(action.Table(), actx)
	if table.IsZero() {
		return models.ActionFailed(ErrMissingTable)
	}

	id := recordID(action.RecordID, actx)
	if id == "" {
		return models.ActionFailed(ErrMissingRecordID)
	}

	overrides := template.RenderFields(action.Overrides, actx.Record)

	h.logf("Would duplicate record %s in table %s with %s", id, table, describe(overrides))

	return models.ActionSucceeded(simulated(table, id, overrides))
}

func (h *Handlers) RunScript(_ context.Context, action models.RunScriptAction, actx *protocol.ActionContext) models.ActionResult {
	if h.scripts == nil {
		return models.ActionFailed(errors.New("scripts are not available"))
	}

	out, err := h.scripts.Evaluate(action.Expression, script.Environment(actx))
	if err != nil {
		return models.ActionFailed(err)
	}

	if !action.ApplyToRecord {
		h.logf("Script returned %v", out)

		return models.ActionSucceeded(out)
	}

	values, ok := out.(map[string]any)
	if !ok {
		return models.ActionFailedWithOutput(fmt.Errorf("%w: got %T", ErrNotAMap, out), out)
	}

	if actx.Table.IsZero() {
		return models.ActionFailedWithOutput(ErrMissingTableContext, out)
	}

	fields := models.RecordFromMap(values)
	merge(actx, fields)

	h.logf("Script would update the record: %s", describe(fields))

	return models.ActionSucceeded(out)
}

func simulated(table models.TableRef, id string, fields models.Record) map[string]any {
	out := map[string]any{"simulated": true, "table": table.String()}

	if id != "" {
		out["record_id"] = id
	}

	if fields != nil {
		out["fields"] = fields.ToMap()
	}

	return out
}

func tableOrContext(ref models.TableRef, actx *protocol.ActionContext) models.TableRef {
	if ref.IsZero() {
		return actx.Table
	}

	return ref
}

func recordID(configured string, actx *protocol.ActionContext) string {
	if id := strings.TrimSpace(template.Render(configured, actx.Record)); id != "" {
		return id
	}

	return actx.Record.ID()
}

func merge(actx *protocol.ActionContext, fields models.Record) {
	if actx.Record == nil {
		actx.Record = make(models.Record, len(fields))
	}

	for key, value := range fields {
		if key != models.RecordIDField {
			actx.Record[key] = value
		}
	}
}

func describe(fields models.Record) string {
	if len(fields) == 0 {
		return "no fields"
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", key, fields[key].Text()))
	}

	return strings.Join(parts, ", ")
}
