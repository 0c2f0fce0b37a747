// Package record implements the actions that mutate user table records.
package record

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

var (
	ErrMissingTable        = errors.New("missing table")
	ErrMissingTableContext = errors.New("missing table context")
	ErrMissingRecordID     = errors.New("missing record id")
	ErrMissingField        = errors.New("missing field")
	ErrSourceNotFound      = errors.New("source record not found")
)

// Actions performs update, create, delete, set_field_value and
// duplicate_record against a RecordStore.
type Actions struct {
	store    protocol.RecordStore
	resolver protocol.TableResolver
	logger   *slog.Logger
}

func NewActions(store protocol.RecordStore, resolver protocol.TableResolver, logger *slog.Logger) *Actions {
	return &Actions{
		store:    store,
		resolver: resolver,
		logger:   log.Module(logger, "record_actions"),
	}
}

func (a *Actions) UpdateRecord(ctx context.Context, action models.UpdateRecordAction, actx *protocol.ActionContext) models.ActionResult {
	tableID, err := a.table(ctx, action.Table(), actx)
	if err != nil {
		return models.ActionFailed(err)
	}

	recordID := recordID(action.RecordID, actx)
	if recordID == "" {
		return models.ActionFailed(ErrMissingRecordID)
	}

	fields := template.RenderFields(action.FieldUpdates, actx.Record)

	updated, err := a.store.Update(ctx, tableID, recordID, fields)
	if err != nil {
		return models.ActionFailed(fmt.Errorf("failed to update record: %w", err))
	}

	a.syncInFlight(ctx, tableID, recordID, fields, actx)

	a.logger.InfoContext(ctx, "Record updated", "table_id", tableID, "record_id", recordID)

	return models.ActionSucceeded(updated.ToMap())
}

func (a *Actions) CreateRecord(ctx context.Context, action models.CreateRecordAction, actx *protocol.ActionContext) models.ActionResult {
	if action.Table().IsZero() {
		return models.ActionFailed(ErrMissingTable)
	}

	tableID, err := a.resolver.ResolveTable(ctx, action.Table())
	if err != nil {
		return models.ActionFailed(err)
	}

	created, err := a.store.Insert(ctx, tableID, template.RenderFields(action.Fields, actx.Record))
	if err != nil {
		return models.ActionFailed(fmt.Errorf("failed to create record: %w", err))
	}

	a.logger.InfoContext(ctx, "Record created", "table_id", tableID, "record_id", created.ID())

	return models.ActionSucceeded(created.ToMap())
}

func (a *Actions) DeleteRecord(ctx context.Context, action models.DeleteRecordAction, actx *protocol.ActionContext) models.ActionResult {
	tableID, err := a.table(ctx, action.Table(), actx)
	if err != nil {
		return models.ActionFailed(err)
	}

	recordID := recordID(action.RecordID, actx)
	if recordID == "" {
		return models.ActionFailed(ErrMissingRecordID)
	}

	err = a.store.Delete(ctx, tableID, recordID)
	if err != nil {
		return models.ActionFailed(fmt.Errorf("failed to delete record: %w", err))
	}

	a.logger.InfoContext(ctx, "Record deleted", "table_id", tableID, "record_id", recordID)

	return models.ActionSucceeded(map[string]any{"deleted": recordID})
}

// SetFieldValue writes one field of the in-flight record, both in the store
// and in the action context so later actions see it.
func (a *Actions) SetFieldValue(ctx context.Context, action models.SetFieldValueAction, actx *protocol.ActionContext) models.ActionResult {
	if strings.TrimSpace(action.Field) == "" {
		return models.ActionFailed(ErrMissingField)
	}

	updated, err := a.ApplyFields(ctx, models.Record{
		action.Field: template.RenderValue(action.Value, actx.Record),
	}, actx)
	if err != nil {
		return models.ActionFailed(err)
	}

	return models.ActionSucceeded(updated.ToMap())
}

// ApplyFields stores fields on the in-flight record and merges them into
// actx.Record.
func (a *Actions) ApplyFields(ctx context.Context, fields models.Record, actx *protocol.ActionContext) (models.Record, error) {
	if actx.Table.IsZero() {
		return nil, ErrMissingTableContext
	}

	recordID := actx.Record.ID()
	if recordID == "" {
		return nil, ErrMissingRecordID
	}

	tableID, err := a.resolver.ResolveTable(ctx, actx.Table)
	if err != nil {
		return nil, err
	}

	updated, err := a.store.Update(ctx, tableID, recordID, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to set field value: %w", err)
	}

	mergeInto(actx, fields)

	return updated, nil
}

func (a *Actions) DuplicateRecord(ctx context.Context, action models.DuplicateRecordAction, actx *protocol.ActionContext) models.ActionResult {
	tableID, err := a.table(ctx, action.Table(), actx)
	if err != nil {
		return models.ActionFailed(err)
	}

	sourceID := recordID(action.RecordID, actx)
	if sourceID == "" {
		return models.ActionFailed(ErrMissingRecordID)
	}

	rows, err := a.store.Select(ctx, tableID, protocol.Filter{models.RecordIDField: models.String(sourceID)})
	if err != nil {
		return models.ActionFailed(fmt.Errorf("failed to load source record: %w", err))
	}

	if len(rows) == 0 {
		return models.ActionFailed(fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID))
	}

	duplicate := rows[0].Clone()
	delete(duplicate, models.RecordIDField)

	for key, value := range template.RenderFields(action.Overrides, actx.Record) {
		duplicate[key] = value
	}

	created, err := a.store.Insert(ctx, tableID, duplicate)
	if err != nil {
		return models.ActionFailed(fmt.Errorf("failed to insert duplicate: %w", err))
	}

	a.logger.InfoContext(ctx, "Record duplicated", "table_id", tableID, "source_id", sourceID, "record_id", created.ID())

	return models.ActionSucceeded(created.ToMap())
}

// table resolves the action's table, falling back to the table of the
// in-flight record.
func (a *Actions) table(ctx context.Context, ref models.TableRef, actx *protocol.ActionContext) (string, error) {
	if ref.IsZero() {
		ref = actx.Table
	}

	if ref.IsZero() {
		return "", ErrMissingTable
	}

	return a.resolver.ResolveTable(ctx, ref)
}

// syncInFlight mirrors an update of the in-flight record into the context.
func (a *Actions) syncInFlight(ctx context.Context, tableID, recordID string, fields models.Record, actx *protocol.ActionContext) {
	if actx.Table.IsZero() || recordID != actx.Record.ID() {
		return
	}

	contextTable, err := a.resolver.ResolveTable(ctx, actx.Table)
	if err != nil || contextTable != tableID {
		return
	}

	mergeInto(actx, fields)
}

func mergeInto(actx *protocol.ActionContext, fields models.Record) {
	if actx.Record == nil {
		actx.Record = make(models.Record, len(fields))
	}

	for key, value := range fields {
		if key == models.RecordIDField {
			continue
		}

		actx.Record[key] = value
	}
}

func recordID(configured string, actx *protocol.ActionContext) string {
	if id := strings.TrimSpace(template.Render(configured, actx.Record)); id != "" {
		return id
	}

	return actx.Record.ID()
}
