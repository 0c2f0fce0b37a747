package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
)

var ErrLoadAutomations = errors.New("failed to load automations")

// Repository loads automation definitions.
type Repository interface {
	Automations(ctx context.Context) ([]*models.Automation, error)
	AutomationByID(ctx context.Context, id string) (*models.Automation, error)
}

// TableLookup resolves bare table strings of triggers to table ids.
type TableLookup interface {
	ResolveName(ctx context.Context, table string) (string, error)
}

// Filter narrows a batch. The zero Filter considers every automation.
type Filter struct {
	AutomationID string               `json:"automation_id,omitempty"`
	TriggerTypes []models.TriggerType `json:"trigger_types,omitempty"`
	Record       models.Record        `json:"record,omitempty"`
	OldRecord    models.Record        `json:"old_record,omitempty"`
	NewRecord    models.Record        `json:"new_record,omitempty"`
	Table        models.TableRef      `json:"table"`
}

var (
	// CreatedEventTriggers are the trigger types evaluated for a new record.
	CreatedEventTriggers = []models.TriggerType{models.TriggerRecordCreated, models.TriggerFieldMatch}
	// UpdatedEventTriggers are the trigger types evaluated for a changed record.
	UpdatedEventTriggers = []models.TriggerType{models.TriggerRecordUpdated, models.TriggerFieldMatch}
	// ScheduleTriggers are evaluated on every scheduler tick.
	ScheduleTriggers = []models.TriggerType{models.TriggerSchedule}
)

// Runner is the entry point of the engine for batches, scans and sandbox runs.
type Runner struct {
	repository   Repository
	orchestrator *Orchestrator
	sandbox      *Sandbox
	records      protocol.RecordStore
	tables       TableLookup
	logger       *slog.Logger
}

func NewRunner(
	repository Repository,
	orchestrator *Orchestrator,
	sandbox *Sandbox,
	records protocol.RecordStore,
	tables TableLookup,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		repository:   repository,
		orchestrator: orchestrator,
		sandbox:      sandbox,
		records:      records,
		tables:       tables,
		logger:       log.Module(logger, "automation_runner"),
	}
}

// RunBatch loads the candidate automations and runs them. It only fails when
// the automations cannot be loaded; the partial summary is returned with the
// error.
func (r *Runner) RunBatch(ctx context.Context, filter Filter) (models.RunSummary, error) {
	automations, err := r.candidates(ctx, filter)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to load automations", "automation_id", filter.AutomationID, "error", err)

		return models.RunSummary{Logs: []models.RunResult{}}, fmt.Errorf("%w: %w", ErrLoadAutomations, err)
	}

	return r.orchestrator.Run(ctx, automations, BatchContext{
		Record:       filter.Record,
		OldRecord:    filter.OldRecord,
		NewRecord:    filter.NewRecord,
		Table:        filter.Table,
		AutomationID: filter.AutomationID,
	}), nil
}

func (r *Runner) candidates(ctx context.Context, filter Filter) ([]*models.Automation, error) {
	if filter.AutomationID != "" {
		automation, err := r.repository.AutomationByID(ctx, filter.AutomationID)
		if err != nil {
			return nil, err
		}

		return []*models.Automation{automation}, nil
	}

	all, err := r.repository.Automations(ctx)
	if err != nil {
		return nil, err
	}

	if len(filter.TriggerTypes) == 0 {
		return all, nil
	}

	selected := make([]*models.Automation, 0, len(all))

	for _, automation := range all {
		if automation != nil && automation.Trigger != nil && slices.Contains(filter.TriggerTypes, automation.Trigger.TriggerType()) {
			selected = append(selected, automation)
		}
	}

	return selected, nil
}

// ScanDateTriggers runs every active date_approaching automation once per
// record of its table.
func (r *Runner) ScanDateTriggers(ctx context.Context) (models.RunSummary, error) {
	summary := models.RunSummary{Logs: []models.RunResult{}}

	all, err := r.repository.Automations(ctx)
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrLoadAutomations, err)
	}

	for _, automation := range all {
		if automation == nil || !automation.IsActive() {
			continue
		}

		t, ok := automation.Trigger.(models.DateApproachingTrigger)
		if !ok {
			continue
		}

		tableID, err := r.tables.ResolveName(ctx, t.Table)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping date scan, table not resolved",
				"automation_id", automation.ID, "table", t.Table, "error", err)

			continue
		}

		records, err := r.records.Select(ctx, tableID, nil)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping date scan, records not loaded",
				"automation_id", automation.ID, "table_id", tableID, "error", err)

			continue
		}

		table := models.TableRef{TableID: tableID, TableName: t.Table}

		for _, record := range records {
			summary.Merge(r.orchestrator.Run(ctx, []*models.Automation{automation}, BatchContext{
				Record:         record,
				Table:          table,
				LimitPerRecord: true,
			}))
		}
	}

	return summary, nil
}

// TestAutomation runs a draft through the sandbox.
func (r *Runner) TestAutomation(ctx context.Context, request TestRequest) *models.TestReport {
	return r.sandbox.Test(ctx, request)
}
