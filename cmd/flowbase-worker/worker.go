package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowbase/pkg/automation"
	"github.com/dukex/flowbase/pkg/eventbus"
	"github.com/dukex/flowbase/pkg/events"
	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/robfig/cron/v3"
)

const (
	defaultScheduleSpec = "* * * * *"
	defaultDateScanSpec = "@hourly"

	sourceSchedule = "schedule"
	sourceDateScan = "date_scan"
)

var errInvalidEvent = errors.New("invalid event payload")

// Runner runs the batches a worker is responsible for.
type Runner interface {
	RunBatch(ctx context.Context, filter automation.Filter) (models.RunSummary, error)
	ScanDateTriggers(ctx context.Context) (models.RunSummary, error)
}

// Schedule holds the cron specs of the periodic jobs.
type Schedule struct {
	Ticks    string
	DateScan string
}

type Worker struct {
	runner   Runner
	bus      eventbus.EventBus
	schedule Schedule
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewWorker builds a worker. Without a bus only the periodic jobs run.
func NewWorker(runner Runner, bus eventbus.EventBus, logger *slog.Logger, schedule Schedule) *Worker {
	if schedule.Ticks == "" {
		schedule.Ticks = defaultScheduleSpec
	}

	if schedule.DateScan == "" {
		schedule.DateScan = defaultDateScanSpec
	}

	return &Worker{
		runner:   runner,
		bus:      bus,
		schedule: schedule,
		logger:   log.Module(logger, "flowbase_worker"),
	}
}

// Start subscribes to record events and starts the periodic jobs. It returns
// once everything is running; ctx bounds the lifetime of the jobs.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	if w.bus == nil {
		w.logger.WarnContext(ctx, "No event bus configured, record events will not be processed")
	} else {
		err := w.bus.Handle(events.RecordCreatedEvent, w.handleRecordCreated)
		if err != nil {
			return err
		}

		err = w.bus.Handle(events.RecordUpdatedEvent, w.handleRecordUpdated)
		if err != nil {
			return err
		}

		err = w.bus.Subscribe(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

			return err
		}
	}

	w.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := w.cron.AddFunc(w.schedule.Ticks, func() { w.runSchedule(ctx) })
	if err != nil {
		return fmt.Errorf("invalid schedule spec %q: %w", w.schedule.Ticks, err)
	}

	_, err = w.cron.AddFunc(w.schedule.DateScan, func() { w.scanDates(ctx) })
	if err != nil {
		return fmt.Errorf("invalid date scan spec %q: %w", w.schedule.DateScan, err)
	}

	w.cron.Start()

	w.logger.InfoContext(ctx, "Worker started successfully",
		"schedule_spec", w.schedule.Ticks, "date_scan_spec", w.schedule.DateScan)

	return nil
}

// Stop stops the periodic jobs and waits for a running one to finish.
func (w *Worker) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

func (w *Worker) handleRecordCreated(ctx context.Context, event any) error {
	created, ok := event.(*events.RecordCreated)
	if !ok {
		return errInvalidEvent
	}

	logger := w.logger.With("event_id", created.ID, "table", created.Table.TableName, "record_id", created.Record.ID())
	logger.InfoContext(ctx, "Processing record created event")

	return w.run(ctx, string(events.RecordCreatedEvent), automation.Filter{
		TriggerTypes: automation.CreatedEventTriggers,
		Record:       created.Record,
		NewRecord:    created.Record,
		Table:        created.Table,
	})
}

func (w *Worker) handleRecordUpdated(ctx context.Context, event any) error {
	updated, ok := event.(*events.RecordUpdated)
	if !ok {
		return errInvalidEvent
	}

	logger := w.logger.With("event_id", updated.ID, "table", updated.Table.TableName, "record_id", updated.NewRecord.ID())
	logger.InfoContext(ctx, "Processing record updated event")

	return w.run(ctx, string(events.RecordUpdatedEvent), automation.Filter{
		TriggerTypes: automation.UpdatedEventTriggers,
		Record:       updated.NewRecord,
		OldRecord:    updated.OldRecord,
		NewRecord:    updated.NewRecord,
		Table:        updated.Table,
	})
}

// run returns an error only when the automations could not be loaded, so
// that the event is redelivered. Failed automations are in the logs.
func (w *Worker) run(ctx context.Context, source string, filter automation.Filter) error {
	started := time.Now()

	summary, err := w.runner.RunBatch(ctx, filter)
	if err != nil {
		w.logger.ErrorContext(ctx, "Batch failed", "source", source, "error", err)

		return err
	}

	w.publishSummary(ctx, source, summary, time.Since(started))

	return nil
}

func (w *Worker) runSchedule(ctx context.Context) {
	err := w.run(ctx, sourceSchedule, automation.Filter{TriggerTypes: automation.ScheduleTriggers})
	if err != nil {
		w.logger.ErrorContext(ctx, "Scheduled batch failed", "error", err)
	}
}

func (w *Worker) scanDates(ctx context.Context) {
	started := time.Now()

	summary, err := w.runner.ScanDateTriggers(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Date scan failed", "error", err)

		return
	}

	w.publishSummary(ctx, sourceDateScan, summary, time.Since(started))
}

func (w *Worker) publishSummary(ctx context.Context, source string, summary models.RunSummary, duration time.Duration) {
	w.logger.InfoContext(ctx, "Batch completed",
		"source", source,
		"run_count", summary.RunCount,
		"success_count", summary.SuccessCount,
		"error_count", summary.ErrorCount,
		"skipped_count", summary.SkippedCount)

	if w.bus == nil || summary.RunCount == 0 {
		return
	}

	err := w.bus.Publish(ctx, source, events.NewBatchCompleted(source, "", summary, duration))
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish batch completed event", "source", source, "error", err)
	}
}
