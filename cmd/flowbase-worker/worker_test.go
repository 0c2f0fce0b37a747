package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowbase/pkg/automation"
	"github.com/dukex/flowbase/pkg/channels/gochannel"
	"github.com/dukex/flowbase/pkg/eventbus"
	"github.com/dukex/flowbase/pkg/events"
	"github.com/dukex/flowbase/pkg/mocks"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeRunner struct {
	mu      sync.Mutex
	filters []automation.Filter
	scans   int
	summary models.RunSummary
	err     error
	calls   chan automation.Filter
}

func (r *fakeRunner) RunBatch(_ context.Context, filter automation.Filter) (models.RunSummary, error) {
	r.mu.Lock()
	r.filters = append(r.filters, filter)
	r.mu.Unlock()

	if r.calls != nil {
		r.calls <- filter
	}

	return r.summary, r.err
}

func (r *fakeRunner) ScanDateTriggers(_ context.Context) (models.RunSummary, error) {
	r.mu.Lock()
	r.scans++
	r.mu.Unlock()

	return r.summary, r.err
}

type recordingBus struct {
	eventbus.EventBus

	mu        sync.Mutex
	published []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, event)

	return nil
}

func (b *recordingBus) events() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]eventbus.Event(nil), b.published...)
}

func oneSuccess() models.RunSummary {
	return models.RunSummary{RunCount: 1, SuccessCount: 1, Logs: []models.RunResult{}}
}

func TestWorker_HandleRecordCreated(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{summary: oneSuccess()}
	bus := &recordingBus{}
	worker := NewWorker(runner, bus, testLogger(), Schedule{})

	record := models.Record{"id": models.String("r1"), "status": models.String("new")}
	event := events.NewRecordCreated(models.TableRef{TableName: "Deals"}, record)

	require.NoError(t, worker.handleRecordCreated(context.Background(), &event))

	require.Len(t, runner.filters, 1)
	assert.Equal(t, automation.CreatedEventTriggers, runner.filters[0].TriggerTypes)
	assert.Equal(t, record, runner.filters[0].Record)
	assert.Equal(t, "Deals", runner.filters[0].Table.TableName)

	published := bus.events()
	require.Len(t, published, 1)

	completed, ok := published[0].(events.BatchCompleted)
	require.True(t, ok)
	assert.Equal(t, string(events.RecordCreatedEvent), completed.Source)
	assert.Equal(t, 1, completed.SuccessCount)
}

func TestWorker_HandleRecordUpdated(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{summary: oneSuccess()}
	worker := NewWorker(runner, &recordingBus{}, testLogger(), Schedule{})

	oldRecord := models.Record{"id": models.String("r1"), "stage": models.String("open")}
	newRecord := models.Record{"id": models.String("r1"), "stage": models.String("won")}
	event := events.NewRecordUpdated(models.TableRef{TableID: "tbl_deals"}, oldRecord, newRecord)

	require.NoError(t, worker.handleRecordUpdated(context.Background(), &event))

	require.Len(t, runner.filters, 1)
	filter := runner.filters[0]
	assert.Equal(t, automation.UpdatedEventTriggers, filter.TriggerTypes)
	assert.Equal(t, newRecord, filter.Record)
	assert.Equal(t, oldRecord, filter.OldRecord)
	assert.Equal(t, newRecord, filter.NewRecord)
}

func TestWorker_HandlerErrors(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: automation.ErrLoadAutomations}
	bus := &recordingBus{}
	worker := NewWorker(runner, bus, testLogger(), Schedule{})

	event := events.NewRecordCreated(models.TableRef{}, models.Record{})

	err := worker.handleRecordCreated(context.Background(), &event)
	require.ErrorIs(t, err, automation.ErrLoadAutomations)
	assert.Empty(t, bus.events())

	err = worker.handleRecordCreated(context.Background(), "not an event")
	require.ErrorIs(t, err, errInvalidEvent)

	err = worker.handleRecordUpdated(context.Background(), &event)
	require.ErrorIs(t, err, errInvalidEvent)
}

func TestWorker_PeriodicJobs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{summary: oneSuccess()}
	bus := &recordingBus{}
	worker := NewWorker(runner, bus, testLogger(), Schedule{})

	worker.runSchedule(context.Background())
	worker.scanDates(context.Background())

	require.Len(t, runner.filters, 1)
	assert.Equal(t, automation.ScheduleTriggers, runner.filters[0].TriggerTypes)
	assert.Equal(t, 1, runner.scans)

	published := bus.events()
	require.Len(t, published, 2)
	assert.Equal(t, sourceSchedule, published[0].(events.BatchCompleted).Source)
	assert.Equal(t, sourceDateScan, published[1].(events.BatchCompleted).Source)
}

func TestWorker_EmptyBatchIsNotPublished(t *testing.T) {
	t.Parallel()

	bus := &recordingBus{}
	worker := NewWorker(&fakeRunner{}, bus, testLogger(), Schedule{})

	worker.runSchedule(context.Background())

	assert.Empty(t, bus.events())
}

func TestWorker_StartRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&fakeRunner{}, nil, testLogger(), Schedule{Ticks: "every now and then"})

	err := worker.Start(context.Background())
	require.Error(t, err)
}

func TestWorker_ConsumesBusEvents(t *testing.T) {
	t.Parallel()

	pub, sub := gochannel.CreateChannel(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pub, sub, testLogger())

	t.Cleanup(func() { _ = bus.Close() })

	runner := &fakeRunner{summary: oneSuccess(), calls: make(chan automation.Filter, 4)}
	worker := NewWorker(runner, bus, testLogger(), Schedule{Ticks: "@every 1h", DateScan: "@every 1h"})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, worker.Start(ctx))
	t.Cleanup(worker.Stop)

	record := models.Record{"id": models.String("r1")}
	require.NoError(t, bus.Publish(ctx, "r1", events.NewRecordCreated(models.TableRef{TableName: "Deals"}, record)))

	select {
	case filter := <-runner.calls:
		assert.Equal(t, automation.CreatedEventTriggers, filter.TriggerTypes)
		assert.Equal(t, "r1", filter.Record.ID())
	case <-time.After(5 * time.Second):
		t.Fatal("record event not processed")
	}
}

func TestWorker_StartWithoutBus(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&fakeRunner{}, nil, testLogger(), Schedule{})

	require.NoError(t, worker.Start(context.Background()))
	worker.Stop()

	assert.Equal(t, defaultScheduleSpec, worker.schedule.Ticks)
	assert.Equal(t, defaultDateScanSpec, worker.schedule.DateScan)
}

func TestWorker_DefaultTickIsMinuteAligned(t *testing.T) {
	t.Parallel()

	schedule, err := cron.ParseStandard(defaultScheduleSpec)
	require.NoError(t, err)

	from := time.Date(2024, 5, 10, 9, 30, 42, 0, time.UTC)
	next := schedule.Next(from)

	assert.Equal(t, time.Date(2024, 5, 10, 9, 31, 0, 0, time.UTC), next)
	assert.Equal(t, time.Minute, schedule.Next(next).Sub(next))
}

func TestWorker_StartFailsWhenBusRejects(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	bus.On("Handle", events.RecordCreatedEvent, mock.Anything).Return(nil)
	bus.On("Handle", events.RecordUpdatedEvent, mock.Anything).Return(nil)
	bus.On("Subscribe", mock.Anything).Return(errors.New("broker unreachable"))

	worker := NewWorker(&fakeRunner{}, bus, testLogger(), Schedule{})

	err := worker.Start(context.Background())
	require.EqualError(t, err, "broker unreachable")
	bus.AssertExpectations(t)
}
