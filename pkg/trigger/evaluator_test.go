package trigger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 10, 9, 30, 20, 0, time.UTC) // a Friday

func newTestLiveEvaluator() *Evaluator {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return NewEvaluator(logger, clockwork.NewFakeClockAt(now))
}

func TestEvaluator_RecordCreated(t *testing.T) {
	t.Parallel()

	evaluator := newTestLiveEvaluator()
	trigger := models.RecordCreatedTrigger{}

	matched, err := evaluator.Match(context.Background(), trigger, Context{
		Record: models.Record{"id": models.Number(1), "status": models.String("new")},
	})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = evaluator.Match(context.Background(), trigger, Context{})
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEvaluator_TableBinding(t *testing.T) {
	t.Parallel()

	evaluator := newTestLiveEvaluator()
	record := models.Record{"id": models.String("r1")}

	tests := []struct {
		name     string
		trigger  models.Trigger
		table    models.TableRef
		expected bool
	}{
		{"same id", models.RecordCreatedTrigger{Table: "tbl_1"}, models.TableRef{TableID: "tbl_1", TableName: "Deals"}, true},
		{"same name", models.RecordCreatedTrigger{Table: "deals"}, models.TableRef{TableID: "tbl_1", TableName: "Deals"}, true},
		{"other table", models.RecordCreatedTrigger{Table: "contacts"}, models.TableRef{TableID: "tbl_1", TableName: "Deals"}, false},
		{"context without table", models.RecordCreatedTrigger{Table: "contacts"}, models.TableRef{}, true},
		{"trigger without table", models.RecordCreatedTrigger{}, models.TableRef{TableID: "tbl_1"}, true},
		{"manual ignores table", models.ManualTrigger{}, models.TableRef{TableID: "tbl_1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matched, err := evaluator.Match(context.Background(), tt.trigger, Context{Record: record, Table: tt.table})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, matched)
		})
	}
}

func TestEvaluator_RecordUpdated(t *testing.T) {
	t.Parallel()

	old := models.Record{"status": models.String("new"), "amount": models.Number(10)}
	updated := models.Record{"status": models.String("done"), "amount": models.Number(10)}

	tests := []struct {
		name     string
		trigger  models.RecordUpdatedTrigger
		tc       Context
		expected bool
	}{
		{"any field changed", models.RecordUpdatedTrigger{}, Context{OldRecord: old, NewRecord: updated}, true},
		{"watched field changed", models.RecordUpdatedTrigger{Fields: []string{"status"}}, Context{OldRecord: old, NewRecord: updated}, true},
		{"watched field unchanged", models.RecordUpdatedTrigger{Fields: []string{"amount"}}, Context{OldRecord: old, NewRecord: updated}, false},
		{"field added", models.RecordUpdatedTrigger{}, Context{OldRecord: old, NewRecord: models.Record{"status": models.String("new"), "amount": models.Number(10), "note": models.String("x")}}, true},
		{"nothing changed", models.RecordUpdatedTrigger{}, Context{OldRecord: old, NewRecord: old.Clone()}, false},
		{"record used as new side", models.RecordUpdatedTrigger{}, Context{OldRecord: old, Record: updated}, true},
		{"missing old", models.RecordUpdatedTrigger{}, Context{NewRecord: updated}, false},
		{"missing new", models.RecordUpdatedTrigger{}, Context{OldRecord: old}, false},
	}

	evaluator := newTestLiveEvaluator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matched, err := evaluator.Match(context.Background(), tt.trigger, tt.tc)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, matched)
		})
	}
}

func TestEvaluator_FieldMatch(t *testing.T) {
	t.Parallel()

	record := models.Record{"priority": models.String("High"), "score": models.Number(80)}

	tests := []struct {
		name     string
		trigger  models.FieldMatchTrigger
		record   models.Record
		expected bool
	}{
		{"equals", models.FieldMatchTrigger{Field: "priority", Operator: models.OpEquals, Value: models.String("High")}, record, true},
		{"greater than", models.FieldMatchTrigger{Field: "score", Operator: models.OpGreaterThan, Value: models.Number(90)}, record, false},
		{"contains", models.FieldMatchTrigger{Field: "priority", Operator: models.OpContains, Value: models.String("hig")}, record, true},
		{"unknown operator", models.FieldMatchTrigger{Field: "priority", Operator: "like", Value: models.String("High")}, record, false},
		{"changed without old", models.FieldMatchTrigger{Field: "priority", Operator: models.OpChanged}, record, false},
		{"missing record", models.FieldMatchTrigger{Field: "priority", Operator: models.OpIsEmpty}, nil, false},
	}

	evaluator := newTestLiveEvaluator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matched, err := evaluator.Match(context.Background(), tt.trigger, Context{Record: tt.record})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, matched)
		})
	}
}

func TestEvaluator_DateApproaching(t *testing.T) {
	t.Parallel()

	trigger := models.DateApproachingTrigger{DateField: "due", ThresholdDays: 3}

	tests := []struct {
		name     string
		due      models.Value
		expected bool
	}{
		{"today date only", models.String("2024-05-10"), true},
		{"last day of window", models.String("2024-05-13"), true},
		{"beyond window", models.String("2024-05-14"), false},
		{"yesterday", models.String("2024-05-09"), false},
		{"earlier today with time", models.String("2024-05-10T08:00:00Z"), false},
		{"later with time", models.String("2024-05-12T08:00:00Z"), true},
		{"window end exact", models.Date(now.AddDate(0, 0, 3)), true},
		{"just past window end", models.Date(now.AddDate(0, 0, 3).Add(time.Second)), false},
		{"unparsable", models.String("next week"), false},
		{"missing", models.Null(), false},
	}

	evaluator := newTestLiveEvaluator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matched, err := evaluator.Match(context.Background(), trigger, Context{Record: models.Record{"due": tt.due}})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, matched)
		})
	}
}

func TestEvaluator_Schedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		trigger  models.ScheduleTrigger
		at       time.Time
		expected bool
	}{
		{"every minute", models.ScheduleTrigger{Frequency: models.FrequencyEveryMinute}, now, true},
		{"hourly at minute", models.ScheduleTrigger{Frequency: models.FrequencyHourly, Time: "00:30"}, now, true},
		{"hourly other minute", models.ScheduleTrigger{Frequency: models.FrequencyHourly, Time: "15"}, now, false},
		{"daily match", models.ScheduleTrigger{Frequency: models.FrequencyDaily, Time: "09:30"}, now, true},
		{"daily miss", models.ScheduleTrigger{Frequency: models.FrequencyDaily, Time: "09:31"}, now, false},
		{"weekly friday", models.ScheduleTrigger{Frequency: models.FrequencyWeekly, Time: "09:30", DayOfWeek: 5}, now, true},
		{"weekly monday", models.ScheduleTrigger{Frequency: models.FrequencyWeekly, Time: "09:30", DayOfWeek: 1}, now, false},
		{"monthly tenth", models.ScheduleTrigger{Frequency: models.FrequencyMonthly, Time: "09:30", DayOfMonth: 10}, now, true},
		{"monthly first", models.ScheduleTrigger{Frequency: models.FrequencyMonthly, Time: "09:30"}, now, false},
		{"cron", models.ScheduleTrigger{Frequency: models.FrequencyCron, Cron: "*/15 9 * * 1-5"}, now, true},
		{"timezone", models.ScheduleTrigger{Frequency: models.FrequencyDaily, Time: "11:30", Timezone: "Europe/Berlin"}, now, true},
		{"invalid time", models.ScheduleTrigger{Frequency: models.FrequencyDaily, Time: "25:00"}, now, false},
		{"invalid cron", models.ScheduleTrigger{Frequency: models.FrequencyCron, Cron: "every day"}, now, false},
		{"unknown frequency", models.ScheduleTrigger{Frequency: "yearly"}, now, false},
	}

	evaluator := newTestLiveEvaluator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matched, err := evaluator.Match(context.Background(), tt.trigger, Context{Now: tt.at})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, matched)
		})
	}
}

func TestEvaluator_UsesClockWhenNowMissing(t *testing.T) {
	t.Parallel()

	evaluator := newTestLiveEvaluator()

	matched, err := evaluator.Match(context.Background(), models.ScheduleTrigger{Frequency: models.FrequencyDaily, Time: "09:30"}, Context{})
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluator_UnknownAndManual(t *testing.T) {
	t.Parallel()

	evaluator := newTestLiveEvaluator()

	matched, err := evaluator.Match(context.Background(), models.ManualTrigger{}, Context{})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = evaluator.Match(context.Background(), models.UnknownTrigger{Type: "form_submitted"}, Context{Record: models.Record{}})
	require.NoError(t, err)
	assert.False(t, matched)

	matched, err = evaluator.Match(context.Background(), nil, Context{})
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestTestEvaluator(t *testing.T) {
	t.Parallel()

	sandbox := NewTestEvaluator(newTestLiveEvaluator())
	sample := models.Record{"status": models.String("done")}

	tests := []struct {
		name          string
		trigger       models.Trigger
		tc            Context
		expected      bool
		expectInvalid bool
	}{
		{"schedule always matches", models.ScheduleTrigger{Frequency: models.FrequencyDaily, Time: "23:59"}, Context{}, true, false},
		{"invalid schedule", models.ScheduleTrigger{Frequency: models.FrequencyDaily, Time: "99:99"}, Context{}, false, true},
		{"manual", models.ManualTrigger{}, Context{}, true, false},
		{"created without sample", models.RecordCreatedTrigger{}, Context{}, false, true},
		{"created with sample", models.RecordCreatedTrigger{Table: "deals"}, Context{Record: sample, Table: models.TableRef{TableName: "contacts"}}, true, false},
		{"updated with lone sample", models.RecordUpdatedTrigger{}, Context{Record: sample}, true, false},
		{"updated with unchanged pair", models.RecordUpdatedTrigger{}, Context{Record: sample, OldRecord: sample.Clone()}, false, false},
		{"updated without sample", models.RecordUpdatedTrigger{}, Context{}, false, true},
		{"field match without sample", models.FieldMatchTrigger{Field: "status", Operator: models.OpEquals}, Context{}, false, true},
		{"field match with sample", models.FieldMatchTrigger{Field: "status", Operator: models.OpEquals, Value: models.String("done")}, Context{Record: sample}, true, false},
		{"date approaching without sample", models.DateApproachingTrigger{DateField: "due", ThresholdDays: 1}, Context{}, false, true},
		{"unknown", models.UnknownTrigger{Type: "webhook"}, Context{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matched, err := sandbox.Match(context.Background(), tt.trigger, tt.tc)
			assert.Equal(t, tt.expected, matched)

			if tt.expectInvalid {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCronSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		trigger  models.ScheduleTrigger
		expected string
	}{
		{models.ScheduleTrigger{Frequency: models.FrequencyEveryMinute}, "* * * * *"},
		{models.ScheduleTrigger{Frequency: models.FrequencyHourly, Time: "10:05"}, "5 * * * *"},
		{models.ScheduleTrigger{Frequency: models.FrequencyDaily, Time: "08:00"}, "0 8 * * *"},
		{models.ScheduleTrigger{Frequency: models.FrequencyWeekly, Time: "18:45", DayOfWeek: 7}, "45 18 * * 0"},
		{models.ScheduleTrigger{Frequency: models.FrequencyMonthly, Time: "06:15", DayOfMonth: 28}, "15 6 28 * *"},
		{models.ScheduleTrigger{Frequency: models.FrequencyCron, Cron: " 0 0 * * * "}, "0 0 * * *"},
	}

	for _, tt := range tests {
		t.Run(string(tt.trigger.Frequency), func(t *testing.T) {
			t.Parallel()

			spec, err := CronSpec(tt.trigger)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec)
		})
	}

	_, err := CronSpec(models.ScheduleTrigger{Frequency: models.FrequencyCron})
	require.ErrorIs(t, err, ErrInvalidSchedule)
}
