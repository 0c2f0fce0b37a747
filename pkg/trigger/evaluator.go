package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/flowbase/pkg/condition"
	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/jonboulle/clockwork"
)

// Evaluator is the live strategy. Match never returns an error: every trigger
// that cannot be evaluated with the given context simply does not fire.
type Evaluator struct {
	logger *slog.Logger
	clock  clockwork.Clock
}

func NewEvaluator(logger *slog.Logger, clock clockwork.Clock) *Evaluator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Evaluator{
		logger: log.Module(logger, "trigger_evaluator"),
		clock:  clock,
	}
}

func (e *Evaluator) Match(ctx context.Context, trigger models.Trigger, tc Context) (bool, error) {
	if tc.Now.IsZero() {
		tc.Now = e.clock.Now()
	}

	if table := models.TriggerTable(trigger); table != "" && !tc.Table.IsZero() && !tc.Table.Is(table) {
		return false, nil
	}

	switch t := trigger.(type) {
	case models.ScheduleTrigger:
		return e.matchSchedule(ctx, t, tc.Now), nil
	case models.RecordCreatedTrigger:
		return tc.CurrentRecord() != nil, nil
	case models.RecordUpdatedTrigger:
		return recordUpdated(t, tc.OldRecord, tc.CurrentRecord()), nil
	case models.FieldMatchTrigger:
		return e.matchField(ctx, t, tc), nil
	case models.DateApproachingTrigger:
		return dateApproaching(t, tc.CurrentRecord(), tc.Now), nil
	case models.ManualTrigger:
		return true, nil
	case models.UnknownTrigger:
		e.logger.WarnContext(ctx, "Unknown trigger type", "type", t.Type)

		return false, nil
	default:
		return false, nil
	}
}

func (e *Evaluator) matchSchedule(ctx context.Context, t models.ScheduleTrigger, now time.Time) bool {
	schedule, location, err := CompileSchedule(t)
	if err != nil {
		e.logger.WarnContext(ctx, "Invalid schedule trigger", "frequency", t.Frequency, "error", err)

		return false
	}

	return IsActivationMinute(schedule, location, now)
}

func (e *Evaluator) matchField(ctx context.Context, t models.FieldMatchTrigger, tc Context) bool {
	record := tc.CurrentRecord()
	if record == nil {
		return false
	}

	if t.Operator == models.OpChanged && tc.OldRecord == nil {
		return false
	}

	ok, err := condition.CompareField(t.Operator, record.Get(t.Field), t.Value, tc.OldRecord.Get(t.Field))
	if err != nil {
		e.logger.WarnContext(ctx, "Unknown field_match operator", "operator", t.Operator, "field", t.Field)

		return false
	}

	return ok
}

// recordUpdated fires when a watched field differs between old and new. With
// no watched fields, any difference counts.
func recordUpdated(t models.RecordUpdatedTrigger, old, current models.Record) bool {
	if old == nil || current == nil {
		return false
	}

	fields := t.Fields
	if len(fields) == 0 {
		fields = unionKeys(old, current)
	}

	for _, field := range fields {
		changed, _ := condition.CompareField(models.OpChanged, current.Get(field), models.Null(), old.Get(field))
		if changed {
			return true
		}
	}

	return false
}

// dateApproaching fires when the date lies in [now, now+threshold] inclusive.
// Dates without a time of day are compared by calendar day.
func dateApproaching(t models.DateApproachingTrigger, record models.Record, now time.Time) bool {
	if record == nil || t.ThresholdDays < 0 {
		return false
	}

	date, dateOnly, ok := record.Get(t.DateField).Time()
	if !ok {
		return false
	}

	start := now
	end := now.AddDate(0, 0, t.ThresholdDays)

	if dateOnly {
		date, start, end = day(date), day(start), day(end)
	}

	return !date.Before(start) && !date.After(end)
}

func day(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func unionKeys(a, b models.Record) []string {
	keys := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))

	for _, record := range []models.Record{a, b} {
		for key := range record {
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	return keys
}
