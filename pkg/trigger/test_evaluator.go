package trigger

import (
	"context"

	"github.com/dukex/flowbase/pkg/models"
)

// TestEvaluator is the sandbox strategy. Schedules always match and a record
// trigger without sample data is a *ValidationError instead of a silent miss.
type TestEvaluator struct {
	live *Evaluator
}

func NewTestEvaluator(live *Evaluator) *TestEvaluator {
	return &TestEvaluator{live: live}
}

func (e *TestEvaluator) Match(ctx context.Context, trigger models.Trigger, tc Context) (bool, error) {
	// the sandbox has no event table, so the table binding is not checked
	tc.Table = models.TableRef{}

	switch t := trigger.(type) {
	case models.ScheduleTrigger:
		_, _, err := CompileSchedule(t)
		if err != nil {
			return false, &ValidationError{TriggerType: t.TriggerType(), Message: err.Error()}
		}

		return true, nil
	case models.ManualTrigger:
		return true, nil
	case models.RecordCreatedTrigger, models.FieldMatchTrigger, models.DateApproachingTrigger:
		if tc.CurrentRecord() == nil {
			return false, missingSample(trigger)
		}

		return e.live.Match(ctx, trigger, tc)
	case models.RecordUpdatedTrigger:
		if tc.CurrentRecord() == nil {
			return false, missingSample(trigger)
		}

		// a lone sample record stands for the updated version
		if tc.OldRecord == nil {
			return true, nil
		}

		return e.live.Match(ctx, trigger, tc)
	case models.UnknownTrigger:
		return false, &ValidationError{TriggerType: t.TriggerType(), Message: "unknown trigger type"}
	default:
		return false, &ValidationError{TriggerType: "", Message: "missing trigger"}
	}
}

func missingSample(trigger models.Trigger) *ValidationError {
	return &ValidationError{
		TriggerType: trigger.TriggerType(),
		Message:     "a sample record is required to test this trigger",
	}
}
