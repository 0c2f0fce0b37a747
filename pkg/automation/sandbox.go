package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowbase/pkg/actions"
	"github.com/dukex/flowbase/pkg/actions/simulate"
	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/trigger"
)

// TestRequest is a sandbox run of an automation draft.
type TestRequest struct {
	Automation   *models.Automation `json:"automation"`
	SampleRecord models.Record      `json:"sample_record,omitempty"`
	OldRecord    models.Record      `json:"old_record,omitempty"`
	ForceTrigger bool               `json:"force_trigger,omitempty"`
	// Table is the table the sample record belongs to, when known.
	Table models.TableRef `json:"table"`
}

// Sandbox runs the trigger, condition and action pipeline with simulated
// action handlers. It writes no logs and does not touch the rate limiter.
type Sandbox struct {
	triggers   trigger.Matcher
	conditions ConditionEvaluator
	scripts    simulate.Evaluator
	logger     *slog.Logger
}

func NewSandbox(triggers trigger.Matcher, conditions ConditionEvaluator, scripts simulate.Evaluator, logger *slog.Logger) *Sandbox {
	return &Sandbox{
		triggers:   triggers,
		conditions: conditions,
		scripts:    scripts,
		logger:     log.Module(logger, "automation_sandbox"),
	}
}

// Test never fails: problems are reported in the errors of the report.
func (s *Sandbox) Test(ctx context.Context, request TestRequest) (report *models.TestReport) {
	report = &models.TestReport{
		ActionResults: []models.ActionResult{},
		Logs:          []string{},
		Errors:        []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Sandbox run panicked", "panic", r)
			report.Errors = append(report.Errors, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	automation := request.Automation
	if automation == nil {
		report.Errors = append(report.Errors, "automation is required")

		return report
	}

	report.Logs = append(report.Logs, fmt.Sprintf("Testing automation %q", automation.Name))

	matched, err := s.triggers.Match(ctx, automation.Trigger, trigger.Context{
		Record:    request.SampleRecord,
		OldRecord: request.OldRecord,
		Table:     request.Table,
	})
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	switch {
	case matched:
		report.Logs = append(report.Logs, "Trigger matched")
	case request.ForceTrigger:
		matched = true

		report.Logs = append(report.Logs, "Trigger did not match, forced")
	default:
		report.Logs = append(report.Logs, "Trigger did not match")

		return report
	}

	report.TriggerMatched = matched

	report.ConditionsPassed = s.conditions.EvaluateAll(ctx, automation.Conditions, request.SampleRecord, request.OldRecord)
	if !report.ConditionsPassed {
		report.Logs = append(report.Logs, "Conditions not met, no actions would run")

		return report
	}

	report.Logs = append(report.Logs, fmt.Sprintf("Conditions passed (%d)", len(automation.Conditions)))

	handlers := simulate.New(s.scripts)
	executor := actions.NewExecutor(handlers, s.logger)

	report.ActionResults = executor.ExecuteActions(ctx, automation.Actions, &protocol.ActionContext{
		Record:     request.SampleRecord.Clone(),
		OldRecord:  request.OldRecord,
		NewRecord:  request.SampleRecord,
		Automation: automation,
		Table:      request.Table,
	})

	report.Logs = append(report.Logs, handlers.Trace()...)

	for _, result := range report.ActionResults {
		if !result.Success {
			report.Errors = append(report.Errors, fmt.Sprintf("action %s (%s): %s", result.ActionID, result.Type, result.Error))
		}
	}

	return report
}
