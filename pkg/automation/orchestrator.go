// Package automation runs automations: trigger, conditions, rate limit and
// actions, with one log entry per attempt that got past the trigger.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/otelhelper"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/ratelimit"
	"github.com/dukex/flowbase/pkg/trigger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	ReasonPaused          = "Automation is paused"
	ReasonManualOnly      = "Manual automations only run when addressed by id"
	ReasonNoMatch         = "Trigger did not match"
	ReasonConditionsUnmet = "Conditions not met"
)

type ConditionEvaluator interface {
	EvaluateAll(ctx context.Context, conditions []models.Condition, record, old models.Record) bool
}

type ActionRunner interface {
	ExecuteActions(ctx context.Context, actions []models.Action, actx *protocol.ActionContext) []models.ActionResult
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, interval time.Duration, now time.Time) ratelimit.Decision
}

// Recorder receives run metrics.
type Recorder interface {
	AutomationRun(status models.RunStatus, duration time.Duration)
	BatchCompleted(summary models.RunSummary)
}

// BatchContext is the event a batch of automations is evaluated against.
type BatchContext struct {
	Now       time.Time
	Record    models.Record
	OldRecord models.Record
	NewRecord models.Record
	Table     models.TableRef
	// AutomationID is set when the caller addressed one automation explicitly.
	// Paused and manual automations only run in that case.
	AutomationID string
	// LimitPerRecord rate limits each record separately, for batches that
	// run one automation over many records.
	LimitPerRecord bool
}

func (b BatchContext) currentRecord() models.Record {
	if b.Record != nil {
		return b.Record
	}

	return b.NewRecord
}

func (b BatchContext) rateLimitKey(automationID string) string {
	if !b.LimitPerRecord {
		return automationID
	}

	recordID := b.currentRecord().ID()
	if recordID == "" {
		return automationID
	}

	return automationID + "/" + recordID
}

// Dependencies are the collaborators of an Orchestrator. Limiter, Logs,
// Metrics and Tracer are optional.
type Dependencies struct {
	Triggers   trigger.Matcher
	Conditions ConditionEvaluator
	Actions    ActionRunner
	Limiter    RateLimiter
	Logs       protocol.LogWriter
	Metrics    Recorder
	Tracer     trace.Tracer
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// Orchestrator evaluates automations one after the other. A failure inside
// one automation never stops the batch.
type Orchestrator struct {
	triggers   trigger.Matcher
	conditions ConditionEvaluator
	actions    ActionRunner
	limiter    RateLimiter
	logs       protocol.LogWriter
	metrics    Recorder
	tracer     trace.Tracer
	clock      clockwork.Clock
	logger     *slog.Logger
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	if deps.Tracer == nil {
		deps.Tracer = otelhelper.NoopTracer()
	}

	return &Orchestrator{
		triggers:   deps.Triggers,
		conditions: deps.Conditions,
		actions:    deps.Actions,
		limiter:    deps.Limiter,
		logs:       deps.Logs,
		metrics:    deps.Metrics,
		tracer:     deps.Tracer,
		clock:      deps.Clock,
		logger:     log.Module(deps.Logger, "automation_orchestrator"),
	}
}

// Run evaluates automations in the given order and returns a fresh summary.
func (o *Orchestrator) Run(ctx context.Context, automations []*models.Automation, batch BatchContext) models.RunSummary {
	if batch.Now.IsZero() {
		batch.Now = o.clock.Now()
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "automation.batch",
		attribute.Int(otelhelper.BatchSizeKey, len(automations)),
	)
	defer span.End()

	summary := models.RunSummary{Logs: make([]models.RunResult, 0, len(automations))}

	for _, automation := range automations {
		result := o.runOne(ctx, automation, batch)
		summary.Add(result)

		if o.metrics != nil {
			o.metrics.AutomationRun(result.Status, time.Duration(result.DurationMs)*time.Millisecond)
		}
	}

	if o.metrics != nil {
		o.metrics.BatchCompleted(summary)
	}

	o.logger.InfoContext(ctx, "Batch completed",
		"run_count", summary.RunCount,
		"success_count", summary.SuccessCount,
		"error_count", summary.ErrorCount,
		"skipped_count", summary.SkippedCount,
	)

	return summary
}

// runOne is the per-automation fault boundary.
func (o *Orchestrator) runOne(ctx context.Context, automation *models.Automation, batch BatchContext) (result models.RunResult) {
	start := o.clock.Now()

	if automation == nil {
		return models.RunResult{Status: models.RunStatusSkipped, Reason: "empty automation"}
	}

	result = models.RunResult{AutomationID: automation.ID, AutomationName: automation.Name}

	explicit := batch.AutomationID != "" && batch.AutomationID == automation.ID

	if !automation.IsActive() && !explicit {
		result.Status = models.RunStatusSkipped
		result.Reason = ReasonPaused

		return result
	}

	if _, manual := automation.Trigger.(models.ManualTrigger); manual && !explicit {
		result.Status = models.RunStatusSkipped
		result.Reason = ReasonManualOnly

		return result
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "automation.run",
		attribute.String(otelhelper.AutomationIDKey, automation.ID),
		attribute.String(otelhelper.AutomationNameKey, automation.Name),
		attribute.String(otelhelper.TriggerTypeKey, triggerType(automation.Trigger)),
		attribute.String(otelhelper.RecordIDKey, batch.currentRecord().ID()),
	)
	defer span.End()

	logger := o.logger.With("automation_id", automation.ID, "automation_name", automation.Name)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("unexpected failure: %v", r)

			logger.ErrorContext(ctx, "Automation run panicked", "panic", r, "stack", string(debug.Stack()))
			otelhelper.RecordFailure(span, err, attribute.String(otelhelper.AutomationIDKey, automation.ID))

			result.Status = models.RunStatusError
			result.Success = false
			result.Error = err.Error()
			result.DurationMs = o.since(start)

			o.writeLog(ctx, automation, batch, result)
		}

		span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(result.Status)))
	}()

	matched, err := o.triggers.Match(ctx, automation.Trigger, trigger.Context{
		Now:       batch.Now,
		Record:    batch.Record,
		OldRecord: batch.OldRecord,
		NewRecord: batch.NewRecord,
		Table:     batch.Table,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Trigger evaluation failed", "error", err)
		otelhelper.RecordFailure(span, err)

		result.Status = models.RunStatusError
		result.Error = err.Error()
		result.DurationMs = o.since(start)
		o.writeLog(ctx, automation, batch, result)

		return result
	}

	if !matched {
		result.Status = models.RunStatusSkipped
		result.Reason = ReasonNoMatch
		result.DurationMs = o.since(start)

		return result
	}

	record := batch.currentRecord()

	if !o.conditions.EvaluateAll(ctx, automation.Conditions, record, batch.OldRecord) {
		logger.DebugContext(ctx, "Conditions not met")

		result.Status = models.RunStatusSkipped
		result.Success = true
		result.Reason = ReasonConditionsUnmet
		result.DurationMs = o.since(start)
		o.writeLog(ctx, automation, batch, result)

		return result
	}

	if o.limiter != nil {
		decision := o.limiter.Allow(ctx, batch.rateLimitKey(automation.ID), automation.MinInterval(), batch.Now)
		if !decision.Allowed {
			result.Status = models.RunStatusSkipped
			result.Reason = decision.Reason()
			result.Error = decision.Reason()
			result.DurationMs = o.since(start)
			o.writeLog(ctx, automation, batch, result)

			return result
		}
	}

	actx := &protocol.ActionContext{
		Record:     record.Clone(),
		OldRecord:  batch.OldRecord,
		NewRecord:  batch.NewRecord,
		Automation: automation,
		Table:      batch.Table,
	}

	result.ActionResults = o.actions.ExecuteActions(ctx, automation.Actions, actx)
	result.DurationMs = o.since(start)

	for _, actionResult := range result.ActionResults {
		span.AddEvent("action", trace.WithAttributes(
			attribute.String(otelhelper.ActionIDKey, actionResult.ActionID),
			attribute.String(otelhelper.ActionTypeKey, string(actionResult.Type)),
			attribute.Bool("success", actionResult.Success),
		))
	}

	failed := failedActions(result.ActionResults)
	if failed > 0 {
		result.Status = models.RunStatusError
		result.Error = fmt.Sprintf("%d of %d actions failed", failed, len(result.ActionResults))

		logger.WarnContext(ctx, "Automation completed with failed actions", "failed", failed)
	} else {
		result.Status = models.RunStatusSuccess
		result.Success = true

		logger.InfoContext(ctx, "Automation completed", "actions", len(result.ActionResults))
	}

	o.writeLog(ctx, automation, batch, result)

	return result
}

// writeLog persists one log entry. Failures are logged and swallowed.
func (o *Orchestrator) writeLog(ctx context.Context, automation *models.Automation, batch BatchContext, result models.RunResult) {
	if o.logs == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.WarnContext(ctx, "Log writer panicked", "automation_id", automation.ID, "panic", r)
		}
	}()

	errorText := result.Error
	if errorText == "" && result.Status == models.RunStatusSkipped {
		errorText = result.Reason
	}

	entry := &models.AutomationLog{
		ID:           uuid.NewString(),
		AutomationID: automation.ID,
		Status:       result.Status,
		Input: models.LogInput{
			Trigger:    automation.Trigger,
			Conditions: automation.Conditions,
			Record:     batch.currentRecord(),
			OldRecord:  batch.OldRecord,
		},
		Output:     result.ActionResults,
		Error:      errorText,
		DurationMs: result.DurationMs,
		CreatedAt:  o.clock.Now().UTC(),
	}

	err := o.logs.Write(ctx, entry)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to write automation log", "automation_id", automation.ID, "error", err)
	}
}

func (o *Orchestrator) since(start time.Time) int64 {
	return o.clock.Since(start).Milliseconds()
}

func failedActions(results []models.ActionResult) int {
	failed := 0

	for _, result := range results {
		if !result.Success {
			failed++
		}
	}

	return failed
}

func triggerType(t models.Trigger) string {
	if t == nil {
		return ""
	}

	return string(t.TriggerType())
}
