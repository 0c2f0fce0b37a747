// Package actions dispatches automation actions to their handlers.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
)

// Observer is notified after every executed action.
type Observer interface {
	ActionExecuted(actionType models.ActionType, success bool, duration time.Duration)
}

// Executor runs actions through a set of handlers. It never returns an error:
// every failure, including a handler panic, becomes a failed ActionResult.
type Executor struct {
	handlers protocol.ActionHandlers
	logger   *slog.Logger
	observer Observer
}

type Option func(*Executor)

// WithObserver reports every executed action to o.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

func NewExecutor(handlers protocol.ActionHandlers, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		handlers: handlers,
		logger:   log.Module(logger, "action_executor"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs a single action.
func (e *Executor) Execute(ctx context.Context, action models.Action, actx *protocol.ActionContext) (result models.ActionResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Action handler panicked",
				"action_id", action.Meta().ID,
				"action_type", action.ActionType(),
				"panic", r,
				"stack", string(debug.Stack()),
			)

			result = models.ActionResult{Success: false, Error: fmt.Sprintf("action panicked: %v", r)}
		}

		result.ActionID = action.Meta().ID
		result.Type = action.ActionType()

		if e.observer != nil {
			e.observer.ActionExecuted(result.Type, result.Success, time.Since(start))
		}
	}()

	return e.dispatch(ctx, action, actx)
}

func (e *Executor) dispatch(ctx context.Context, action models.Action, actx *protocol.ActionContext) models.ActionResult {
	switch a := action.(type) {
	case models.SendEmailAction:
		return e.handlers.SendEmail(ctx, a, actx)
	case models.SendWebhookAction:
		return e.handlers.SendWebhook(ctx, a, actx)
	case models.UpdateRecordAction:
		return e.handlers.UpdateRecord(ctx, a, actx)
	case models.CreateRecordAction:
		return e.handlers.CreateRecord(ctx, a, actx)
	case models.DeleteRecordAction:
		return e.handlers.DeleteRecord(ctx, a, actx)
	case models.SetFieldValueAction:
		return e.handlers.SetFieldValue(ctx, a, actx)
	case models.DuplicateRecordAction:
		return e.handlers.DuplicateRecord(ctx, a, actx)
	case models.RunScriptAction:
		return e.handlers.RunScript(ctx, a, actx)
	case models.UnknownAction:
		e.logger.WarnContext(ctx, "Unknown action type", "action_id", a.ID, "type", a.Type)

		return models.ActionResult{Success: false, Error: "Unknown action type: " + a.Type}
	default:
		return models.ActionResult{Success: false, Error: fmt.Sprintf("Unknown action type: %T", action)}
	}
}

// ExecuteActions runs every action in list order, one after the other, even
// when an earlier action failed. Results are also appended to actx.Results so
// later actions can read them.
func (e *Executor) ExecuteActions(ctx context.Context, actions []models.Action, actx *protocol.ActionContext) []models.ActionResult {
	results := make([]models.ActionResult, 0, len(actions))

	for i, action := range actions {
		if action == nil {
			result := models.ActionResult{Success: false, Error: fmt.Sprintf("action %d is empty", i)}
			results = append(results, result)
			actx.Results = append(actx.Results, result)

			continue
		}

		result := e.Execute(ctx, action, actx)

		if result.Success {
			e.logger.DebugContext(ctx, "Action succeeded", "action_id", result.ActionID, "type", result.Type)
		} else {
			e.logger.WarnContext(ctx, "Action failed",
				"action_id", result.ActionID,
				"type", result.Type,
				"automation_id", actx.AutomationID(),
				"error", result.Error,
			)
		}

		results = append(results, result)
		actx.Results = append(actx.Results, result)
	}

	return results
}
