// Package script evaluates run_script expressions with expr-lang.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var (
	ErrEmptyExpression = errors.New("empty script expression")
	ErrCompile         = errors.New("script compile error")
	ErrEvaluate        = errors.New("script evaluation failed")
	ErrNotAMap         = errors.New("script result is not a map")
)

// FieldWriter stores fields on the in-flight record.
type FieldWriter interface {
	ApplyFields(ctx context.Context, fields models.Record, actx *protocol.ActionContext) (models.Record, error)
}

// Action runs expressions against {record, old_record, automation}. Compiled
// programs are cached by expression text.
type Action struct {
	writer FieldWriter
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func NewAction(writer FieldWriter, logger *slog.Logger) *Action {
	return &Action{
		writer: writer,
		logger: log.Module(logger, "script_action"),
		cache:  make(map[string]*vm.Program),
	}
}

// Environment builds the variables visible to a script.
func Environment(actx *protocol.ActionContext) map[string]any {
	old := map[string]any{}
	if actx.OldRecord != nil {
		old = actx.OldRecord.ToMap()
	}

	return map[string]any{
		"record":     actx.Record.ToMap(),
		"old_record": old,
		"automation": map[string]any{
			"id":   actx.AutomationID(),
			"name": actx.AutomationName(),
		},
	}
}

// Evaluate compiles (or reuses) the expression and runs it.
func (a *Action) Evaluate(expression string, env map[string]any) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, ErrEmptyExpression
	}

	program, err := a.compile(expression, env)
	if err != nil {
		return nil, err
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluate, err)
	}

	return out, nil
}

func (a *Action) RunScript(ctx context.Context, action models.RunScriptAction, actx *protocol.ActionContext) models.ActionResult {
	out, err := a.Evaluate(action.Expression, Environment(actx))
	if err != nil {
		a.logger.WarnContext(ctx, "Script failed", "action_id", action.ID, "automation_id", actx.AutomationID(), "error", err)

		return models.ActionFailed(err)
	}

	if !action.ApplyToRecord {
		return models.ActionSucceeded(out)
	}

	fields, ok := out.(map[string]any)
	if !ok {
		return models.ActionFailedWithOutput(fmt.Errorf("%w: got %T", ErrNotAMap, out), out)
	}

	if a.writer == nil {
		return models.ActionFailed(errors.New("script cannot write records"))
	}

	updated, err := a.writer.ApplyFields(ctx, models.RecordFromMap(fields), actx)
	if err != nil {
		return models.ActionFailedWithOutput(err, out)
	}

	return models.ActionSucceeded(updated.ToMap())
}

func (a *Action) compile(expression string, env map[string]any) (*vm.Program, error) {
	a.mu.RLock()
	program, ok := a.cache[expression]
	a.mu.RUnlock()

	if ok {
		return program, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if program, ok := a.cache[expression]; ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	a.cache[expression] = program

	return program, nil
}
