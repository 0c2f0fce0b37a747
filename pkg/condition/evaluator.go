// Package condition evaluates condition trees against records.
package condition

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/jonboulle/clockwork"
)

// RelatedFetcher loads the record a related_record condition points to. A nil
// record with a nil error means "not found".
type RelatedFetcher interface {
	FetchRelated(ctx context.Context, table, recordID string) (models.Record, error)
}

// Evaluator evaluates conditions. It never returns an error and never panics
// on malformed input: anything it cannot evaluate is "not satisfied".
type Evaluator struct {
	logger  *slog.Logger
	clock   clockwork.Clock
	fetcher RelatedFetcher
}

// NewEvaluator creates an evaluator. fetcher may be nil, in which case every
// related_record condition fails closed.
func NewEvaluator(logger *slog.Logger, clock clockwork.Clock, fetcher RelatedFetcher) *Evaluator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Evaluator{
		logger:  log.Module(logger, "condition_evaluator"),
		clock:   clock,
		fetcher: fetcher,
	}
}

// EvaluateAll is the top-level combinator: true for an empty list, otherwise
// the AND of every condition in order, stopping at the first false one.
func (e *Evaluator) EvaluateAll(ctx context.Context, conditions []models.Condition, record, old models.Record) bool {
	for _, condition := range conditions {
		if !e.Evaluate(ctx, condition, record, old) {
			return false
		}
	}

	return true
}

func (e *Evaluator) Evaluate(ctx context.Context, condition models.Condition, record, old models.Record) bool {
	switch c := condition.(type) {
	case models.FieldCondition:
		return e.evaluateField(ctx, c, record, old)
	case models.DateCondition:
		return e.evaluateDate(ctx, c, record)
	case models.LogicCondition:
		return e.evaluateLogic(ctx, c, record, old)
	case models.RelatedRecordCondition:
		return e.evaluateRelated(ctx, c, record)
	case models.UnknownCondition:
		e.logger.WarnContext(ctx, "Unknown condition type", "type", c.Type)

		return false
	case nil:
		e.logger.WarnContext(ctx, "Empty condition")

		return false
	default:
		e.logger.WarnContext(ctx, "Unsupported condition", "condition", condition.ConditionType())

		return false
	}
}

func (e *Evaluator) evaluateField(ctx context.Context, c models.FieldCondition, record, old models.Record) bool {
	if c.Operator == models.OpChanged && old == nil {
		return false
	}

	ok, err := CompareField(c.Operator, record.Get(c.FieldKey), c.Value, old.Get(c.FieldKey))
	if err != nil {
		e.logger.WarnContext(ctx, "Unknown field operator", "operator", c.Operator, "field_key", c.FieldKey)

		return false
	}

	return ok
}

func (e *Evaluator) evaluateLogic(ctx context.Context, c models.LogicCondition, record, old models.Record) bool {
	switch strings.ToLower(c.Operator) {
	case models.LogicAnd:
		for _, child := range c.Conditions {
			if !e.Evaluate(ctx, child, record, old) {
				return false
			}
		}

		return true
	case models.LogicOr:
		for _, child := range c.Conditions {
			if e.Evaluate(ctx, child, record, old) {
				return true
			}
		}

		return false
	default:
		e.logger.WarnContext(ctx, "Unknown logic operator", "operator", c.Operator)

		return false
	}
}

func (e *Evaluator) evaluateRelated(ctx context.Context, c models.RelatedRecordCondition, record models.Record) bool {
	if e.fetcher == nil {
		e.logger.WarnContext(ctx, "Related record condition without fetcher", "field_key", c.FieldKey)

		return false
	}

	link := record.Get(c.FieldKey)
	if link.Kind() == models.KindList && len(link.Items()) > 0 {
		link = link.Items()[0]
	}

	if link.IsEmpty() {
		return false
	}

	related, err := e.fetcher.FetchRelated(ctx, c.Table, link.Text())
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to fetch related record",
			"table", c.Table, "record_id", link.Text(), "error", err)

		return false
	}

	if related == nil {
		return false
	}

	return e.EvaluateAll(ctx, c.Conditions, related, nil)
}

func (e *Evaluator) evaluateDate(ctx context.Context, c models.DateCondition, record models.Record) bool {
	actual, actualDateOnly, ok := record.Get(c.FieldKey).Time()
	if !ok {
		return false
	}

	if c.Operator == models.OpBetween {
		bounds := c.Value.Items()
		if len(bounds) != 2 {
			e.logger.WarnContext(ctx, "Between needs two dates", "field_key", c.FieldKey)

			return false
		}

		lower, lowerDateOnly, ok := e.resolveDate(bounds[0])
		if !ok {
			return false
		}

		upper, upperDateOnly, ok := e.resolveDate(bounds[1])
		if !ok {
			return false
		}

		if actualDateOnly || lowerDateOnly || upperDateOnly {
			actual, lower, upper = day(actual), day(lower), day(upper)
		}

		return !actual.Before(lower) && !actual.After(upper)
	}

	expected, expectedDateOnly, ok := e.resolveDate(c.Value)
	if !ok {
		return false
	}

	switch c.Operator {
	case models.OpEquals:
		return day(actual).Equal(day(expected))
	case models.OpBefore, models.OpAfter:
		if actualDateOnly || expectedDateOnly {
			actual, expected = day(actual), day(expected)
		}

		if c.Operator == models.OpBefore {
			return actual.Before(expected)
		}

		return actual.After(expected)
	default:
		e.logger.WarnContext(ctx, "Unknown date operator", "operator", c.Operator, "field_key", c.FieldKey)

		return false
	}
}

// resolveDate reads a condition operand, resolving the "now" and "today"
// tokens against the clock.
func (e *Evaluator) resolveDate(v models.Value) (time.Time, bool, bool) {
	if v.Kind() == models.KindString {
		switch strings.ToLower(strings.TrimSpace(v.Text())) {
		case "now":
			return e.clock.Now().UTC(), false, true
		case "today":
			return day(e.clock.Now()), true, true
		}
	}

	return v.Time()
}

// day truncates to the UTC calendar day.
func day(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
