// Package trigger decides whether an automation trigger fires for an event.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flowbase/pkg/models"
)

// Context is the event an automation trigger is evaluated against.
type Context struct {
	Now       time.Time
	Record    models.Record
	OldRecord models.Record
	NewRecord models.Record
	// Table is the table the event happened on, when known.
	Table models.TableRef
}

// CurrentRecord returns the record the event is about, preferring Record over
// NewRecord.
func (c Context) CurrentRecord() models.Record {
	if c.Record != nil {
		return c.Record
	}

	return c.NewRecord
}

// Matcher is an evaluation strategy for triggers.
type Matcher interface {
	Match(ctx context.Context, trigger models.Trigger, tc Context) (bool, error)
}

var ErrValidation = errors.New("trigger validation failed")

// ValidationError reports a trigger that cannot be evaluated with the data at
// hand, e.g. a record trigger tested without a sample record.
type ValidationError struct {
	TriggerType models.TriggerType
	Message     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s trigger: %s", e.TriggerType, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsValidationError checks if an error is a trigger validation error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}
