// Package store provides access to the user data tables the automations act on.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound indicates no record exists for the given id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrTableNotFound indicates a table reference could not be resolved.
	ErrTableNotFound = errors.New("table not found")
)

// RecordError wraps record store errors with the table and record involved.
type RecordError struct {
	Op       string // Operation being performed (e.g., "select", "update")
	Table    string
	RecordID string
	Err      error
}

func (e *RecordError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%s on table %s: %v", e.Op, e.Table, e.Err)
	}

	return fmt.Sprintf("%s on record %s in table %s: %v", e.Op, e.RecordID, e.Table, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewRecordError(op, table, recordID string, err error) *RecordError {
	return &RecordError{Op: op, Table: table, RecordID: recordID, Err: err}
}

// IsRecordNotFound checks if an error indicates a record was not found.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsTableNotFound checks if an error indicates a table could not be resolved.
func IsTableNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound)
}
