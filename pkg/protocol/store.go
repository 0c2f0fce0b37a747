// Package protocol defines the collaborators the automation engine depends on.
package protocol

import (
	"context"

	"github.com/dukex/flowbase/pkg/models"
)

// Filter selects records whose fields equal the given values. An empty filter
// selects every record of the table.
type Filter map[string]models.Value

// RecordStore is the generic client of the user data tables. Tables are
// addressed by their stable id.
type RecordStore interface {
	Select(ctx context.Context, table string, filter Filter) ([]models.Record, error)
	Insert(ctx context.Context, table string, record models.Record) (models.Record, error)
	Update(ctx context.Context, table, id string, fields models.Record) (models.Record, error)
	Delete(ctx context.Context, table, id string) error
}

// TableResolver maps a table reference to the table id used by RecordStore.
type TableResolver interface {
	ResolveTable(ctx context.Context, ref models.TableRef) (string, error)
}
