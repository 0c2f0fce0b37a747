// Package memory provides an in-process record store, used by tests, dry runs
// and single-node deployments without a database.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/store"
	"github.com/google/uuid"
)

type table struct {
	order   []string
	records map[string]models.Record
}

// Store keeps every table in memory. Records are copied on the way in and out.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

func NewStore() *Store {
	return &Store{tables: make(map[string]*table)}
}

// CreateTable registers a table in the tables meta table so it can be
// resolved by name.
func (s *Store) CreateTable(ctx context.Context, id, name string) error {
	_, err := s.Insert(ctx, store.TablesTable, models.Record{
		models.RecordIDField: models.String(id),
		"name":               models.String(name),
	})

	return err
}

func (s *Store) Select(_ context.Context, tableID string, filter protocol.Filter) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[tableID]
	if !ok {
		return []models.Record{}, nil
	}

	result := make([]models.Record, 0, len(t.order))

	for _, id := range t.order {
		record := t.records[id]
		if matches(record, filter) {
			result = append(result, record.Clone())
		}
	}

	return result, nil
}

func (s *Store) Insert(_ context.Context, tableID string, record models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := record.Clone()
	if stored == nil {
		stored = models.Record{}
	}

	id := stored.ID()
	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return nil, store.NewRecordError("insert", tableID, "", err)
		}

		id = generated.String()
		stored[models.RecordIDField] = models.String(id)
	}

	t := s.table(tableID)
	if _, exists := t.records[id]; !exists {
		t.order = append(t.order, id)
	}

	t.records[id] = stored

	return stored.Clone(), nil
}

func (s *Store) Update(_ context.Context, tableID, id string, fields models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[tableID]
	if !ok {
		return nil, store.NewRecordError("update", tableID, id, store.ErrRecordNotFound)
	}

	record, ok := t.records[id]
	if !ok {
		return nil, store.NewRecordError("update", tableID, id, store.ErrRecordNotFound)
	}

	updated := record.Clone()
	for key, value := range fields {
		if key == models.RecordIDField {
			continue
		}

		updated[key] = value
	}

	t.records[id] = updated

	return updated.Clone(), nil
}

func (s *Store) Delete(_ context.Context, tableID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[tableID]
	if !ok {
		return store.NewRecordError("delete", tableID, id, store.ErrRecordNotFound)
	}

	if _, ok := t.records[id]; !ok {
		return store.NewRecordError("delete", tableID, id, store.ErrRecordNotFound)
	}

	delete(t.records, id)
	t.order = slices.DeleteFunc(t.order, func(candidate string) bool { return candidate == id })

	return nil
}

func (s *Store) table(tableID string) *table {
	t, ok := s.tables[tableID]
	if !ok {
		t = &table{records: make(map[string]models.Record)}
		s.tables[tableID] = t
	}

	return t
}

// matches compares by text so that an id stored as a number matches a string
// filter, as it does in the SQL store.
func matches(record models.Record, filter protocol.Filter) bool {
	for key, expected := range filter {
		if !record.Has(key) || record.Get(key).Text() != expected.Text() {
			return false
		}
	}

	return true
}
