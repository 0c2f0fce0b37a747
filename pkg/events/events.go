// Package events defines the messages exchanged over the event bus: record
// mutations that feed the engine and batch summaries it emits.
package events

import (
	"time"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every flowbase event.
const Topic = "flowbase.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RecordCreatedEvent  EventType = "record.created"
	RecordUpdatedEvent  EventType = "record.updated"
	BatchCompletedEvent EventType = "automation.batch.completed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
}

// RecordCreated announces a record inserted into a user table.
type RecordCreated struct {
	BaseEvent

	Table  models.TableRef `json:"table"`
	Record models.Record   `json:"record"`
}

func (RecordCreated) GetType() EventType {
	return RecordCreatedEvent
}

func NewRecordCreated(table models.TableRef, record models.Record) RecordCreated {
	return RecordCreated{
		BaseEvent: NewBaseEvent(RecordCreatedEvent),
		Table:     table,
		Record:    record,
	}
}

// RecordUpdated announces a change of a record with both of its versions.
type RecordUpdated struct {
	BaseEvent

	Table     models.TableRef `json:"table"`
	OldRecord models.Record   `json:"old_record"`
	NewRecord models.Record   `json:"new_record"`
}

func (RecordUpdated) GetType() EventType {
	return RecordUpdatedEvent
}

func NewRecordUpdated(table models.TableRef, oldRecord, newRecord models.Record) RecordUpdated {
	return RecordUpdated{
		BaseEvent: NewBaseEvent(RecordUpdatedEvent),
		Table:     table,
		OldRecord: oldRecord,
		NewRecord: newRecord,
	}
}

// BatchCompleted reports the counts of one orchestrated batch. Source names
// what started it: an event type, "schedule", "date_scan" or "api".
type BatchCompleted struct {
	BaseEvent

	Source       string `json:"source"`
	AutomationID string `json:"automation_id,omitempty"`
	RunCount     int    `json:"run_count"`
	SuccessCount int    `json:"success_count"`
	ErrorCount   int    `json:"error_count"`
	SkippedCount int    `json:"skipped_count"`
	DurationMs   int64  `json:"duration_ms"`
}

func (BatchCompleted) GetType() EventType {
	return BatchCompletedEvent
}

func NewBatchCompleted(source, automationID string, summary models.RunSummary, duration time.Duration) BatchCompleted {
	return BatchCompleted{
		BaseEvent:    NewBaseEvent(BatchCompletedEvent),
		Source:       source,
		AutomationID: automationID,
		RunCount:     summary.RunCount,
		SuccessCount: summary.SuccessCount,
		ErrorCount:   summary.ErrorCount,
		SkippedCount: summary.SkippedCount,
		DurationMs:   duration.Milliseconds(),
	}
}
