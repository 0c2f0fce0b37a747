// Package web provides the HTTP handlers of the automation API.
package web

import "github.com/dukex/flowbase/pkg/models"

// RunRequest is the optional record context of an explicit run.
type RunRequest struct {
	Record    models.Record   `json:"record,omitempty"`
	OldRecord models.Record   `json:"old_record,omitempty"`
	NewRecord models.Record   `json:"new_record,omitempty"`
	Table     models.TableRef `json:"table"`
}

// RecordEventRequest describes a mutation of a user table record.
type RecordEventRequest struct {
	Type      string          `json:"type"       validate:"required,oneof=record.created record.updated"`
	Table     models.TableRef `json:"table"`
	Record    models.Record   `json:"record,omitempty"`
	OldRecord models.Record   `json:"old_record,omitempty"`
	NewRecord models.Record   `json:"new_record,omitempty"`
}

// RecordEventResponse acknowledges a published record event.
type RecordEventResponse struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// ListAutomationsResponse wraps the automation list.
type ListAutomationsResponse struct {
	Automations []*models.Automation `json:"automations"`
	TotalCount  int                  `json:"total_count"`
}

// ListLogsResponse wraps the newest log entries of an automation.
type ListLogsResponse struct {
	Logs  []*models.AutomationLog `json:"logs"`
	Limit int                     `json:"limit"`
}
