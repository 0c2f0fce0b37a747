// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/google/uuid"
)

// CreateTestAutomation creates an active automation that sends one email on
// record creation. Overrides are applied in order.
func CreateTestAutomation(overrides ...func(*models.Automation)) *models.Automation {
	now := time.Now().UTC()

	automation := &models.Automation{
		ID:      uuid.New().String(),
		Name:    "Test Automation",
		Status:  models.AutomationStatusActive,
		Trigger: models.RecordCreatedTrigger{},
		Actions: []models.Action{
			models.SendEmailAction{
				ActionMeta: models.ActionMeta{ID: "email", Name: "Email"},
				To:         "{{email}}",
				Subject:    "Hello {{name}}",
				Body:       "Record {{id}} was created",
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(automation)
	}

	return automation
}

func WithID(id string) func(*models.Automation) {
	return func(a *models.Automation) {
		a.ID = id
	}
}

func WithName(name string) func(*models.Automation) {
	return func(a *models.Automation) {
		a.Name = name
	}
}

// WithPaused makes the automation run only when addressed by id.
func WithPaused() func(*models.Automation) {
	return func(a *models.Automation) {
		a.Status = models.AutomationStatusPaused
	}
}

func WithTrigger(trigger models.Trigger) func(*models.Automation) {
	return func(a *models.Automation) {
		a.Trigger = trigger
	}
}

func WithConditions(conditions ...models.Condition) func(*models.Automation) {
	return func(a *models.Automation) {
		a.Conditions = conditions
	}
}

func WithActions(actions ...models.Action) func(*models.Automation) {
	return func(a *models.Automation) {
		a.Actions = actions
	}
}

func WithMinInterval(interval time.Duration) func(*models.Automation) {
	return func(a *models.Automation) {
		a.MinIntervalSeconds = int(interval / time.Second)
	}
}

// CreateTestRecord creates a record with an id, a name and an email.
func CreateTestRecord(overrides models.Record) models.Record {
	record := models.Record{
		models.RecordIDField: models.String(uuid.New().String()),
		"name":               models.String("Ada"),
		"email":              models.String("ada@example.com"),
	}

	for key, value := range overrides {
		record[key] = value
	}

	return record
}
