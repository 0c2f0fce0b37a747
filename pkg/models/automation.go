// Package models defines the domain model of the automation engine: automations
// with their trigger, conditions and actions, dynamic record values and run
// results.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AutomationStatus represents whether an automation runs automatically.
type AutomationStatus string

const (
	AutomationStatusActive AutomationStatus = "active" // Eligible for unsolicited runs
	AutomationStatusPaused AutomationStatus = "paused" // Only runs when addressed by id
)

// Automation is a user-authored workflow. The engine treats it as read-only.
type Automation struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"        validate:"required,min=1"`
	Description string           `json:"description"`
	Status      AutomationStatus `json:"status"      validate:"required,oneof=active paused"`
	Trigger     Trigger          `json:"trigger"     validate:"required"`
	Conditions  []Condition      `json:"conditions"`
	Actions     []Action         `json:"actions"`
	// MinIntervalSeconds is the minimum time between two runs. Zero falls back
	// to the engine default.
	MinIntervalSeconds int       `json:"min_interval_seconds,omitempty" validate:"gte=0"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IsActive reports whether the automation runs on unsolicited events.
func (a *Automation) IsActive() bool {
	return a.Status == AutomationStatusActive
}

// MinInterval returns the configured minimum run interval.
func (a *Automation) MinInterval() time.Duration {
	return time.Duration(a.MinIntervalSeconds) * time.Second
}

type automationWire struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Status             AutomationStatus `json:"status"`
	Trigger            json.RawMessage  `json:"trigger"`
	Conditions         json.RawMessage  `json:"conditions"`
	Actions            json.RawMessage  `json:"actions"`
	MinIntervalSeconds int              `json:"min_interval_seconds,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (a Automation) MarshalJSON() ([]byte, error) {
	trigger, err := EncodeTrigger(a.Trigger)
	if err != nil {
		return nil, fmt.Errorf("automation %s trigger: %w", a.ID, err)
	}

	conditions, err := EncodeConditions(a.Conditions)
	if err != nil {
		return nil, fmt.Errorf("automation %s conditions: %w", a.ID, err)
	}

	actions, err := EncodeActions(a.Actions)
	if err != nil {
		return nil, fmt.Errorf("automation %s actions: %w", a.ID, err)
	}

	return json.Marshal(automationWire{
		ID:                 a.ID,
		Name:               a.Name,
		Description:        a.Description,
		Status:             a.Status,
		Trigger:            trigger,
		Conditions:         conditions,
		Actions:            actions,
		MinIntervalSeconds: a.MinIntervalSeconds,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	})
}

func (a *Automation) UnmarshalJSON(data []byte) error {
	var wire automationWire

	err := json.Unmarshal(data, &wire)
	if err != nil {
		return err
	}

	var trigger Trigger
	if len(wire.Trigger) > 0 && string(wire.Trigger) != "null" {
		trigger, err = DecodeTrigger(wire.Trigger)
		if err != nil {
			return err
		}
	}

	conditions, err := DecodeConditions(wire.Conditions)
	if err != nil {
		return err
	}

	actions, err := DecodeActions(wire.Actions)
	if err != nil {
		return err
	}

	*a = Automation{
		ID:                 wire.ID,
		Name:               wire.Name,
		Description:        wire.Description,
		Status:             wire.Status,
		Trigger:            trigger,
		Conditions:         conditions,
		Actions:            actions,
		MinIntervalSeconds: wire.MinIntervalSeconds,
		CreatedAt:          wire.CreatedAt,
		UpdatedAt:          wire.UpdatedAt,
	}

	return nil
}
