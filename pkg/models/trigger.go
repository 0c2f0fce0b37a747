package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TriggerType discriminates the Trigger variants on the wire.
type TriggerType string

const (
	TriggerSchedule        TriggerType = "schedule"
	TriggerRecordCreated   TriggerType = "record_created"
	TriggerRecordUpdated   TriggerType = "record_updated"
	TriggerFieldMatch      TriggerType = "field_match"
	TriggerDateApproaching TriggerType = "date_approaching"
	TriggerManual          TriggerType = "manual"
)

// ErrInvalidTrigger is returned when a trigger payload cannot be decoded.
var ErrInvalidTrigger = errors.New("invalid trigger")

// Trigger decides whether an automation is a candidate for a given event.
// The set of implementations is closed; UnknownTrigger only appears when a
// payload carries a type this version does not understand.
type Trigger interface {
	TriggerType() TriggerType
	isTrigger()
}

// ScheduleFrequency is the cadence of a schedule trigger.
type ScheduleFrequency string

const (
	FrequencyEveryMinute ScheduleFrequency = "every_minute"
	FrequencyHourly      ScheduleFrequency = "hourly"
	FrequencyDaily       ScheduleFrequency = "daily"
	FrequencyWeekly      ScheduleFrequency = "weekly"
	FrequencyMonthly     ScheduleFrequency = "monthly"
	FrequencyCron        ScheduleFrequency = "cron"
)

type ScheduleTrigger struct {
	Frequency ScheduleFrequency `json:"frequency"`
	// Time is the wall-clock time of day as "HH:MM". For hourly schedules only
	// the minutes are used.
	Time       string `json:"time,omitempty"`
	DayOfWeek  int    `json:"day_of_week,omitempty"`
	DayOfMonth int    `json:"day_of_month,omitempty"`
	Cron       string `json:"cron,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

type RecordCreatedTrigger struct {
	Table string `json:"table,omitempty"`
}

type RecordUpdatedTrigger struct {
	Table string `json:"table,omitempty"`
	// Fields lists the watched fields; empty watches every field.
	Fields []string `json:"fields,omitempty"`
}

type FieldMatchTrigger struct {
	Table    string `json:"table,omitempty"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    Value  `json:"value"`
}

type DateApproachingTrigger struct {
	Table         string `json:"table,omitempty"`
	DateField     string `json:"date_field"`
	ThresholdDays int    `json:"threshold_days"`
}

type ManualTrigger struct{}

type UnknownTrigger struct {
	Type   string          `json:"-"`
	Config json.RawMessage `json:"-"`
}

func (ScheduleTrigger) TriggerType() TriggerType        { return TriggerSchedule }
func (RecordCreatedTrigger) TriggerType() TriggerType   { return TriggerRecordCreated }
func (RecordUpdatedTrigger) TriggerType() TriggerType   { return TriggerRecordUpdated }
func (FieldMatchTrigger) TriggerType() TriggerType      { return TriggerFieldMatch }
func (DateApproachingTrigger) TriggerType() TriggerType { return TriggerDateApproaching }
func (ManualTrigger) TriggerType() TriggerType          { return TriggerManual }
func (t UnknownTrigger) TriggerType() TriggerType       { return TriggerType(t.Type) }

func (ScheduleTrigger) isTrigger()        {}
func (RecordCreatedTrigger) isTrigger()   {}
func (RecordUpdatedTrigger) isTrigger()   {}
func (FieldMatchTrigger) isTrigger()      {}
func (DateApproachingTrigger) isTrigger() {}
func (ManualTrigger) isTrigger()          {}
func (UnknownTrigger) isTrigger()         {}

// TriggerTable returns the table a record-based trigger is bound to.
func TriggerTable(t Trigger) string {
	switch v := t.(type) {
	case RecordCreatedTrigger:
		return v.Table
	case RecordUpdatedTrigger:
		return v.Table
	case FieldMatchTrigger:
		return v.Table
	case DateApproachingTrigger:
		return v.Table
	default:
		return ""
	}
}

// IsRecordTrigger reports whether the trigger needs record data to fire.
func IsRecordTrigger(t Trigger) bool {
	switch t.(type) {
	case RecordCreatedTrigger, RecordUpdatedTrigger, FieldMatchTrigger, DateApproachingTrigger:
		return true
	default:
		return false
	}
}

type triggerEnvelope struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// DecodeTrigger decodes the {"type", "config"} wire form.
//
//nolint:ireturn // sealed sum type
func DecodeTrigger(data []byte) (Trigger, error) {
	var envelope triggerEnvelope

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
	}

	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidTrigger)
	}

	config := envelope.Config
	if len(config) == 0 || string(config) == "null" {
		config = json.RawMessage("{}")
	}

	switch TriggerType(envelope.Type) {
	case TriggerSchedule:
		return decodeTriggerConfig[ScheduleTrigger](config)
	case TriggerRecordCreated:
		return decodeTriggerConfig[RecordCreatedTrigger](config)
	case TriggerRecordUpdated:
		return decodeTriggerConfig[RecordUpdatedTrigger](config)
	case TriggerFieldMatch:
		return decodeTriggerConfig[FieldMatchTrigger](config)
	case TriggerDateApproaching:
		return decodeTriggerConfig[DateApproachingTrigger](config)
	case TriggerManual:
		return ManualTrigger{}, nil
	default:
		return UnknownTrigger{Type: envelope.Type, Config: config}, nil
	}
}

//nolint:ireturn // sealed sum type
func decodeTriggerConfig[T Trigger](config json.RawMessage) (Trigger, error) {
	var trigger T

	err := json.Unmarshal(config, &trigger)
	if err != nil {
		return nil, fmt.Errorf("%w: %s config: %w", ErrInvalidTrigger, trigger.TriggerType(), err)
	}

	return trigger, nil
}

// EncodeTrigger produces the {"type", "config"} wire form.
func EncodeTrigger(t Trigger) ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}

	if unknown, ok := t.(UnknownTrigger); ok {
		return json.Marshal(triggerEnvelope{Type: unknown.Type, Config: unknown.Config})
	}

	config, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	return json.Marshal(triggerEnvelope{Type: string(t.TriggerType()), Config: config})
}
