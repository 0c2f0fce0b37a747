package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionType discriminates the Action variants on the wire.
type ActionType string

const (
	ActionSendEmail       ActionType = "send_email"
	ActionSendWebhook     ActionType = "send_webhook"
	ActionUpdateRecord    ActionType = "update_record"
	ActionCreateRecord    ActionType = "create_record"
	ActionDeleteRecord    ActionType = "delete_record"
	ActionSetFieldValue   ActionType = "set_field_value"
	ActionDuplicateRecord ActionType = "duplicate_record"
	ActionRunScript       ActionType = "run_script"
)

// ActionTypes lists every action kind the executor dispatches.
var ActionTypes = []ActionType{
	ActionSendEmail,
	ActionSendWebhook,
	ActionUpdateRecord,
	ActionCreateRecord,
	ActionDeleteRecord,
	ActionSetFieldValue,
	ActionDuplicateRecord,
	ActionRunScript,
}

var ErrInvalidAction = errors.New("invalid action")

// Action is one side-effecting step of an automation.
type Action interface {
	ActionType() ActionType
	Meta() ActionMeta
}

// ActionMeta carries the identity shared by every action variant.
type ActionMeta struct {
	ID   string `json:"-"`
	Name string `json:"-"`
}

func (m ActionMeta) Meta() ActionMeta { return m }

type SendEmailAction struct {
	ActionMeta

	To      string `json:"to"`
	Cc      string `json:"cc,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type RetryConfig struct {
	Attempts     int `json:"attempts"`
	DelaySeconds int `json:"delay_seconds"`
}

type SendWebhookAction struct {
	ActionMeta

	URL            string            `json:"url"`
	Method         string            `json:"method,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	Retry          RetryConfig       `json:"retry"`
	// ResponseQuery is an optional jq program applied to the decoded response.
	ResponseQuery string `json:"response_query,omitempty"`
}

type UpdateRecordAction struct {
	ActionMeta

	TableID      string           `json:"table_id,omitempty"`
	TableName    string           `json:"table_name,omitempty"`
	RecordID     string           `json:"record_id,omitempty"`
	FieldUpdates map[string]Value `json:"field_updates"`
}

type CreateRecordAction struct {
	ActionMeta

	TableID   string           `json:"table_id,omitempty"`
	TableName string           `json:"table_name,omitempty"`
	Fields    map[string]Value `json:"fields"`
}

type DeleteRecordAction struct {
	ActionMeta

	TableID   string `json:"table_id,omitempty"`
	TableName string `json:"table_name,omitempty"`
	RecordID  string `json:"record_id,omitempty"`
}

type SetFieldValueAction struct {
	ActionMeta

	Field string `json:"field"`
	Value Value  `json:"value"`
}

type DuplicateRecordAction struct {
	ActionMeta

	TableID   string           `json:"table_id,omitempty"`
	TableName string           `json:"table_name,omitempty"`
	RecordID  string           `json:"record_id,omitempty"`
	Overrides map[string]Value `json:"overrides,omitempty"`
}

type RunScriptAction struct {
	ActionMeta

	Expression    string `json:"expression"`
	ApplyToRecord bool   `json:"apply_to_record,omitempty"`
}

type UnknownAction struct {
	ActionMeta

	Type   string          `json:"-"`
	Config json.RawMessage `json:"-"`
}

func (SendEmailAction) ActionType() ActionType       { return ActionSendEmail }
func (SendWebhookAction) ActionType() ActionType     { return ActionSendWebhook }
func (UpdateRecordAction) ActionType() ActionType    { return ActionUpdateRecord }
func (CreateRecordAction) ActionType() ActionType    { return ActionCreateRecord }
func (DeleteRecordAction) ActionType() ActionType    { return ActionDeleteRecord }
func (SetFieldValueAction) ActionType() ActionType   { return ActionSetFieldValue }
func (DuplicateRecordAction) ActionType() ActionType { return ActionDuplicateRecord }
func (RunScriptAction) ActionType() ActionType       { return ActionRunScript }
func (a UnknownAction) ActionType() ActionType       { return ActionType(a.Type) }

func (a UpdateRecordAction) Table() TableRef {
	return TableRef{TableID: a.TableID, TableName: a.TableName}
}

func (a CreateRecordAction) Table() TableRef {
	return TableRef{TableID: a.TableID, TableName: a.TableName}
}

func (a DeleteRecordAction) Table() TableRef {
	return TableRef{TableID: a.TableID, TableName: a.TableName}
}

func (a DuplicateRecordAction) Table() TableRef {
	return TableRef{TableID: a.TableID, TableName: a.TableName}
}

type actionEnvelope struct {
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// DecodeAction decodes the {"id", "name", "type", "config"} wire form.
//
//nolint:ireturn // sealed sum type
func DecodeAction(data []byte) (Action, error) {
	var envelope actionEnvelope

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}

	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidAction)
	}

	meta := ActionMeta{ID: envelope.ID, Name: envelope.Name}

	config := envelope.Config
	if len(config) == 0 || string(config) == "null" {
		config = json.RawMessage("{}")
	}

	switch ActionType(envelope.Type) {
	case ActionSendEmail:
		return decodeActionConfig(config, meta, func(a *SendEmailAction) { a.ActionMeta = meta })
	case ActionSendWebhook:
		return decodeActionConfig(config, meta, func(a *SendWebhookAction) { a.ActionMeta = meta })
	case ActionUpdateRecord:
		return decodeActionConfig(config, meta, func(a *UpdateRecordAction) { a.ActionMeta = meta })
	case ActionCreateRecord:
		return decodeActionConfig(config, meta, func(a *CreateRecordAction) { a.ActionMeta = meta })
	case ActionDeleteRecord:
		return decodeActionConfig(config, meta, func(a *DeleteRecordAction) { a.ActionMeta = meta })
	case ActionSetFieldValue:
		return decodeActionConfig(config, meta, func(a *SetFieldValueAction) { a.ActionMeta = meta })
	case ActionDuplicateRecord:
		return decodeActionConfig(config, meta, func(a *DuplicateRecordAction) { a.ActionMeta = meta })
	case ActionRunScript:
		return decodeActionConfig(config, meta, func(a *RunScriptAction) { a.ActionMeta = meta })
	default:
		return UnknownAction{ActionMeta: meta, Type: envelope.Type, Config: config}, nil
	}
}

//nolint:ireturn // sealed sum type
func decodeActionConfig[T Action](config json.RawMessage, meta ActionMeta, setMeta func(*T)) (Action, error) {
	var action T

	err := json.Unmarshal(config, &action)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q config: %w", ErrInvalidAction, action.ActionType(), meta.ID, err)
	}

	setMeta(&action)

	return action, nil
}

// DecodeActions decodes a JSON array of actions.
func DecodeActions(data []byte) ([]Action, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var raws []json.RawMessage

	err := json.Unmarshal(data, &raws)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}

	actions := make([]Action, 0, len(raws))

	for i, raw := range raws {
		action, err := DecodeAction(raw)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}

		actions = append(actions, action)
	}

	return actions, nil
}

// EncodeAction produces the {"id", "name", "type", "config"} wire form.
func EncodeAction(a Action) ([]byte, error) {
	meta := a.Meta()

	if unknown, ok := a.(UnknownAction); ok {
		return json.Marshal(actionEnvelope{ID: meta.ID, Name: meta.Name, Type: unknown.Type, Config: unknown.Config})
	}

	config, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}

	return json.Marshal(actionEnvelope{ID: meta.ID, Name: meta.Name, Type: string(a.ActionType()), Config: config})
}

// EncodeActions produces a JSON array of actions.
func EncodeActions(actions []Action) ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(actions))

	for _, action := range actions {
		raw, err := EncodeAction(action)
		if err != nil {
			return nil, err
		}

		raws = append(raws, raw)
	}

	return json.Marshal(raws)
}
