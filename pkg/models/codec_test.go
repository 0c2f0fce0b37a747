package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTrigger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected Trigger
		wantErr  bool
	}{
		{
			name:     "schedule",
			input:    `{"type": "schedule", "config": {"frequency": "daily", "time": "09:00"}}`,
			expected: ScheduleTrigger{Frequency: FrequencyDaily, Time: "09:00"},
		},
		{
			name:     "record updated with fields",
			input:    `{"type": "record_updated", "config": {"table": "Deals", "fields": ["stage"]}}`,
			expected: RecordUpdatedTrigger{Table: "Deals", Fields: []string{"stage"}},
		},
		{
			name:     "field match",
			input:    `{"type": "field_match", "config": {"field": "status", "operator": "equals", "value": "won"}}`,
			expected: FieldMatchTrigger{Field: "status", Operator: OpEquals, Value: String("won")},
		},
		{
			name:     "manual without config",
			input:    `{"type": "manual"}`,
			expected: ManualTrigger{},
		},
		{
			name:     "unknown kind is kept",
			input:    `{"type": "webhook_received", "config": {"path": "/x"}}`,
			expected: UnknownTrigger{Type: "webhook_received", Config: json.RawMessage(`{"path": "/x"}`)},
		},
		{name: "missing type", input: `{"config": {}}`, wantErr: true},
		{name: "bad config", input: `{"type": "date_approaching", "config": {"threshold_days": "soon"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			trigger, err := DecodeTrigger([]byte(tt.input))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTrigger)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, trigger)
		})
	}
}

func TestEncodeTrigger_UnknownKeepsConfig(t *testing.T) {
	t.Parallel()

	data, err := EncodeTrigger(UnknownTrigger{Type: "legacy", Config: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "legacy", "config": {"a": 1}}`, string(data))

	data, err = EncodeTrigger(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestDecodeConditions(t *testing.T) {
	t.Parallel()

	conditions, err := DecodeConditions([]byte(`[
		{"field_key": "amount", "operator": "greater_than", "value": 100},
		{"type": "logic", "operator": "or", "conditions": [
			{"type": "date", "field_key": "due", "operator": "before", "value": "today"},
			{"type": "related_record", "field_key": "company", "table": "Companies", "conditions": [
				{"type": "field", "field_key": "tier", "operator": "equals", "value": "gold"}
			]}
		]},
		{"type": "geo_fence", "radius": 3}
	]`))
	require.NoError(t, err)
	require.Len(t, conditions, 3)

	assert.Equal(t, FieldCondition{FieldKey: "amount", Operator: OpGreaterThan, Value: Number(100)}, conditions[0])

	logic, ok := conditions[1].(LogicCondition)
	require.True(t, ok)
	assert.Equal(t, LogicOr, logic.Operator)
	require.Len(t, logic.Conditions, 2)
	assert.Equal(t, DateCondition{FieldKey: "due", Operator: OpBefore, Value: String("today")}, logic.Conditions[0])

	related, ok := logic.Conditions[1].(RelatedRecordCondition)
	require.True(t, ok)
	assert.Equal(t, "Companies", related.Table)
	require.Len(t, related.Conditions, 1)

	unknown, ok := conditions[2].(UnknownCondition)
	require.True(t, ok)
	assert.Equal(t, ConditionType("geo_fence"), unknown.ConditionType())

	encoded, err := EncodeConditions(conditions)
	require.NoError(t, err)

	decoded, err := DecodeConditions(encoded)
	require.NoError(t, err)
	assert.Equal(t, conditions[:2], decoded[:2])
	assert.JSONEq(t, `{"type": "geo_fence", "radius": 3}`, string(decoded[2].(UnknownCondition).Raw))
}

func TestDecodeConditions_Errors(t *testing.T) {
	t.Parallel()

	_, err := DecodeConditions([]byte(`[{"operator": "equals"}]`))
	require.ErrorIs(t, err, ErrInvalidCondition)

	_, err = DecodeConditions([]byte(`{"type": "field"}`))
	require.ErrorIs(t, err, ErrInvalidCondition)

	conditions, err := DecodeConditions([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, conditions)
}

func TestEncodeConditions_EmptyLogicKeepsList(t *testing.T) {
	t.Parallel()

	data, err := EncodeCondition(LogicCondition{Operator: LogicAnd})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "logic", "operator": "and", "conditions": []}`, string(data))
}

func TestDecodeActions(t *testing.T) {
	t.Parallel()

	actions, err := DecodeActions([]byte(`[
		{"id": "a1", "name": "Notify", "type": "send_email", "config": {"to": "{{email}}", "subject": "Hi"}},
		{"id": "a2", "type": "update_record", "config": {"table_name": "Deals", "field_updates": {"stage": "won", "amount": 5}}},
		{"id": "a3", "type": "send_sms", "config": {"to": "+1"}}
	]`))
	require.NoError(t, err)
	require.Len(t, actions, 3)

	email, ok := actions[0].(SendEmailAction)
	require.True(t, ok)
	assert.Equal(t, ActionMeta{ID: "a1", Name: "Notify"}, email.Meta())
	assert.Equal(t, "{{email}}", email.To)

	update, ok := actions[1].(UpdateRecordAction)
	require.True(t, ok)
	assert.Equal(t, TableRef{TableName: "Deals"}, update.Table())
	assert.True(t, update.FieldUpdates["amount"].Equal(Number(5)))

	unknown, ok := actions[2].(UnknownAction)
	require.True(t, ok)
	assert.Equal(t, ActionType("send_sms"), unknown.ActionType())

	data, err := EncodeAction(email)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "a1", "name": "Notify", "type": "send_email", "config": {"to": "{{email}}", "subject": "Hi", "body": ""}}`, string(data))

	data, err = EncodeAction(unknown)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "a3", "type": "send_sms", "config": {"to": "+1"}}`, string(data))
}

func TestDecodeActions_Errors(t *testing.T) {
	t.Parallel()

	_, err := DecodeActions([]byte(`[{"id": "a1", "config": {}}]`))
	require.ErrorIs(t, err, ErrInvalidAction)

	_, err = DecodeActions([]byte(`[{"id": "a1", "type": "send_webhook", "config": {"url": 12}}]`))
	require.ErrorIs(t, err, ErrInvalidAction)
	assert.Contains(t, err.Error(), `"a1"`)
}

func TestAutomation_JSON(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	automation := Automation{
		ID:                 "auto-1",
		Name:               "Won deals",
		Status:             AutomationStatusActive,
		Trigger:            FieldMatchTrigger{Table: "Deals", Field: "stage", Operator: OpEquals, Value: String("won")},
		Conditions:         []Condition{FieldCondition{FieldKey: "amount", Operator: OpGreaterThan, Value: Number(1000)}},
		Actions:            []Action{SetFieldValueAction{ActionMeta: ActionMeta{ID: "flag"}, Field: "vip", Value: Bool(true)}},
		MinIntervalSeconds: 30,
		CreatedAt:          created,
		UpdatedAt:          created,
	}

	data, err := json.Marshal(automation)
	require.NoError(t, err)

	var decoded Automation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, automation, decoded)
	assert.Equal(t, 30*time.Second, decoded.MinInterval())
	assert.True(t, decoded.IsActive())

	var withoutTrigger Automation
	require.NoError(t, json.Unmarshal([]byte(`{"name": "draft", "trigger": null}`), &withoutTrigger))
	assert.Nil(t, withoutTrigger.Trigger)
}
