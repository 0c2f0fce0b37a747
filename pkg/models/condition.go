package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ConditionType discriminates the Condition variants on the wire.
type ConditionType string

const (
	ConditionField         ConditionType = "field"
	ConditionDate          ConditionType = "date"
	ConditionRelatedRecord ConditionType = "related_record"
	ConditionLogic         ConditionType = "logic"
)

// Field operators shared by field conditions and field_match triggers.
const (
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpContains           = "contains"
	OpNotContains        = "not_contains"
	OpStartsWith         = "starts_with"
	OpEndsWith           = "ends_with"
	OpGreaterThan        = "greater_than"
	OpLessThan           = "less_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpIsEmpty            = "is_empty"
	OpIsNotEmpty         = "is_not_empty"
	OpIn                 = "in"
	OpNotIn              = "not_in"
	OpChanged            = "changed"
)

// Date operators.
const (
	OpBefore  = "before"
	OpAfter   = "after"
	OpBetween = "between"
)

// Logic operators.
const (
	LogicAnd = "and"
	LogicOr  = "or"
)

var ErrInvalidCondition = errors.New("invalid condition")

// Condition is a boolean predicate over a record. Condition trees are finite
// and acyclic since they are decoded from JSON.
type Condition interface {
	ConditionType() ConditionType
	isCondition()
}

type FieldCondition struct {
	FieldKey string `json:"field_key"`
	Operator string `json:"operator"`
	Value    Value  `json:"value"`
}

// DateCondition compares a date field. Value is a date, the tokens "now" and
// "today", or a two element list for the between operator.
type DateCondition struct {
	FieldKey string `json:"field_key"`
	Operator string `json:"operator"`
	Value    Value  `json:"value"`
}

// RelatedRecordCondition follows FieldKey (a link holding the related record
// id) into Table and evaluates Conditions against the related record.
type RelatedRecordCondition struct {
	FieldKey   string
	Table      string
	Conditions []Condition
}

type LogicCondition struct {
	Operator   string
	Conditions []Condition
}

type UnknownCondition struct {
	Type string
	Raw  json.RawMessage
}

func (FieldCondition) ConditionType() ConditionType         { return ConditionField }
func (DateCondition) ConditionType() ConditionType          { return ConditionDate }
func (RelatedRecordCondition) ConditionType() ConditionType { return ConditionRelatedRecord }
func (LogicCondition) ConditionType() ConditionType         { return ConditionLogic }
func (c UnknownCondition) ConditionType() ConditionType     { return ConditionType(c.Type) }

func (FieldCondition) isCondition()         {}
func (DateCondition) isCondition()          {}
func (RelatedRecordCondition) isCondition() {}
func (LogicCondition) isCondition()         {}
func (UnknownCondition) isCondition()       {}

type conditionWire struct {
	Type       string            `json:"type"`
	FieldKey   string            `json:"field_key,omitempty"`
	Operator   string            `json:"operator,omitempty"`
	Value      *Value            `json:"value,omitempty"`
	Table      string            `json:"table,omitempty"`
	Conditions []json.RawMessage `json:"conditions,omitempty"`
}

// DecodeCondition decodes one flat condition object. A payload without a type
// but with a field_key is read as a field condition.
//
//nolint:ireturn // sealed sum type
func DecodeCondition(data []byte) (Condition, error) {
	var wire conditionWire

	err := json.Unmarshal(data, &wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCondition, err)
	}

	if wire.Type == "" && wire.FieldKey != "" {
		wire.Type = string(ConditionField)
	}

	value := Null()
	if wire.Value != nil {
		value = *wire.Value
	}

	switch ConditionType(wire.Type) {
	case ConditionField:
		return FieldCondition{FieldKey: wire.FieldKey, Operator: wire.Operator, Value: value}, nil
	case ConditionDate:
		return DateCondition{FieldKey: wire.FieldKey, Operator: wire.Operator, Value: value}, nil
	case ConditionRelatedRecord:
		children, err := decodeConditionList(wire.Conditions)
		if err != nil {
			return nil, err
		}

		return RelatedRecordCondition{FieldKey: wire.FieldKey, Table: wire.Table, Conditions: children}, nil
	case ConditionLogic:
		children, err := decodeConditionList(wire.Conditions)
		if err != nil {
			return nil, err
		}

		return LogicCondition{Operator: wire.Operator, Conditions: children}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidCondition)
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)

		return UnknownCondition{Type: wire.Type, Raw: raw}, nil
	}
}

// DecodeConditions decodes a JSON array of conditions.
func DecodeConditions(data []byte) ([]Condition, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var raws []json.RawMessage

	err := json.Unmarshal(data, &raws)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCondition, err)
	}

	return decodeConditionList(raws)
}

func decodeConditionList(raws []json.RawMessage) ([]Condition, error) {
	conditions := make([]Condition, 0, len(raws))

	for i, raw := range raws {
		condition, err := DecodeCondition(raw)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}

		conditions = append(conditions, condition)
	}

	return conditions, nil
}

// EncodeCondition produces the flat wire form.
func EncodeCondition(c Condition) ([]byte, error) {
	wire, err := conditionToWire(c)
	if err != nil {
		return nil, err
	}

	return json.Marshal(wire)
}

// EncodeConditions produces a JSON array of flat conditions.
func EncodeConditions(conditions []Condition) ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(conditions))

	for _, condition := range conditions {
		raw, err := EncodeCondition(condition)
		if err != nil {
			return nil, err
		}

		raws = append(raws, raw)
	}

	return json.Marshal(raws)
}

func conditionToWire(c Condition) (any, error) {
	switch v := c.(type) {
	case FieldCondition:
		return conditionWire{Type: string(ConditionField), FieldKey: v.FieldKey, Operator: v.Operator, Value: &v.Value}, nil
	case DateCondition:
		return conditionWire{Type: string(ConditionDate), FieldKey: v.FieldKey, Operator: v.Operator, Value: &v.Value}, nil
	case RelatedRecordCondition:
		children, err := encodeChildren(v.Conditions)
		if err != nil {
			return nil, err
		}

		return conditionWire{
			Type:       string(ConditionRelatedRecord),
			FieldKey:   v.FieldKey,
			Table:      v.Table,
			Conditions: children,
		}, nil
	case LogicCondition:
		children, err := encodeChildren(v.Conditions)
		if err != nil {
			return nil, err
		}

		// an empty list is meaningful for logic nodes
		if children == nil {
			children = []json.RawMessage{}
		}

		return struct {
			Type       string            `json:"type"`
			Operator   string            `json:"operator"`
			Conditions []json.RawMessage `json:"conditions"`
		}{string(ConditionLogic), v.Operator, children}, nil
	case UnknownCondition:
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("%w: unsupported condition %T", ErrInvalidCondition, c)
	}
}

func encodeChildren(conditions []Condition) ([]json.RawMessage, error) {
	if len(conditions) == 0 {
		return nil, nil
	}

	children := make([]json.RawMessage, 0, len(conditions))

	for _, child := range conditions {
		raw, err := EncodeCondition(child)
		if err != nil {
			return nil, err
		}

		children = append(children, raw)
	}

	return children, nil
}
