package registry

import (
	"encoding/json"
	"log/slog"

	"github.com/dukex/flowbase/pkg/models"
)

// NewDefaultRegistry returns a registry with every built-in action kind.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	registry := NewRegistry(logger)

	for _, descriptor := range builtins() {
		// builtin schemas are static; a failure here is a programming error
		err := registry.Register(descriptor)
		if err != nil {
			panic(err)
		}
	}

	return registry
}

// actionConfig extracts the "config" member of the action wire form.
func actionConfig(action models.Action) ([]byte, error) {
	raw, err := models.EncodeAction(action)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Config json.RawMessage `json:"config"`
	}

	err = json.Unmarshal(raw, &envelope)
	if err != nil {
		return nil, err
	}

	if len(envelope.Config) == 0 {
		return []byte("{}"), nil
	}

	return envelope.Config, nil
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func nonEmpty(description string) map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "description": description}
}

func fieldMap(description string) map[string]any {
	return map[string]any{"type": "object", "description": description}
}

var tableRequired = []any{
	map[string]any{"required": []any{"table_id"}, "properties": map[string]any{"table_id": map[string]any{"minLength": 1}}},
	map[string]any{"required": []any{"table_name"}, "properties": map[string]any{"table_name": map[string]any{"minLength": 1}}},
}

func builtins() []Descriptor {
	return []Descriptor{
		{
			Type:        models.ActionSendEmail,
			Name:        "Send email",
			Description: "Sends an email with templated recipients, subject and body",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"to", "subject"},
				"properties": map[string]any{
					"to":      nonEmpty("Comma or semicolon separated recipients"),
					"cc":      str("Comma or semicolon separated copy recipients"),
					"subject": nonEmpty("Subject template"),
					"body":    str("Body template"),
				},
			},
		},
		{
			Type:        models.ActionSendWebhook,
			Name:        "Send webhook",
			Description: "Calls an HTTP endpoint with a templated body and optional retries",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"url"},
				"properties": map[string]any{
					"url": nonEmpty("Target URL template"),
					"method": map[string]any{
						"type": "string",
						"enum": []any{"", "GET", "POST", "PUT", "PATCH", "DELETE"},
					},
					"headers":         map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
					"body":            str("Body template; the record is sent as JSON when empty"),
					"timeout_seconds": map[string]any{"type": "integer", "minimum": 0, "maximum": 300},
					"retry": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"attempts":      map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
							"delay_seconds": map[string]any{"type": "integer", "minimum": 0, "maximum": 3600},
						},
					},
					"response_query": str("jq program applied to the JSON response"),
				},
			},
		},
		{
			Type:        models.ActionUpdateRecord,
			Name:        "Update record",
			Description: "Updates fields of a record, the triggering record by default",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"field_updates"},
				"properties": map[string]any{
					"table_id":      str("Table id"),
					"table_name":    str("Table name"),
					"record_id":     str("Record id template"),
					"field_updates": fieldMap("Field values; strings are templates"),
				},
			},
		},
		{
			Type:        models.ActionCreateRecord,
			Name:        "Create record",
			Description: "Inserts a record into a table",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"fields"},
				"anyOf":    tableRequired,
				"properties": map[string]any{
					"table_id":   str("Table id"),
					"table_name": str("Table name"),
					"fields":     fieldMap("Field values; strings are templates"),
				},
			},
		},
		{
			Type:        models.ActionDeleteRecord,
			Name:        "Delete record",
			Description: "Deletes a record, the triggering record by default",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"table_id":   str("Table id"),
					"table_name": str("Table name"),
					"record_id":  str("Record id template"),
				},
			},
		},
		{
			Type:        models.ActionSetFieldValue,
			Name:        "Set field value",
			Description: "Sets one field of the triggering record",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"field"},
				"properties": map[string]any{
					"field": nonEmpty("Field name"),
					"value": map[string]any{"description": "New value; strings are templates"},
				},
			},
		},
		{
			Type:        models.ActionDuplicateRecord,
			Name:        "Duplicate record",
			Description: "Copies a record into the same table with optional overrides",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"table_id":   str("Table id"),
					"table_name": str("Table name"),
					"record_id":  str("Record id template"),
					"overrides":  fieldMap("Field values replacing the copied ones"),
				},
			},
		},
		{
			Type:        models.ActionRunScript,
			Name:        "Run script",
			Description: "Evaluates an expression against the record",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"expression"},
				"properties": map[string]any{
					"expression":      nonEmpty("expr-lang expression"),
					"apply_to_record": map[string]any{"type": "boolean"},
				},
			},
		},
	}
}
