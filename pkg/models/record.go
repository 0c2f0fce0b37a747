package models

import (
	"encoding/json"
	"maps"
	"strings"
)

// RecordIDField is the key under which every record carries its identifier.
const RecordIDField = "id"

// Record is one row of a user-defined table: field name to value.
type Record map[string]Value

// RecordFromMap converts a decoded JSON object into a Record.
func RecordFromMap(m map[string]any) Record {
	if m == nil {
		return nil
	}

	record := make(Record, len(m))
	for k, v := range m {
		record[k] = ValueOf(v)
	}

	return record
}

// Get returns the field value or null when the field is absent.
func (r Record) Get(key string) Value {
	if r == nil {
		return Null()
	}

	return r[key]
}

// Has reports whether the field is present, even when null.
func (r Record) Has(key string) bool {
	_, ok := r[key]

	return ok
}

// ID returns the textual record id, or "" when the record has none.
func (r Record) ID() string {
	id := r.Get(RecordIDField)
	if id.IsEmpty() {
		return ""
	}

	return id.Text()
}

// Clone returns a shallow copy; Values are immutable so this is a full copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	return maps.Clone(r)
}

// ToMap returns the plain representation used by store clients and JSON.
func (r Record) ToMap() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v.Any()
	}

	return out
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	*r = RecordFromMap(raw)

	return nil
}

// TableRef addresses a table by stable id or by display name.
type TableRef struct {
	TableID   string `json:"table_id,omitempty"`
	TableName string `json:"table_name,omitempty"`
}

// IsZero reports whether neither id nor name is set.
func (t TableRef) IsZero() bool {
	return t.TableID == "" && t.TableName == ""
}

// Is reports whether name refers to this table by id or by name.
func (t TableRef) Is(name string) bool {
	if name == "" {
		return false
	}

	return name == t.TableID || strings.EqualFold(name, t.TableName)
}

func (t TableRef) String() string {
	if t.TableID != "" {
		return t.TableID
	}

	return t.TableName
}
