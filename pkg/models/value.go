package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a dynamically typed field value of a user-defined table record.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	date time.Time
	list []Value
}

func Null() Value                { return Value{} }
func String(s string) Value      { return Value{kind: KindString, str: s} }
func Number(f float64) Value     { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Date(t time.Time) Value     { return Value{kind: KindDate, date: t} }
func List(values ...Value) Value { return Value{kind: KindList, list: values} }

// ValueOf converts a decoded JSON or database value into a Value.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case []byte:
		return String(string(t))
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}

		return Number(f)
	case time.Time:
		return Date(t)
	case *time.Time:
		if t == nil {
			return Null()
		}

		return Date(*t)
	case []Value:
		return List(t...)
	case []any:
		values := make([]Value, 0, len(t))
		for _, item := range t {
			values = append(values, ValueOf(item))
		}

		return List(values...)
	case []string:
		values := make([]Value, 0, len(t))
		for _, item := range t {
			values = append(values, String(item))
		}

		return List(values...)
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return String(fmt.Sprintf("%v", t))
		}

		return String(string(encoded))
	}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) Items() []Value { return v.list }

// IsEmpty reports whether the value is null, a blank string or an empty list.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	case KindList:
		return len(v.list) == 0
	default:
		return false
	}
}

// Text renders the value the way it appears inside templates.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.date.Format(time.RFC3339)
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, item := range v.list {
			parts = append(parts, item.Text())
		}

		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func (v Value) String() string { return v.Text() }

// Float coerces the value to a number. Values without a numeric reading
// become NaN, which compares false against everything.
func (v Value) Float() float64 {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return math.NaN()
		}

		return f
	case KindBool:
		if v.b {
			return 1
		}

		return 0
	default:
		return math.NaN()
	}
}

var dateLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02", true},
}

// Time coerces the value to a point in time. dateOnly is true when the source
// carried no time of day (e.g. "2024-05-10").
func (v Value) Time() (t time.Time, dateOnly bool, ok bool) {
	switch v.kind {
	case KindDate:
		return v.date, false, true
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return time.Time{}, false, false
		}

		return time.UnixMilli(int64(v.num)).UTC(), false, true
	case KindString:
		s := strings.TrimSpace(v.str)
		for _, candidate := range dateLayouts {
			parsed, err := time.Parse(candidate.layout, s)
			if err == nil {
				return parsed, candidate.dateOnly, true
			}
		}

		return time.Time{}, false, false
	default:
		return time.Time{}, false, false
	}
}

// Equal compares two values structurally. Numbers compare by value, dates by
// instant and lists element-wise.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindDate:
		return v.date.Equal(other.date)
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}

		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// Any returns the plain Go representation used for JSON and database drivers.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindDate:
		return v.date.Format(time.RFC3339Nano)
	case KindList:
		items := make([]any, 0, len(v.list))
		for _, item := range v.list {
			items = append(items, item.Any())
		}

		return items
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.num) || math.IsInf(v.num, 0)) {
		return []byte("null"), nil
	}

	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	*v = ValueOf(raw)

	return nil
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}

	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}
