// Package record holds the nested result model produced by the extractor:
// an ordered Record of keys to Values, where a Value is exactly one of
// null, string, int, list of records or a nested record.
package record

import (
	"encoding/json"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindList
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Value is a closed tagged union. The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	num  int
	list []*Record
	rec  *Record
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string scalar.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer scalar.
func Int(n int) Value { return Value{kind: KindInt, num: n} }

// List returns a list of records. A nil slice is an empty list.
func List(rs ...*Record) Value {
	if rs == nil {
		rs = []*Record{}
	}
	return Value{kind: KindList, list: rs}
}

// Nested wraps a record as a value.
func Nested(r *Record) Value {
	if r == nil {
		r = New()
	}
	return Value{kind: KindRecord, rec: r}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsScalar reports whether v is null, a string or an int.
func (v Value) IsScalar() bool { return v.kind <= KindInt }

// AsString returns the string payload; ok is false for other variants.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt returns the int payload; ok is false for other variants.
func (v Value) AsInt() (int, bool) { return v.num, v.kind == KindInt }

// AsList returns the list payload; ok is false for other variants.
func (v Value) AsList() ([]*Record, bool) { return v.list, v.kind == KindList }

// AsRecord returns the nested record; ok is false for other variants.
func (v Value) AsRecord() (*Record, bool) { return v.rec, v.kind == KindRecord }

// Text renders a scalar as plain text. Null and containers render as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.Itoa(v.num)
	default:
		return ""
	}
}

// Truthy follows the portal's loose notion of "has a value": null, "",
// "0", 0 and empty containers are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != "" && v.str != "0"
	case KindInt:
		return v.num != 0
	case KindList:
		return len(v.list) > 0
	case KindRecord:
		return v.rec.Len() > 0
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return []byte(strconv.Itoa(v.num)), nil
	case KindList:
		if len(v.list) == 0 {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindRecord:
		return v.rec.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

// Any converts v to plain Go values (string, int, nil, []any, map[string]any).
// Key order is lost; use it for comparisons, not output.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindList:
		out := make([]any, 0, len(v.list))
		for _, r := range v.list {
			out = append(out, r.Map())
		}
		return out
	case KindRecord:
		return v.rec.Map()
	default:
		return nil
	}
}
