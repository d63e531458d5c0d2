package record

import (
	"bytes"
	"encoding/json"
)

// Record is an insertion-ordered mapping of field keys to values.
//
// Setting an existing key replaces its value in place and keeps its position,
// so output order always follows the order in which columns were first seen.
type Record struct {
	keys []string
	vals map[string]Value
}

// New returns an empty record.
func New() *Record {
	return &Record{vals: make(map[string]Value)}
}

// Len returns the number of keys. A nil record has length 0.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Set stores v under key.
func (r *Record) Set(key string, v Value) {
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
}

// SetString is shorthand for Set(key, String(s)).
func (r *Record) SetString(key, s string) { r.Set(key, String(s)) }

// Get returns the value under key.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.vals[key]
	return v, ok
}

// Text returns the scalar text under key, or "" when absent.
func (r *Record) Text(key string) string {
	v, _ := r.Get(key)
	return v.Text()
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete removes key, keeping the order of the remaining keys.
func (r *Record) Delete(key string) {
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keys...)
}

// Each calls fn for every entry in insertion order.
func (r *Record) Each(fn func(key string, v Value)) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		fn(k, r.vals[k])
	}
}

// AppendTo appends item to the list stored under key, creating the list when
// the key is absent or holds a non-list value.
func (r *Record) AppendTo(key string, items ...*Record) {
	cur, _ := r.Get(key)
	list, _ := cur.AsList()
	next := make([]*Record, 0, len(list)+len(items))
	next = append(next, list...)
	next = append(next, items...)
	r.Set(key, List(next...))
}

// Map converts the record to a plain map (see Value.Any).
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	r.Each(func(k string, v Value) {
		out[k] = v.Any()
	})
	return out
}

// MarshalJSON writes the record as a JSON object in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.vals[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
