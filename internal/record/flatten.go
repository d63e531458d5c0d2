package record

import (
	"strconv"
	"strings"
)

// Flatten collapses a nested value into one single-level record.
//
// Lists, and records whose keys are all non-negative integers, are walked
// positionally. Nested containers are flattened recursively and merged into
// the result; later keys overwrite earlier ones. String scalars are trimmed.
// A scalar input yields an empty record.
//
// The input must be acyclic. Trees built by this module always are.
func Flatten(v Value) *Record {
	out := New()
	flattenInto(out, v)
	return out
}

func flattenInto(out *Record, v Value) {
	switch v.kind {
	case KindList:
		for i, r := range v.list {
			mergeEntry(out, strconv.Itoa(i), Nested(r))
		}
	case KindRecord:
		positional := numericKeys(v.rec)
		i := 0
		v.rec.Each(func(k string, child Value) {
			if positional {
				k = strconv.Itoa(i)
			}
			i++
			mergeEntry(out, k, child)
		})
	}
}

func mergeEntry(out *Record, key string, v Value) {
	switch v.kind {
	case KindList, KindRecord:
		flattenInto(out, v)
	case KindString:
		out.Set(key, String(strings.TrimSpace(v.str)))
	default:
		out.Set(key, v)
	}
}

// numericKeys reports whether r is non-empty and every key is a decimal index.
func numericKeys(r *Record) bool {
	if r.Len() == 0 {
		return false
	}
	for _, k := range r.keys {
		if k == "" {
			return false
		}
		for _, c := range k {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}
