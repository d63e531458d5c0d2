// Package builtin contains simple, reusable transforms applied to extracted
// records before they are stored.
package builtin

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"eams/internal/record"
)

// Hash computes a deterministic SHA-256 over a record.
//
// The hash is the dedupe key of stored results: the same case row extracted
// twice hashes identically, whatever the key order the page produced.
//
// Canonicalization rules:
//   - With Fields set, only those keys are used, in the given order. Otherwise
//     every key is used, sorted.
//   - Components are joined with Separator.
//   - Missing and null values are encoded as a single NUL byte (0x00) so
//     missing differs from empty-string.
//   - Nested records are canonicalized recursively with sorted keys; lists
//     keep their order.
//   - Output is a lowercase hex string (length 64).
type Hash struct {
	// Fields is the ordered list of keys used to compute the hash.
	Fields []string

	// IncludeFieldNames includes "field=value" in the canonical form.
	IncludeFieldNames bool

	// Separator used between components. Defaults to ASCII Unit Separator.
	Separator string

	// TrimSpace trims leading/trailing whitespace of string values.
	TrimSpace bool
}

// Sum returns the hex hash of r.
func (h Hash) Sum(r *record.Record) string {
	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}
	fields := h.Fields
	if len(fields) == 0 {
		fields = sortedKeys(r)
	}

	var b strings.Builder
	b.Grow(len(fields) * 20)
	for i, f := range fields {
		if i > 0 {
			b.WriteString(sep)
		}
		if h.IncludeFieldNames {
			b.WriteString(f)
			b.WriteByte('=')
		}
		v, ok := r.Get(f)
		if !ok {
			b.WriteByte('\x00')
			continue
		}
		h.appendCanonicalValue(&b, v, sep)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// appendCanonicalValue appends a stable representation of v.
func (h Hash) appendCanonicalValue(b *strings.Builder, v record.Value, sep string) {
	switch v.Kind() {
	case record.KindString:
		s, _ := v.AsString()
		if h.TrimSpace && HasEdgeSpace(s) {
			s = strings.TrimSpace(s)
		}
		b.WriteString(s)

	case record.KindInt:
		n, _ := v.AsInt()
		b.WriteString(strconv.Itoa(n))

	case record.KindList:
		list, _ := v.AsList()
		b.WriteByte('[')
		for i, r := range list {
			if i > 0 {
				b.WriteString(sep)
			}
			h.appendRecord(b, r, sep)
		}
		b.WriteByte(']')

	case record.KindRecord:
		r, _ := v.AsRecord()
		h.appendRecord(b, r, sep)

	default:
		b.WriteByte('\x00')
	}
}

func (h Hash) appendRecord(b *strings.Builder, r *record.Record, sep string) {
	b.WriteByte('{')
	for i, k := range sortedKeys(r) {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(k)
		b.WriteByte('=')
		v, _ := r.Get(k)
		h.appendCanonicalValue(b, v, sep)
	}
	b.WriteByte('}')
}

func sortedKeys(r *record.Record) []string {
	if r == nil {
		return nil
	}
	keys := append([]string(nil), r.Keys()...)
	sort.Strings(keys)
	return keys
}

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
