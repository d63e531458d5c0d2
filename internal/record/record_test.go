package record

import (
	"encoding/json"
	"reflect"
	"testing"
)

// TestRecord_SetKeepsInsertionOrder verifies that overwriting a key keeps its
// original position and new keys are appended.
func TestRecord_SetKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	r := New()
	r.SetString("b", "1")
	r.SetString("a", "2")
	r.SetString("b", "3")

	if got, want := r.Keys(), []string{"b", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys=%v want %v", got, want)
	}
	if r.Text("b") != "3" {
		t.Fatalf("b=%q want 3", r.Text("b"))
	}
}

func TestRecord_Delete(t *testing.T) {
	t.Parallel()

	r := New()
	r.SetString("a", "1")
	r.SetString("b", "2")
	r.SetString("c", "3")
	r.Delete("b")
	r.Delete("missing")

	if got, want := r.Keys(), []string{"a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys=%v want %v", got, want)
	}
	if r.Has("b") {
		t.Fatalf("b still present")
	}
}

// TestRecord_MarshalJSON verifies objects are emitted in insertion order with
// every value variant rendered.
func TestRecord_MarshalJSON(t *testing.T) {
	t.Parallel()

	child := New()
	child.Set("code", Int(123))
	child.Set("detail", String("Shoulder"))

	r := New()
	r.SetString("z", "last, first")
	r.Set("a", Null())
	r.Set("n", Int(7))
	r.Set("parts", List(child))
	r.Set("empty", List())
	r.Set("nested", Nested(child))

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"z":"last, first","a":null,"n":7,"parts":[{"code":123,"detail":"Shoulder"}],"empty":[],"nested":{"code":123,"detail":"Shoulder"}}`
	if string(b) != want {
		t.Fatalf("json:\nwant=%s\ngot =%s", want, b)
	}
}

func TestRecord_AppendTo(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.SetString("x", "1")
	b.SetString("x", "2")

	r := New()
	r.AppendTo("rows", a)
	r.AppendTo("rows", b)

	v, _ := r.Get("rows")
	list, ok := v.AsList()
	if !ok || len(list) != 2 || list[1].Text("x") != "2" {
		t.Fatalf("unexpected rows: %#v", v.Any())
	}
}

func TestValue_Truthy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{name: "null", v: Null(), want: false},
		{name: "empty_string", v: String(""), want: false},
		{name: "zero_string", v: String("0"), want: false},
		{name: "text", v: String("x"), want: true},
		{name: "zero_int", v: Int(0), want: false},
		{name: "one", v: Int(1), want: true},
		{name: "empty_list", v: List(), want: false},
		{name: "list", v: List(New()), want: true},
		{name: "empty_record", v: Nested(New()), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.Truthy(); got != tc.want {
				t.Fatalf("Truthy()=%v want %v", got, tc.want)
			}
		})
	}
}

func TestValue_Text(t *testing.T) {
	t.Parallel()

	if got := Int(42).Text(); got != "42" {
		t.Fatalf("Int text=%q", got)
	}
	if got := Null().Text(); got != "" {
		t.Fatalf("Null text=%q", got)
	}
	if got := List(New()).Text(); got != "" {
		t.Fatalf("List text=%q", got)
	}
}
