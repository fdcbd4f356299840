package jsonfix

import (
	"encoding/json"
	"testing"
)

func parseResult(t *testing.T, r Result) map[string]any {
	t.Helper()
	raw, ok := r.Parsed()
	if !ok {
		t.Fatalf("result not parseable: %+v", r)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal repaired text %q: %v", r.Text, err)
	}
	return m
}

func TestRepair_ValidPassesThrough(t *testing.T) {
	in := `{"a": 1, "b": [true, null]}`
	r := Repair(in)
	if r.Outcome != OutcomeOK {
		t.Fatalf("Outcome = %s, want ok", r.Outcome)
	}
	if r.Text != in {
		t.Fatalf("Text changed: %q", r.Text)
	}
}

func TestRepair_TrailingComma(t *testing.T) {
	r := Repair(`{"a": 1, "b": 2,}`)
	if r.Outcome != OutcomeRepaired {
		t.Fatalf("Outcome = %s, want repaired", r.Outcome)
	}
	m := parseResult(t, r)
	if m["a"] != float64(1) || m["b"] != float64(2) {
		t.Fatalf("parsed = %v", m)
	}
}

func TestRepair_TruncatedObject(t *testing.T) {
	r := Repair(`{"a": {"b": 1}`)
	if r.Outcome != OutcomeRepaired {
		t.Fatalf("Outcome = %s, want repaired", r.Outcome)
	}
	m := parseResult(t, r)
	inner, ok := m["a"].(map[string]any)
	if !ok || inner["b"] != float64(1) {
		t.Fatalf("parsed = %v", m)
	}
}

func TestRepair_SmartQuotesAndProse(t *testing.T) {
	r := Repair("Here is the result you asked for:\n{“a”: 1}\nHope that helps!")
	if r.Outcome != OutcomeRepaired {
		t.Fatalf("Outcome = %s, want repaired (text %q)", r.Outcome, r.Text)
	}
	m := parseResult(t, r)
	if m["a"] != float64(1) {
		t.Fatalf("parsed = %v", m)
	}
}

func TestRepair_ControlCharacters(t *testing.T) {
	r := Repair("{\"a\":\x01 1}")
	if r.Outcome != OutcomeRepaired {
		t.Fatalf("Outcome = %s, want repaired", r.Outcome)
	}
	if m := parseResult(t, r); m["a"] != float64(1) {
		t.Fatalf("parsed = %v", m)
	}
}

func TestRepair_NestedTrailingCommas(t *testing.T) {
	r := Repair(`{"a": [1, 2,], "b": {"c": 3,},}`)
	if r.Outcome != OutcomeRepaired {
		t.Fatalf("Outcome = %s, want repaired", r.Outcome)
	}
	m := parseResult(t, r)
	if len(m["a"].([]any)) != 2 {
		t.Fatalf("parsed = %v", m)
	}
}

func TestRepair_UnparseableReturnsOriginal(t *testing.T) {
	in := "not json at all"
	r := Repair(in)
	if r.Outcome != OutcomeUnparseable {
		t.Fatalf("Outcome = %s, want unparseable", r.Outcome)
	}
	if r.Text != in {
		t.Fatalf("Text = %q, want original input", r.Text)
	}
	if _, ok := r.Parsed(); ok {
		t.Fatal("Parsed returned ok for unparseable result")
	}
}

func TestRepair_BraceInsideStringNotCounted(t *testing.T) {
	r := Repair(`{"a": "literal } brace", "b": {"c": 1}`)
	if r.Outcome != OutcomeRepaired {
		t.Fatalf("Outcome = %s, want repaired (text %q)", r.Outcome, r.Text)
	}
	m := parseResult(t, r)
	if m["a"] != "literal } brace" {
		t.Fatalf("parsed = %v", m)
	}
}
