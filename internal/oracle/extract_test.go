package oracle

import "testing"

func TestExtractJSONPlainObject(t *testing.T) {
	got, err := ExtractJSON(`{"a": 1}`)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != `{"a": 1}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONStripsSurroundingProse(t *testing.T) {
	got, err := ExtractJSON("Sure, here you go:\n```json\n{\"a\": [1, 2]}\n```\nLet me know if that works.")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != `{"a": [1, 2]}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONIgnoresBracesInsideStrings(t *testing.T) {
	got, err := ExtractJSON(`{"note": "looks like {not json} but isn't"}`)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != `{"note": "looks like {not json} but isn't"}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONArrayTopLevel(t *testing.T) {
	got, err := ExtractJSON(`[{"description": "d1", "test_case_name": "t1"}]`)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != `[{"description": "d1", "test_case_name": "t1"}]` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONNoJSONFound(t *testing.T) {
	if _, err := ExtractJSON("no braces or brackets here"); err == nil {
		t.Fatal("expected error when no JSON block present")
	}
}

func TestExtractJSONUnbalanced(t *testing.T) {
	if _, err := ExtractJSON(`{"a": 1`); err == nil {
		t.Fatal("expected error on unbalanced block")
	}
}
