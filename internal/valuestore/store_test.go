package valuestore

import "testing"

func TestOverrideUndefinedErasesPrefix(t *testing.T) {
	s := New()
	s.Set("request.body", map[string]any{"name": "Fido"})
	s.Set("request.body.name", "Fido")
	s.Set("request.body.status", "available")

	s.Override([]OverridePair{{Key: "request.body", RawValue: Undefined}})

	if s.Has("request.body") || s.Has("request.body.name") || s.Has("request.body.status") {
		t.Fatal("__undefined override on request.body must erase all descendants")
	}
}

func TestOverrideReplaceExisting(t *testing.T) {
	s := New()
	s.Set("addPet.request.body.name", "Fido")
	s.Override([]OverridePair{{Key: "addPet.request.body.name", RawValue: "ThisNameIsWayTooLongForTheSystem"}})

	v, ok := s.Placeholder("addPet.request.body.name")
	if !ok || v != "ThisNameIsWayTooLongForTheSystem" {
		t.Fatalf("expected replaced literal, got %v (ok=%v)", v, ok)
	}
}

func TestOverrideInsertReplacesDescendants(t *testing.T) {
	s := New()
	s.Set("addPet.request.body.name", "Fido")
	s.Set("addPet.request.body.status", "available")

	s.Override([]OverridePair{{Key: "addPet.request.body", RawValue: map[string]any{"replaced": true}}})

	if s.Has("addPet.request.body.name") || s.Has("addPet.request.body.status") {
		t.Fatal("inserting a prefix key must drop pre-existing descendant keys")
	}
	if !s.Has("addPet.request.body") {
		t.Fatal("expected the new prefix key to be inserted")
	}
}

func TestResolvedDependentChain(t *testing.T) {
	s := New()
	s.Set("createUser.response.body.userId", "11111111-1111-1111-1111-111111111111")
	s.Set("getUser.request.path_params.userId", "{{createUser.response.body.userId}}")

	resolved, err := s.Resolved()
	if err != nil {
		t.Fatalf("resolved: %v", err)
	}
	if resolved["getUser.request.path_params.userId"] != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("expected dependent value resolved, got %v", resolved["getUser.request.path_params.userId"])
	}
}

func TestResolvedUnresolvedReference(t *testing.T) {
	s := New()
	s.Set("getUser.request.path_params.userId", "{{missing.key}}")

	if _, err := s.Resolved(); err == nil {
		t.Fatal("expected ErrUnresolved for a missing reference")
	}
}

func TestResolvedCompositeTemplate(t *testing.T) {
	s := New()
	s.Set("createOrder.response.body.id", float64(42))
	s.Set("note.request.body.text", "order #{{createOrder.response.body.id}} confirmed")

	resolved, err := s.Resolved()
	if err != nil {
		t.Fatalf("resolved: %v", err)
	}
	if resolved["note.request.body.text"] != "order #42 confirmed" {
		t.Fatalf("unexpected composite resolution: %v", resolved["note.request.body.text"])
	}
}
