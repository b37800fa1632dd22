package sender

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blackcoderx/oasforge/internal/specmodel"
	"github.com/blackcoderx/oasforge/internal/valuestore"
)

func TestSendSubstitutesPathAndQueryAndCapturesJSONBody(t *testing.T) {
	var gotPath, gotQuery, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotMethod = r.Method
		w.Header().Set("X-Request-Id", "abc123")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "42", "tags": ["a","b","c","d","e","f","g","h","i","j","k","l"]}`))
	}))
	defer server.Close()

	op := &specmodel.Operation{
		OpID: "createPet", Verb: "POST", PathTemplate: "/pets/{id}",
	}
	values := valuestore.NewRequestValues()
	values.PathParams["id"] = valuestore.NewLiteral("77")
	values.QueryParams["filter"] = valuestore.NewLiteral("name=fido&extra")
	values.HasBody = true
	values.BodyTree = map[string]any{"name": "Fido"}

	s := New(server.URL)
	record, err := s.Send(op, values)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if record.TransportErr != nil {
		t.Fatalf("unexpected transport error: %v", record.TransportErr)
	}

	if gotMethod != "POST" {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/pets/77" {
		t.Fatalf("expected path substitution, got %q", gotPath)
	}
	if gotQuery == "" {
		t.Fatalf("expected query string to be set")
	}

	if record.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", record.StatusCode)
	}
	if record.StatusClass() != "2" {
		t.Fatalf("expected status class 2, got %q", record.StatusClass())
	}
	if record.Headers["X-Request-Id"] != "abc123" {
		t.Fatalf("expected response header captured, got %+v", record.Headers)
	}

	body, ok := record.Body.(map[string]any)
	if !ok {
		t.Fatalf("expected parsed JSON body, got %T", record.Body)
	}
	tags, ok := body["tags"].([]any)
	if !ok || len(tags) != 11 {
		t.Fatalf("expected truncation to 10 elements plus marker, got %v", body["tags"])
	}
	if tags[10] != truncationMarker {
		t.Fatalf("expected trailing truncation marker, got %v", tags[10])
	}

	if record.FlatBody["id"] != "42" {
		t.Fatalf("expected flat body view, got %+v", record.FlatBody)
	}
}

func TestSendReportsTransportFailureWithoutError(t *testing.T) {
	op := &specmodel.Operation{OpID: "getPet", Verb: "GET", PathTemplate: "/pets/{id}"}
	values := valuestore.NewRequestValues()
	values.PathParams["id"] = valuestore.NewLiteral("1")

	s := New("http://127.0.0.1:1")
	record, err := s.Send(op, values)
	if err != nil {
		t.Fatalf("send should not hard-error on transport failure, got %v", err)
	}
	if record.TransportErr == nil {
		t.Fatal("expected TransportErr to be set")
	}
	if record.StatusClass() != "" {
		t.Fatalf("expected empty status class on transport failure, got %q", record.StatusClass())
	}
}

func TestSendDefaultsContentTypeForJSONBody(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		var decoded map[string]any
		_ = json.NewDecoder(r.Body).Decode(&decoded)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	op := &specmodel.Operation{OpID: "createPet", Verb: "POST", PathTemplate: "/pets"}
	values := valuestore.NewRequestValues()
	values.HasBody = true
	values.BodyTree = map[string]any{"name": "Fido"}

	s := New(server.URL)
	if _, err := s.Send(op, values); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected default application/json content type, got %q", gotContentType)
	}
}
