package baseline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blackcoderx/oasforge/internal/oracle"
	"github.com/blackcoderx/oasforge/internal/planner"
	"github.com/blackcoderx/oasforge/internal/sender"
	"github.com/blackcoderx/oasforge/internal/specmodel"
)

type scriptedTransport struct {
	responses []string
	calls     int
}

func (s *scriptedTransport) ModelID() string { return "scripted" }

func (s *scriptedTransport) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, int, int, error) {
	resp := s.responses[s.calls]
	if s.calls < len(s.responses)-1 {
		s.calls++
	}
	return resp, 1, 1, nil
}

func getUserSpec() *specmodel.SpecModel {
	return &specmodel.SpecModel{
		Operations: []specmodel.Operation{
			{
				OpID: "getUser", Verb: "GET", PathTemplate: "/users/{id}",
				Parameters: []specmodel.Parameter{{Name: "id", In: specmodel.InPath, Required: true}},
				Responses:  map[string]*specmodel.Schema{"200": {}},
			},
		},
	}
}

func TestGenerateSucceedsOnFirstAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": "42", "name": "Ada"}`))
	}))
	defer server.Close()

	ft := &scriptedTransport{responses: []string{`{"path_params": {"id": "42"}}`}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0))
	snd := sender.New(server.URL)
	plan := &planner.Plan{Target: "getUser", Operations: []string{"getUser"}, UsageGuide: "fetch a user"}

	flow, err := Generate(context.Background(), getUserSpec(), plan, o, snd, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if flow.Status != StatusSuccess {
		t.Fatalf("expected Success, got %v", flow.Status)
	}
	if len(flow.Executions) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(flow.Executions))
	}
	if flow.Executions[0].Response.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", flow.Executions[0].Response.StatusCode)
	}
}

func TestGenerateRecoversFromA4xxViaFixValid(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "id must be numeric"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": "42"}`))
	}))
	defer server.Close()

	ft := &scriptedTransport{responses: []string{
		`{"path_params": {"id": "not-a-number"}}`,
		`{"path_params": {"id": "42"}}`,
	}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0))
	snd := sender.New(server.URL)
	plan := &planner.Plan{Target: "getUser", Operations: []string{"getUser"}}

	flow, err := Generate(context.Background(), getUserSpec(), plan, o, snd, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if flow.Status != StatusSuccess {
		t.Fatalf("expected eventual Success, got %v", flow.Status)
	}
	if attempts != 2 {
		t.Fatalf("expected a retry after the 4xx, got %d attempts", attempts)
	}
}

func TestGenerateAbortsOn5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ft := &scriptedTransport{responses: []string{`{"path_params": {"id": "1"}}`}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0))
	snd := sender.New(server.URL)
	plan := &planner.Plan{Target: "getUser", Operations: []string{"getUser"}}

	flow, err := Generate(context.Background(), getUserSpec(), plan, o, snd, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if flow.Status != StatusServerError {
		t.Fatalf("expected ServerError, got %v", flow.Status)
	}
	if len(flow.Executions) != 1 {
		t.Fatalf("expected the 5xx execution to be recorded, got %d", len(flow.Executions))
	}
}

func TestGenerateFailsAfterExhaustingStepBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	ft := &scriptedTransport{responses: []string{`{"path_params": {"id": "1"}}`}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0))
	snd := sender.New(server.URL)
	plan := &planner.Plan{Target: "getUser", Operations: []string{"getUser"}}

	flow, err := Generate(context.Background(), getUserSpec(), plan, o, snd, 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if flow.Status != StatusFailure {
		t.Fatalf("expected Failure after exhausting step budget, got %v", flow.Status)
	}
	if len(flow.Executions) != 0 {
		t.Fatalf("expected no persisted execution for an exhausted step, got %d", len(flow.Executions))
	}
}

func TestComputeLabelsSuffixesRepeats(t *testing.T) {
	labels := computeLabels([]string{"createUser", "getUser", "createUser", "createUser"})
	want := []string{"createUser_1", "getUser", "createUser_2", "createUser_3"}
	for i, w := range want {
		if labels[i] != w {
			t.Fatalf("label %d: want %q, got %q (%v)", i, w, labels[i], labels)
		}
	}
}

func TestComputeLabelsNoRepeatKeepsBareOpID(t *testing.T) {
	labels := computeLabels([]string{"createUser", "getUser"})
	if labels[0] != "createUser" || labels[1] != "getUser" {
		t.Fatalf("expected unsuffixed labels, got %v", labels)
	}
}
