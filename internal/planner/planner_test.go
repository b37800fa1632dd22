package planner

import (
	"context"
	"testing"

	"github.com/blackcoderx/oasforge/internal/oracle"
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

func testSpec() *specmodel.SpecModel {
	return &specmodel.SpecModel{
		Operations: []specmodel.Operation{
			{OpID: "createPet", Verb: "POST", PathTemplate: "/pets", Responses: map[string]*specmodel.Schema{"201": {}}},
			{OpID: "getPet", Verb: "GET", PathTemplate: "/pets/{id}", Responses: map[string]*specmodel.Schema{"200": {}}},
		},
	}
}

func TestPlanAcceptsValidSequence(t *testing.T) {
	ft := &scriptedTransport{responses: []string{`{"operation_sequence": ["createPet", "getPet"], "usage_guide": "create then fetch"}`}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0))

	plan, err := Plan(context.Background(), testSpec(), o, "getPet", "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Operations) != 2 || plan.Operations[1] != "getPet" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.UsageGuide != "create then fetch" {
		t.Fatalf("unexpected guide: %q", plan.UsageGuide)
	}
}

func TestPlanRetriesOnBadLastElement(t *testing.T) {
	ft := &scriptedTransport{responses: []string{
		`{"operation_sequence": ["createPet"], "usage_guide": "wrong"}`,
		`{"operation_sequence": ["createPet", "getPet"], "usage_guide": "fixed"}`,
	}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0))

	plan, err := Plan(context.Background(), testSpec(), o, "getPet", "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.UsageGuide != "fixed" {
		t.Fatalf("expected retry to recover a valid plan, got %+v", plan)
	}
}

func TestPlanFallsBackAfterPersistentFailure(t *testing.T) {
	ft := &scriptedTransport{responses: []string{`{"operation_sequence": ["unknownOp"], "usage_guide": "bad"}`}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0))

	plan, err := Plan(context.Background(), testSpec(), o, "getPet", "")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Operations) != 1 || plan.Operations[0] != "getPet" || plan.UsageGuide != "" {
		t.Fatalf("expected single-target fallback plan, got %+v", plan)
	}
}

func TestPlanUnknownTargetErrors(t *testing.T) {
	o := oracle.New(&scriptedTransport{responses: []string{"{}"}}, oracle.NewAccounting(0, 0))
	if _, err := Plan(context.Background(), testSpec(), o, "doesNotExist", ""); err == nil {
		t.Fatal("expected error for unknown target opId")
	}
}

func TestPlanAllReturnsAPlanPerTarget(t *testing.T) {
	o := oracle.New(&scriptedTransport{responses: []string{`{"operation_sequence": ["createPet", "getPet"], "usage_guide": "g"}`}}, oracle.NewAccounting(0, 0))

	results := PlanAll(context.Background(), testSpec(), o, []string{"getPet", "getPet", "getPet"}, "", 2)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		if r.Plan == nil || len(r.Plan.Operations) != 2 {
			t.Fatalf("unexpected plan result: %+v", r)
		}
	}
}
