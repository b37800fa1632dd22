package negative

import (
	"context"
	"testing"

	"github.com/blackcoderx/oasforge/internal/baseline"
	"github.com/blackcoderx/oasforge/internal/oracle"
	"github.com/blackcoderx/oasforge/internal/specmodel"
	"github.com/blackcoderx/oasforge/internal/valuestore"
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

func successfulFlow() *baseline.OperationFlow {
	store := valuestore.New()
	store.Set("getUser.request.path_params.id", "42")
	store.Set("getUser.response.status_code", float64(200))
	store.Set("getUser.response.body.id", "42")

	return &baseline.OperationFlow{
		Target:     "getUser",
		Plan:       []string{"getUser"},
		UsageGuide: "fetch a user",
		Executions: []baseline.OperationExecution{{Label: "getUser", OpID: "getUser"}},
		Status:     baseline.StatusSuccess,
		Values:     store,
	}
}

func testSpec() *specmodel.SpecModel {
	return &specmodel.SpecModel{Operations: []specmodel.Operation{
		{OpID: "getUser", Verb: "GET", PathTemplate: "/users/{id}"},
	}}
}

func TestGenerateAlwaysIncludesValidScenario(t *testing.T) {
	o := oracle.New(&scriptedTransport{responses: []string{"[]"}}, oracle.NewAccounting(0, 0))
	scenarios, failed, err := Generate(context.Background(), o, testSpec(), successfulFlow(), Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failures with both toggles off, got %+v", failed)
	}
	if len(scenarios) != 1 || scenarios[0].Name != "validRequest" || scenarios[0].Kind != KindValid {
		t.Fatalf("expected exactly the valid scenario, got %+v", scenarios)
	}
}

func TestGenerateStructuralScenarioForcesStatusOverride(t *testing.T) {
	ft := &scriptedTransport{responses: []string{
		`[{"description": "id is not numeric", "test_case_name": "nonNumericId"}]`,
		`{"getUser.request.path_params.id": "not-a-number"}`,
	}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0))

	scenarios, failed, err := Generate(context.Background(), o, testSpec(), successfulFlow(), Options{Structural: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failed materializations, got %+v", failed)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected valid + 1 structural scenario, got %d", len(scenarios))
	}

	var structural *Scenario
	for i := range scenarios {
		if scenarios[i].Kind == KindStructural {
			structural = &scenarios[i]
		}
	}
	if structural == nil {
		t.Fatal("expected a structural scenario")
	}
	if structural.Name != "nonNumericId_ST" {
		t.Fatalf("expected _ST suffix, got %q", structural.Name)
	}

	status, ok := structural.Values.Placeholder("getUser.response.status_code")
	if !ok || status.(float64) != float64(DefaultForceStatus) {
		t.Fatalf("expected forced status override to %d, got %v", DefaultForceStatus, status)
	}

	id, _ := structural.Values.Placeholder("getUser.request.path_params.id")
	if id != "not-a-number" {
		t.Fatalf("expected overlay id applied, got %v", id)
	}
}

func TestGenerateForcesStatusOverrideEvenWhenOracleProposesAnotherFourxx(t *testing.T) {
	ft := &scriptedTransport{responses: []string{
		`[{"description": "delete a non-existent user", "test_case_name": "deleteMissingUser"}]`,
		`{"getUser.request.path_params.id": "00000000-0000-0000-0000-000000000000", "getUser.response.status_code": 404}`,
	}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0))

	scenarios, failed, err := Generate(context.Background(), o, testSpec(), successfulFlow(), Options{Functional: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failed materializations, got %+v", failed)
	}

	var functional *Scenario
	for i := range scenarios {
		if scenarios[i].Kind == KindFunctional {
			functional = &scenarios[i]
		}
	}
	if functional == nil {
		t.Fatal("expected a functional scenario")
	}

	status, ok := functional.Values.Placeholder("getUser.response.status_code")
	if !ok || status.(float64) != float64(DefaultForceStatus) {
		t.Fatalf("expected oracle's 404 to be overwritten with the forced %d, got %v", DefaultForceStatus, status)
	}
}

func TestGenerateLogsFailedMaterializationAfterRetries(t *testing.T) {
	ft := &scriptedTransport{responses: []string{
		`[{"description": "break it", "test_case_name": "broken"}]`,
		"not json at all", "not json at all", "not json at all", "not json at all",
	}}
	o := oracle.New(ft, oracle.NewAccounting(0, 0), oracle.WithMaxRetries(0))

	scenarios, failed, err := Generate(context.Background(), o, testSpec(), successfulFlow(), Options{Structural: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(scenarios) != 1 {
		t.Fatalf("expected only the valid scenario to survive, got %d", len(scenarios))
	}
	if len(failed) != 1 || failed[0].Name != "broken_ST" {
		t.Fatalf("expected a logged failed materialization, got %+v", failed)
	}
}
