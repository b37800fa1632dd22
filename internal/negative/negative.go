// Package negative implements the negative-scenario generator of
// spec.md §4.7: from a successful OperationFlow it brainstorms
// structural and functional violations via the oracle, then
// materializes each into a concrete ScenarioValues overlay.
package negative

import (
	"context"
	"fmt"
	"sort"

	"github.com/blackcoderx/oasforge/internal/baseline"
	"github.com/blackcoderx/oasforge/internal/oracle"
	"github.com/blackcoderx/oasforge/internal/specmodel"
	"github.com/blackcoderx/oasforge/internal/valuestore"
)

// Kind tags a TestScenario's origin, per spec.md §3.
type Kind int

const (
	KindValid Kind = iota
	KindStructural
	KindFunctional
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "Structural"
	case KindFunctional:
		return "Functional"
	default:
		return "Valid"
	}
}

// DefaultForceStatus is the forced 4xx override applied when the
// oracle's materialized overlay omits or mis-targets the status-code
// override, per spec.md §4.7 ("forces <target>.response.status_code =
// 400"), exposed as --negative-status-override.
const DefaultForceStatus = 400

const maxMaterializeAttempts = 3

// Options toggles structural/functional generation and the forced
// status override, per SPEC_FULL.md §5's supplemented knobs.
type Options struct {
	Structural  bool
	Functional  bool
	ForceStatus int
}

// Scenario is a materialized TestScenario: a name, description, kind,
// and the concrete value store an artifact can be built from.
type Scenario struct {
	Name        string
	Description string
	Kind        Kind
	Values      *valuestore.Store
}

// FailedMaterialization is logged, not fatal, per spec.md §4.7.
type FailedMaterialization struct {
	Name        string
	Description string
	Kind        Kind
	Reason      string
	Diff        string
}

// Generate produces the Valid scenario plus any toggled structural/
// functional scenarios for flow, which must already be StatusSuccess.
func Generate(ctx context.Context, o *oracle.Oracle, spec *specmodel.SpecModel, flow *baseline.OperationFlow, opts Options) ([]Scenario, []FailedMaterialization, error) {
	if flow.Status != baseline.StatusSuccess {
		return nil, nil, fmt.Errorf("negative: cannot generate scenarios from a non-Success flow (%v)", flow.Status)
	}
	if len(flow.Executions) == 0 {
		return nil, nil, fmt.Errorf("negative: flow has no executions")
	}
	if opts.ForceStatus == 0 {
		opts.ForceStatus = DefaultForceStatus
	}

	targetLabel := flow.Executions[len(flow.Executions)-1].Label
	baselinePlaceholders := flow.Values.PlaceholderMap()
	catalog := specmodel.CatalogFull(spec.Operations)

	scenarios := []Scenario{{
		Name:        "validRequest",
		Description: "Replays the baseline happy-path request sequence unmodified.",
		Kind:        KindValid,
		Values:      flow.Values.Clone(),
	}}

	var descriptions []taggedDescription
	var existingNames []string

	if opts.Structural {
		system, user := oracle.BuildGenerateStructuralNegativesPrompt(flow.Plan, baselinePlaceholders, catalog, flow.Target)
		var found []oracle.ScenarioDescription
		if err := oracle.AskStruct(ctx, o, system, user, &found); err == nil {
			for _, d := range found {
				d.TestCaseName += "_ST"
				descriptions = append(descriptions, taggedDescription{d, KindStructural})
				existingNames = append(existingNames, d.TestCaseName)
			}
		}
	}

	if opts.Functional {
		system, user := oracle.BuildGenerateFunctionalNegativesPrompt(flow.Plan, baselinePlaceholders, catalog, flow.Target, existingNames)
		var found []oracle.ScenarioDescription
		if err := oracle.AskStruct(ctx, o, system, user, &found); err == nil {
			for _, d := range found {
				d.TestCaseName += "_FU"
				descriptions = append(descriptions, taggedDescription{d, KindFunctional})
			}
		}
	}

	var failed []FailedMaterialization
	for _, td := range descriptions {
		scenario, failure := materializeOne(ctx, o, catalog, baselinePlaceholders, flow, targetLabel, td, opts)
		if failure != nil {
			failed = append(failed, *failure)
			continue
		}
		scenarios = append(scenarios, *scenario)
	}

	return scenarios, failed, nil
}

type taggedDescription struct {
	oracle.ScenarioDescription
	kind Kind
}

func materializeOne(ctx context.Context, o *oracle.Oracle, catalog string, baselinePlaceholders map[string]any, flow *baseline.OperationFlow, targetLabel string, td taggedDescription, opts Options) (*Scenario, *FailedMaterialization) {
	var lastErr error
	var lastOverlay oracle.MaterializeResult

	for attempt := 0; attempt < maxMaterializeAttempts; attempt++ {
		system, user := oracle.BuildMaterializeScenarioPrompt(td.Description, baselinePlaceholders, catalog)

		var raw oracle.MaterializeResult
		if err := oracle.AskStruct(ctx, o, system, user, &raw); err != nil {
			lastErr = err
			continue
		}
		lastOverlay = raw

		pairs := orderedOverridePairs(raw)
		pairs = forceTargetStatus(pairs, targetLabel, opts.ForceStatus)

		values := flow.Values.Clone()
		values.Override(pairs)

		if _, err := values.Resolved(); err != nil {
			lastErr = err
			continue
		}

		return &Scenario{Name: td.TestCaseName, Description: td.Description, Kind: td.kind, Values: values}, nil
	}

	reason := "materialization exhausted retries"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return nil, &FailedMaterialization{
		Name:        td.TestCaseName,
		Description: td.Description,
		Kind:        td.kind,
		Reason:      reason,
		Diff:        renderDiff(baselinePlaceholders, lastOverlay),
	}
}

func orderedOverridePairs(raw oracle.MaterializeResult) []valuestore.OverridePair {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]valuestore.OverridePair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, valuestore.OverridePair{Key: k, RawValue: raw[k]})
	}
	return pairs
}

// forceTargetStatus unconditionally forces the target's response status
// code to forceStatus, per spec.md §4.7 ("Engine forces status to 400")
// and concrete scenario 4 (§8): even an oracle-proposed 404 for a
// non-existent-resource deletion is overwritten, not merely defaulted
// when absent.
func forceTargetStatus(pairs []valuestore.OverridePair, targetLabel string, forceStatus int) []valuestore.OverridePair {
	key := targetLabel + ".response.status_code"
	for i, p := range pairs {
		if p.Key == key {
			pairs[i].RawValue = float64(forceStatus)
			return pairs
		}
	}
	return append(pairs, valuestore.OverridePair{Key: key, RawValue: float64(forceStatus)})
}
