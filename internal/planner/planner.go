// Package planner implements the operation graph and planner of
// spec.md §4.3: for a target operation it returns an ordered dependency
// chain ending in the target, plus a free-text usage guide, using the
// oracle's SelectOperations template with bounded validation/retry.
package planner

import (
	"context"
	"fmt"

	"github.com/blackcoderx/oasforge/internal/oracle"
	"github.com/blackcoderx/oasforge/internal/specmodel"
)

// Plan is the ordered dependency chain for one target operation.
type Plan struct {
	Target     string
	Operations []string
	UsageGuide string
}

const maxSelectAttempts = 3

// Plan builds the dependency chain for a single target opId. On
// persistent oracle failure or persistently invalid output it falls
// back to a single-step plan of just the target, with an empty guide,
// per spec.md §4.3.
func Plan(ctx context.Context, spec *specmodel.SpecModel, o *oracle.Oracle, targetOpID, userGuidance string) (*Plan, error) {
	if _, ok := spec.ByOpID(targetOpID); !ok {
		return nil, fmt.Errorf("planner: unknown target operation id %q", targetOpID)
	}

	catalog := specmodel.CatalogSuccessOnly(spec.Operations)

	var feedback string
	for attempt := 0; attempt < maxSelectAttempts; attempt++ {
		system, user := oracle.BuildSelectOperationsPrompt(catalog, targetOpID, userGuidance, feedback)

		var result oracle.SelectOperationsResult
		if err := oracle.AskStruct(ctx, o, system, user, &result); err != nil {
			feedback = fmt.Sprintf("oracle call failed: %v", err)
			continue
		}

		if err := validateSequence(spec, targetOpID, result.OperationSequence); err != nil {
			feedback = err.Error()
			continue
		}

		return &Plan{Target: targetOpID, Operations: result.OperationSequence, UsageGuide: result.UsageGuide}, nil
	}

	return &Plan{Target: targetOpID, Operations: []string{targetOpID}, UsageGuide: ""}, nil
}

func validateSequence(spec *specmodel.SpecModel, targetOpID string, seq []string) error {
	if len(seq) == 0 {
		return fmt.Errorf("operation_sequence must not be empty")
	}
	if seq[len(seq)-1] != targetOpID {
		return fmt.Errorf("operation_sequence must end with the target operation %q, got %q", targetOpID, seq[len(seq)-1])
	}
	for _, opID := range seq {
		if _, ok := spec.ByOpID(opID); !ok {
			return fmt.Errorf("operation_sequence references unknown operation id %q", opID)
		}
	}
	return nil
}
