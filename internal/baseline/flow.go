// Package baseline implements the baseline generator of spec.md §4.6:
// it walks a planned operation sequence, asking the oracle to generate
// then repair request values until every step produces a 2xx response,
// or the flow fails/aborts per the step state machine of spec.md's
// State machines section.
package baseline

import (
	"fmt"

	"github.com/blackcoderx/oasforge/internal/sender"
	"github.com/blackcoderx/oasforge/internal/valuestore"
)

// Status is the terminal state of an OperationFlow.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusServerError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusServerError:
		return "ServerError"
	default:
		return "Failure"
	}
}

// OperationExecution is one completed step of a flow: its (possibly
// suffixed) label, the concrete values sent, and the response observed.
type OperationExecution struct {
	Label        string
	OpID         string
	Verb         string
	PathTemplate string
	Request      *valuestore.RequestValues
	Response     *sender.ResponseRecord
}

// OperationFlow is the full record of one target operation's baseline
// generation run, per spec.md §3.
type OperationFlow struct {
	Target     string
	Plan       []string
	UsageGuide string
	Executions []OperationExecution
	Status     Status

	// Values is the flow's running value store at termination: every
	// request/response key of every persisted execution, labels and
	// all. Negative-scenario generation overlays onto a clone of it.
	Values *valuestore.Store
}

// FlatView returns the store-ready flat view of one execution, every
// key prefixed by its label, per spec.md §3 ("flat view prefixes every
// request/response key with the possibly-suffixed opId").
func (e *OperationExecution) FlatView() map[string]any {
	out := map[string]any{}
	if e.Request != nil {
		for name, slot := range e.Request.PathParams {
			out[fmt.Sprintf("%s.request.path_params.%s", e.Label, name)] = slot
		}
		for name, slot := range e.Request.QueryParams {
			out[fmt.Sprintf("%s.request.query_params.%s", e.Label, name)] = slot
		}
		for name, slot := range e.Request.Headers {
			out[fmt.Sprintf("%s.request.headers.%s", e.Label, name)] = slot
		}
		for name, slot := range e.Request.Cookies {
			out[fmt.Sprintf("%s.request.cookies.%s", e.Label, name)] = slot
		}
		for path, slot := range e.Request.BodyFlat {
			key := fmt.Sprintf("%s.request.body", e.Label)
			if path != "" {
				key = fmt.Sprintf("%s.request.body.%s", e.Label, path)
			}
			out[key] = slot
		}
	}
	if e.Response != nil {
		out[fmt.Sprintf("%s.response.status_code", e.Label)] = e.Response.StatusCode
		for name, v := range e.Response.FlatHeaders {
			out[fmt.Sprintf("%s.response.headers.%s", e.Label, name)] = v
		}
		for path, v := range e.Response.FlatBody {
			key := fmt.Sprintf("%s.response.body", e.Label)
			if path != "" {
				key = fmt.Sprintf("%s.response.body.%s", e.Label, path)
			}
			out[key] = v
		}
	}
	return out
}

// computeLabels assigns the deterministic opId-suffix label to every
// position in the plan, per spec.md §3's invariant: "the first
// repetition renames the earlier occurrence to _1 and assigns _2 to the
// new one; further repetitions append _3, _4, ...". Because the full
// plan is known up front, every label can be computed before execution
// starts instead of rewriting earlier labels mid-flow.
func computeLabels(plan []string) []string {
	total := map[string]int{}
	for _, id := range plan {
		total[id]++
	}

	seen := map[string]int{}
	labels := make([]string, len(plan))
	for i, id := range plan {
		seen[id]++
		switch {
		case total[id] == 1:
			labels[i] = id
		case seen[id] == 1:
			labels[i] = id + "_1"
		default:
			labels[i] = fmt.Sprintf("%s_%d", id, seen[id])
		}
	}
	return labels
}
