package baseline

import (
	"context"
	"fmt"
	"strings"

	"github.com/blackcoderx/oasforge/internal/oracle"
	"github.com/blackcoderx/oasforge/internal/planner"
	"github.com/blackcoderx/oasforge/internal/sender"
	"github.com/blackcoderx/oasforge/internal/specmodel"
	"github.com/blackcoderx/oasforge/internal/valuestore"
)

// DefaultMaxAttemptsPerStep is the per-step repair budget of spec.md
// §4.6 ("up to 10 attempts per step").
const DefaultMaxAttemptsPerStep = 10

// Generate walks plan's operation sequence against spec, asking o to
// generate then repair request values and sending each via snd, per the
// step state machine of spec.md §4.6 and its "State machines" section.
func Generate(ctx context.Context, spec *specmodel.SpecModel, plan *planner.Plan, o *oracle.Oracle, snd *sender.Sender, maxAttemptsPerStep int) (*OperationFlow, error) {
	if maxAttemptsPerStep <= 0 {
		maxAttemptsPerStep = DefaultMaxAttemptsPerStep
	}

	flow := &OperationFlow{Target: plan.Target, Plan: plan.Operations, UsageGuide: plan.UsageGuide}
	labels := computeLabels(plan.Operations)
	store := valuestore.New()

	for i, opID := range plan.Operations {
		label := labels[i]
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("baseline: cancelled before %s: %w", label, err)
		}
		op, ok := spec.ByOpID(opID)
		if !ok {
			return nil, fmt.Errorf("baseline: plan references unknown operation id %q", opID)
		}

		startSnapshot, err := store.Resolved()
		if err != nil {
			return nil, fmt.Errorf("baseline: resolving prior steps before %s: %w", label, err)
		}

		execution, status, abort, err := runStep(ctx, o, snd, store, op, label, plan, startSnapshot, maxAttemptsPerStep)
		if err != nil {
			return nil, err
		}
		if abort {
			if execution != nil {
				flow.Executions = append(flow.Executions, *execution)
			}
			flow.Status = status
			flow.Values = store
			return flow, nil
		}
		if status == StatusFailure {
			flow.Status = StatusFailure
			flow.Values = store
			return flow, nil
		}

		flow.Executions = append(flow.Executions, *execution)
	}

	flow.Status = StatusSuccess
	flow.Values = store
	return flow, nil
}

// runStep drives one step's Sending/Fixing sub-state-machine. abort
// reports a terminal ServerError that must stop the whole flow
// immediately; status == StatusFailure with abort == false reports a
// step whose retry budget was exhausted.
func runStep(ctx context.Context, o *oracle.Oracle, snd *sender.Sender, store *valuestore.Store, op *specmodel.Operation, label string, plan *planner.Plan, startSnapshot map[string]any, maxAttempts int) (*OperationExecution, Status, bool, error) {
	signature := specmodel.Signature(op)

	var lastFailedBody, lastResponseBody any
	var lastStatusCode int

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var result oracle.GenerateValidResult
		var system, user string
		if attempt == 0 {
			system, user = oracle.BuildGenerateValidPrompt(plan.Operations, plan.UsageGuide, signature, startSnapshot)
		} else {
			system, user = oracle.BuildFixValidPrompt(plan.Operations, plan.UsageGuide, signature, startSnapshot, lastFailedBody, lastResponseBody, lastStatusCode)
		}
		if err := oracle.AskStruct(ctx, o, system, user, &result); err != nil {
			return nil, StatusFailure, false, fmt.Errorf("baseline: oracle call for %s (attempt %d): %w", label, attempt+1, err)
		}

		attemptStore := store.Clone()
		if err := stageStep(attemptStore, label, op, result); err != nil {
			return nil, StatusFailure, false, fmt.Errorf("baseline: staging %s (attempt %d): %w", label, attempt+1, err)
		}

		resolvedAll, err := attemptStore.Resolved()
		if err != nil {
			lastFailedBody = result.Body
			lastResponseBody = err.Error()
			lastStatusCode = 0
			continue
		}

		sendValues, err := resolvedRequestValues(resolvedAll, label)
		if err != nil {
			lastFailedBody = result.Body
			lastResponseBody = err.Error()
			lastStatusCode = 0
			continue
		}

		if sendValues.HasBody {
			if violations, err := specmodel.ValidateAgainstSchema(op.PrimaryRequestSchema(), sendValues.BodyTree); err == nil && len(violations) > 0 {
				lastFailedBody = sendValues.BodyTree
				lastResponseBody = strings.Join(violations, "; ")
				lastStatusCode = 0
				continue
			}
		}

		record, err := snd.Send(op, sendValues)
		if err != nil {
			return nil, StatusFailure, false, fmt.Errorf("baseline: sending %s: %w", label, err)
		}

		if record.TransportErr != nil {
			lastFailedBody = sendValues.BodyTree
			lastResponseBody = record.TransportErr.Error()
			lastStatusCode = 0
			continue
		}

		switch record.StatusClass() {
		case "2":
			// Error already checked against an identical attemptStore
			// clone above; staging the same result onto store cannot
			// fail here.
			_ = stageStep(store, label, op, result)
			store.Set(fmt.Sprintf("%s.response.status_code", label), record.StatusCode)
			for name, v := range record.FlatHeaders {
				store.Set(fmt.Sprintf("%s.response.headers.%s", label, name), v)
			}
			for path, v := range record.FlatBody {
				key := fmt.Sprintf("%s.response.body", label)
				if path != "" {
					key = fmt.Sprintf("%s.response.body.%s", label, path)
				}
				store.Set(key, v)
			}
			execution := &OperationExecution{
				Label: label, OpID: op.OpID, Verb: op.Verb, PathTemplate: op.PathTemplate,
				Request:  placeholderRequestValues(store, label),
				Response: record,
			}
			return execution, StatusSuccess, false, nil

		case "5":
			execution := &OperationExecution{
				Label: label, OpID: op.OpID, Verb: op.Verb, PathTemplate: op.PathTemplate,
				Request:  placeholderRequestValues(attemptStore, label),
				Response: record,
			}
			return execution, StatusServerError, true, nil

		default: // 4xx or an unexpected/non-HTTP status class
			lastFailedBody = sendValues.BodyTree
			lastResponseBody = record.Body
			lastStatusCode = record.StatusCode
			continue
		}
	}

	return nil, StatusFailure, false, nil
}

func stageStep(store *valuestore.Store, label string, op *specmodel.Operation, result oracle.GenerateValidResult) error {
	for name, v := range result.PathParams {
		store.Set(fmt.Sprintf("%s.request.path_params.%s", label, name), v)
	}
	for name, v := range result.QueryParams {
		store.Set(fmt.Sprintf("%s.request.query_params.%s", label, name), v)
	}
	for name, v := range result.Headers {
		store.Set(fmt.Sprintf("%s.request.headers.%s", label, name), v)
	}
	for name, v := range result.Cookies {
		store.Set(fmt.Sprintf("%s.request.cookies.%s", label, name), v)
	}
	if op.HasBody() && result.Body != nil {
		flat, err := specmodel.Flatten(result.Body)
		if err != nil {
			return fmt.Errorf("flatten body for %s: %w", label, err)
		}
		for path, v := range flat {
			key := fmt.Sprintf("%s.request.body", label)
			if path != "" {
				key = fmt.Sprintf("%s.request.body.%s", label, path)
			}
			store.Set(key, v)
		}
	}
	return nil
}

// resolvedRequestValues extracts label's request section from a fully
// resolved flat map into a concrete RequestValues fit to send over the
// wire.
func resolvedRequestValues(resolvedAll map[string]any, label string) (*valuestore.RequestValues, error) {
	rv := valuestore.NewRequestValues()
	prefix := label + ".request."
	bodyFlat := map[string]any{}

	for k, v := range resolvedAll {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		switch {
		case strings.HasPrefix(rest, "path_params."):
			rv.PathParams[strings.TrimPrefix(rest, "path_params.")] = valuestore.NewLiteral(v)
		case strings.HasPrefix(rest, "query_params."):
			rv.QueryParams[strings.TrimPrefix(rest, "query_params.")] = valuestore.NewLiteral(v)
		case strings.HasPrefix(rest, "headers."):
			rv.Headers[strings.TrimPrefix(rest, "headers.")] = valuestore.NewLiteral(v)
		case strings.HasPrefix(rest, "cookies."):
			rv.Cookies[strings.TrimPrefix(rest, "cookies.")] = valuestore.NewLiteral(v)
		case rest == "body":
			bodyFlat[""] = v
			rv.HasBody = true
		case strings.HasPrefix(rest, "body."):
			bodyFlat[strings.TrimPrefix(rest, "body.")] = v
			rv.HasBody = true
		}
	}

	if rv.HasBody {
		tree, err := specmodel.Unflatten(bodyFlat)
		if err != nil {
			return nil, fmt.Errorf("unflatten body for %s: %w", label, err)
		}
		rv.BodyTree = tree
	}
	return rv, nil
}

// placeholderRequestValues extracts label's request section straight
// from store's ValueSlots (templates preserved), for attaching to an
// OperationExecution so the artifact builder can re-emit {{refs}}.
func placeholderRequestValues(store *valuestore.Store, label string) *valuestore.RequestValues {
	rv := valuestore.NewRequestValues()
	prefix := label + ".request."
	bodyFlat := map[string]valuestore.ValueSlot{}

	for _, k := range store.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		slot, _ := store.Slot(k)
		rest := k[len(prefix):]
		switch {
		case strings.HasPrefix(rest, "path_params."):
			rv.PathParams[strings.TrimPrefix(rest, "path_params.")] = slot
		case strings.HasPrefix(rest, "query_params."):
			rv.QueryParams[strings.TrimPrefix(rest, "query_params.")] = slot
		case strings.HasPrefix(rest, "headers."):
			rv.Headers[strings.TrimPrefix(rest, "headers.")] = slot
		case strings.HasPrefix(rest, "cookies."):
			rv.Cookies[strings.TrimPrefix(rest, "cookies.")] = slot
		case rest == "body":
			bodyFlat[""] = slot
			rv.HasBody = true
		case strings.HasPrefix(rest, "body."):
			bodyFlat[strings.TrimPrefix(rest, "body.")] = slot
			rv.HasBody = true
		}
	}
	rv.BodyFlat = bodyFlat

	if rv.HasBody {
		display := map[string]any{}
		for path, slot := range bodyFlat {
			display[path] = leafDisplay(slot)
		}
		if tree, err := specmodel.Unflatten(display); err == nil {
			rv.BodyTree = tree
		}
	}
	return rv
}

func leafDisplay(slot valuestore.ValueSlot) any {
	if slot.Kind == valuestore.Literal {
		return slot.Value
	}
	return slot.Template
}
