package oracle

import (
	"fmt"
	"sort"
	"strings"
)

// This file is the prompt registry of spec.md §4.4: one builder plus one
// typed result per template. The placeholder alphabet of each template
// is fixed; substitution is always literal string concatenation, in the
// same spirit as the teacher's pkg/core/prompt.Builder section ordering.

const commonPreamble = "You are the test-synthesis oracle for an automated OpenAPI black-box tester. " +
	"Respond with a single deterministic, low-temperature answer. Output ONLY the JSON requested: " +
	"no markdown fences, no commentary before or after."

// ---- SelectOperations -------------------------------------------------

// SelectOperationsResult is the {operation_sequence, usage_guide} output
// contract of spec.md §4.4.
type SelectOperationsResult struct {
	OperationSequence []string `json:"operation_sequence"`
	UsageGuide        string   `json:"usage_guide"`
}

// BuildSelectOperationsPrompt builds the planner's prompt: the full
// 2xx-pruned operation catalog, the target opId, and optional user
// guidance.
func BuildSelectOperationsPrompt(catalog, targetOpID, userGuidance, feedback string) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Operation catalog (2xx responses only):\n%s\n\n", catalog)
	fmt.Fprintf(&b, "Target operation id: %s\n", targetOpID)
	if userGuidance != "" {
		fmt.Fprintf(&b, "User guidance: %s\n", userGuidance)
	}
	if feedback != "" {
		fmt.Fprintf(&b, "\nYour previous attempt was rejected: %s\nTry again.\n", feedback)
	}
	b.WriteString("\nReturn a JSON object: " +
		`{"operation_sequence": ["opId", ...], "usage_guide": "free text"}` +
		". The last element of operation_sequence MUST equal the target operation id. " +
		"Include only operations whose presence enables a required parameter, a required " +
		"resource creation, or the target itself, assuming an empty backend state.")
	return commonPreamble, b.String()
}

// ---- GenerateValid / FixValid -----------------------------------------

// GenerateValidResult is the {path_params, query_params, headers,
// cookies, body} output contract shared by GenerateValid and FixValid.
type GenerateValidResult struct {
	PathParams  map[string]any `json:"path_params"`
	QueryParams map[string]any `json:"query_params"`
	Headers     map[string]any `json:"headers"`
	Cookies     map[string]any `json:"cookies"`
	Body        any            `json:"body,omitempty"`
}

// BuildGenerateValidPrompt builds the per-step value-generation prompt.
func BuildGenerateValidPrompt(plan []string, guide, stepSignature string, runningFlatMap map[string]any) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\nUsage guide: %s\n\n", strings.Join(plan, " -> "), guide)
	fmt.Fprintf(&b, "Current step signature:\n%s\n\n", stepSignature)
	fmt.Fprintf(&b, "Running flat value map (use {{key}} to reference any of these keys):\n%s\n\n",
		formatFlatMap(runningFlatMap))
	b.WriteString("Return a JSON object: " +
		`{"path_params": {...}, "query_params": {...}, "headers": {...}, "cookies": {...}, "body": {...}}` +
		". Every reference to a prior value MUST use {{key}} with key present in the running map above. " +
		"Omit a parameter entirely by leaving it out of its section.")
	return commonPreamble, b.String()
}

// BuildFixValidPrompt builds the repair prompt used only after a 4xx.
func BuildFixValidPrompt(plan []string, guide, stepSignature string, runningFlatMap map[string]any, failedBody any, lastResponseBody any, statusCode int) (system, user string) {
	system, base := BuildGenerateValidPrompt(plan, guide, stepSignature, runningFlatMap)
	var b strings.Builder
	b.WriteString(base)
	fmt.Fprintf(&b, "\n\nThe previous attempt failed with status %d.\nFailed request body: %v\nResponse body: %v\n", statusCode, failedBody, lastResponseBody)
	b.WriteString("\nFix the request so it will succeed (2xx). Return the same JSON shape as above.")
	return system, b.String()
}

// ---- GenerateStructuralNegatives / GenerateFunctionalNegatives --------

// ScenarioDescription is one {description, test_case_name} entry
// returned by either negative-scenario template.
type ScenarioDescription struct {
	Description  string `json:"description"`
	TestCaseName string `json:"test_case_name"`
}

// BuildGenerateStructuralNegativesPrompt builds the schema-violation
// brainstorm prompt, scoped to the target operation only.
func BuildGenerateStructuralNegativesPrompt(plan []string, baselinePlaceholders map[string]any, catalog, targetOpID string) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\nTarget operation: %s\n\n", strings.Join(plan, " -> "), targetOpID)
	fmt.Fprintf(&b, "Baseline values (placeholders preserved):\n%s\n\n", formatFlatMap(baselinePlaceholders))
	fmt.Fprintf(&b, "Operation catalog:\n%s\n\n", catalog)
	b.WriteString("Brainstorm schema-level violations of the TARGET operation only (wrong type, " +
		"missing required field, string too long/short, out-of-range number, invalid enum value, " +
		"malformed format). Each description must include a concrete offending example value. " +
		"Return a JSON array: " + `[{"description": "...", "test_case_name": "camelCaseName"}, ...]`)
	return commonPreamble, b.String()
}

// BuildGenerateFunctionalNegativesPrompt builds the business-rule
// violation brainstorm prompt, excluding names already used.
func BuildGenerateFunctionalNegativesPrompt(plan []string, baselinePlaceholders map[string]any, catalog, targetOpID string, existingNames []string) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\nTarget operation: %s\n\n", strings.Join(plan, " -> "), targetOpID)
	fmt.Fprintf(&b, "Baseline values (placeholders preserved):\n%s\n\n", formatFlatMap(baselinePlaceholders))
	fmt.Fprintf(&b, "Operation catalog:\n%s\n\n", catalog)
	fmt.Fprintf(&b, "Existing test case names (do not duplicate): %s\n\n", strings.Join(existingNames, ", "))
	b.WriteString("Brainstorm business-rule violations that keep every value schema-valid (duplicate " +
		"unique resource, delete/reference a non-existent id, violate an ordering or state " +
		"precondition). All prior steps must remain valid; only the target step's outcome changes. " +
		"Return a JSON array: " + `[{"description": "...", "test_case_name": "camelCaseName"}, ...]`)
	return commonPreamble, b.String()
}

// ---- MaterializeScenario ------------------------------------------------

// MaterializeResult is the dotted-key overlay map of spec.md §4.4:
// values are literals, placeholders, nil (explicit null), or
// valuestore.Undefined.
type MaterializeResult map[string]any

// BuildMaterializeScenarioPrompt builds the prompt that turns a scenario
// description into a concrete overlay against the baseline.
func BuildMaterializeScenarioPrompt(scenarioDescription string, baselinePlaceholders map[string]any, catalog string) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario to materialize: %s\n\n", scenarioDescription)
	fmt.Fprintf(&b, "Baseline values (placeholders preserved):\n%s\n\n", formatFlatMap(baselinePlaceholders))
	fmt.Fprintf(&b, "Operation catalog:\n%s\n\n", catalog)
	b.WriteString("Return a JSON object overlay. Each key is dotted and prefixed by " +
		`<opId>.request.<section>.<path> or <opId>.response.status_code` +
		". Values may be literals, {{placeholder}} references, null, or the string \"__undefined\" " +
		"to omit a key. You MUST include an override of the target operation's " +
		"response.status_code to a 4xx value.")
	return commonPreamble, b.String()
}

// ---- shared formatting --------------------------------------------------

func formatFlatMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, m[k])
	}
	if b.Len() == 0 {
		return "(empty)"
	}
	return b.String()
}
