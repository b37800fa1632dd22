package specmodel

import (
	"fmt"
	"sort"
	"strings"
)

// CatalogSuccessOnly renders the 2xx-pruned operation catalog that
// SelectOperations consumes (spec.md §4.4): per operation, one line
// naming its opId, verb, path and summary, followed by indented lines
// for its required parameters, request-body presence and response
// codes, with only its 2xx response codes listed.
func CatalogSuccessOnly(ops []Operation) string {
	return catalog(ops, true)
}

// CatalogFull renders every operation with its required parameters and
// its full response-code list, used by the negative-scenario and
// materialization templates that need the whole surface, not just the
// success path.
func CatalogFull(ops []Operation) string {
	return catalog(ops, false)
}

func catalog(ops []Operation, successOnly bool) string {
	sorted := append([]Operation{}, ops...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OpID < sorted[j].OpID })

	var b strings.Builder
	for _, op := range sorted {
		fmt.Fprintf(&b, "- %s: %s %s", op.OpID, op.Verb, op.PathTemplate)
		if op.Summary != "" {
			fmt.Fprintf(&b, " (%s)", op.Summary)
		}
		b.WriteString("\n")

		if required := requiredParamNames(op); required != "" {
			fmt.Fprintf(&b, "    required params: %s\n", required)
		}
		if op.HasBody() {
			b.WriteString("    has request body\n")
		}

		codes := responseCodes(op, successOnly)
		if len(codes) > 0 {
			fmt.Fprintf(&b, "    responses: %s\n", strings.Join(codes, ", "))
		}
	}
	if b.Len() == 0 {
		return "(no operations)"
	}
	return b.String()
}

func requiredParamNames(op Operation) string {
	var names []string
	for _, p := range op.Parameters {
		if p.Required {
			names = append(names, fmt.Sprintf("%s(%s)", p.Name, p.In))
		}
	}
	return strings.Join(names, ", ")
}

func responseCodes(op Operation, successOnly bool) []string {
	var codes []string
	for code := range op.Responses {
		if successOnly && !(len(code) == 3 && code[0] == '2') {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
