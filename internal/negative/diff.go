package negative

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// renderDiff renders a human-readable unified diff of the scenario's
// last attempted overlay against the baseline's placeholder view, for
// the failed-materialization log of spec.md §4.7's SPEC_FULL.md §5
// supplement.
func renderDiff(baselinePlaceholders map[string]any, overlay map[string]any) string {
	before := linesOf(baselinePlaceholders)
	after := linesOf(mergeForDisplay(baselinePlaceholders, overlay))

	edits := udiff.Strings(before, after)
	unified, err := udiff.ToUnified("baseline", "overlay", before, edits)
	if err != nil {
		return fmt.Sprintf("(diff unavailable: %v)", err)
	}
	return fmt.Sprint(unified)
}

func linesOf(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, m[k])
	}
	return b.String()
}

func mergeForDisplay(baseline, overlay map[string]any) map[string]any {
	merged := make(map[string]any, len(baseline)+len(overlay))
	for k, v := range baseline {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}
