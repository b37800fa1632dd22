package valuestore

import (
	"fmt"
	"strconv"
)

// trimFloat renders a float64 the way JSON numbers look in request
// text: no trailing ".0" for integral values, shortest round-trip
// representation otherwise.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// genericString is the fallback stringifier for composite-placeholder
// substitution when a referenced value is neither a string nor a
// float64/bool (maps, slices from a captured response body field).
func genericString(v any) string {
	return fmt.Sprintf("%v", v)
}
