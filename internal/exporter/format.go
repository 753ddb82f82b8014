package exporter

import (
	"fmt"
	"strconv"
)

// formatCell renders one result-table cell for CSV output. Numeric cells use
// the shortest decimal form that round-trips, so 13.5 stays "13.5" and 150
// stays "150"; null cells render empty.
func formatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
