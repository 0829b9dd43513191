package exporter

import (
	"math"
	"strconv"
)

// formatValue renders a float at full precision; training features must not
// lose digits to presentation rounding. NaN renders as an empty cell.
func formatValue(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatBool formats a boolean value for CSV output.
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
