// Package units converts lengths between drawing units and millimeters.
package units

import (
	"fmt"
	"strings"
)

// Millimeters per unit for the notations that appear on floor plans.
const (
	MMPerCM   = 10.0
	MMPerM    = 1000.0
	MMPerFoot = 304.8
	MMPerInch = 25.4
)

// ToMM converts a value in the named unit to millimeters. Recognized
// units: mm, cm, m, ft (or '), in (or "). Unit matching is
// case-insensitive.
func ToMM(value float64, unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "mm":
		return value, nil
	case "cm":
		return value * MMPerCM, nil
	case "m":
		return value * MMPerM, nil
	case "ft", "'":
		return value * MMPerFoot, nil
	case "in", `"`:
		return value * MMPerInch, nil
	default:
		return 0, fmt.Errorf("unknown length unit %q", unit)
	}
}
