package scale

import (
	"regexp"
	"strconv"
)

// Printed scale notations, in priority order. The first matching
// pattern wins; conflicting matches are not reconciled.
var (
	// "1:50", "1 : 100"
	ratioPattern = regexp.MustCompile(`1\s*[:]\s*(\d+)`)
	// `1/4" = 1'-0"` imperial drawing scale
	imperialPattern = regexp.MustCompile(`(\d+)/(\d+)["']\s*=\s*(\d+)['"]`)
	// bare fraction "1/50"
	fractionPattern = regexp.MustCompile(`1\s*/\s*(\d+)`)
)

// ParseNotation extracts a scale factor from recognized drawing text.
// The factor is the drawing-units-per-real-unit ratio: "1:50" yields
// 0.02. Returns false when no notation is present.
func ParseNotation(text string) (float64, bool) {
	if m := ratioPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil && n > 0 {
			return 1 / n, true
		}
	}

	if m := imperialPattern.FindStringSubmatch(text); m != nil {
		numerator, err1 := strconv.ParseFloat(m[1], 64)
		denominator, err2 := strconv.ParseFloat(m[2], 64)
		feet, err3 := strconv.ParseFloat(m[3], 64)
		if err1 == nil && err2 == nil && err3 == nil && denominator > 0 && numerator > 0 && feet > 0 {
			// A/B inches on the drawing represent F feet; express the
			// real span in drawing units and invert.
			inchScale := numerator / denominator
			feetInDrawingUnits := feet * 12 / inchScale
			return 1 / feetInDrawingUnits, true
		}
	}

	if m := fractionPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil && n > 0 {
			return 1 / n, true
		}
	}

	return 0, false
}
