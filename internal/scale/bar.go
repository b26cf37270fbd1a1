package scale

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"

	"door-audit/pkg/geometry"
	"door-audit/pkg/units"

	"gocv.io/x/gocv"
)

// labelPattern matches a numeric tick label with its unit. Longer unit
// names precede "m" so "mm"/"cm" are not split.
var labelPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(mm|cm|ft|in|m|')`)

type barCandidate struct {
	x1, y1, x2, y2 int
	length         int
}

// fromScaleBar locates horizontal bar candidates and reads tick labels
// beneath them. For each candidate with at least two labeled values,
// the first and last label define the real-world span; this two-label
// heuristic is a known approximation and is kept deliberately.
func (c *Calibrator) fromScaleBar(img gocv.Mat) (float64, bool, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() == 1 {
		img.CopyTo(&gray)
	} else {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}

	candidates := c.findBarCandidates(gray)
	if len(candidates) == 0 {
		return 0, false, nil
	}

	limit := min(len(candidates), c.opts.TopCandidates)
	for _, cand := range candidates[:limit] {
		factor, ok, err := c.readBarLabels(gray, cand)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return factor, true, nil
		}
	}

	return 0, false, nil
}

// findBarCandidates returns near-horizontal segments longer than the
// bar minimum, longest first.
func (c *Calibrator) findBarCandidates(gray gocv.Mat) []barCandidate {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, c.opts.CannyLow, c.opts.CannyHigh)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180,
		c.opts.HoughThreshold, c.opts.MinLineLength, c.opts.MaxLineGap)

	var candidates []barCandidate
	for i := 0; i < lines.Rows(); i++ {
		vec := lines.GetVeciAt(i, 0)
		x1, y1, x2, y2 := int(vec[0]), int(vec[1]), int(vec[2]), int(vec[3])

		if abs(y2-y1) >= c.opts.MaxSlopePx {
			continue
		}
		length := abs(x2 - x1)
		if length <= c.opts.MinBarLength {
			continue
		}
		candidates = append(candidates, barCandidate{x1: x1, y1: y1, x2: x2, y2: y2, length: length})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].length > candidates[j].length
	})
	return candidates
}

// readBarLabels runs OCR on the band around a bar candidate and derives
// mm-per-pixel from the first and last labeled tick values.
func (c *Calibrator) readBarLabels(gray gocv.Mat, cand barCandidate) (float64, bool, error) {
	band := geometry.RectInt{
		X:      cand.x1 - c.opts.BandMargin,
		Y:      cand.y1 - c.opts.BandAbove,
		Width:  cand.length + 2*c.opts.BandMargin,
		Height: c.opts.BandHeight,
	}.ClampTo(gray.Cols(), gray.Rows())
	if band.Empty() {
		return 0, false, nil
	}

	region := gray.Region(band.ToImageRect())
	defer region.Close()

	text, err := c.ocr.RecognizeMat(region)
	if err != nil {
		return 0, false, fmt.Errorf("scale bar OCR: %w", err)
	}

	matches := labelPattern.FindAllStringSubmatch(text, -1)
	if len(matches) < 2 {
		return 0, false, nil
	}

	firstMM, ok1 := labelToMM(matches[0])
	lastMM, ok2 := labelToMM(matches[len(matches)-1])
	if !ok1 || !ok2 {
		return 0, false, nil
	}

	spanMM := math.Abs(lastMM - firstMM)
	if spanMM <= 0 {
		return 0, false, nil
	}

	return spanMM / float64(cand.length), true, nil
}

func labelToMM(match []string) (float64, bool) {
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	mm, err := units.ToMM(value, match[2])
	if err != nil {
		return 0, false
	}
	return mm, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
