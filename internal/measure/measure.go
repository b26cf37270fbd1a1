// Package measure converts door candidates and a page scale factor into
// calibrated width measurements with compliance classification.
package measure

import (
	"image"
	"math"

	"door-audit/internal/detect"

	"gocv.io/x/gocv"
)

// Measurement is the terminal record for one detected door. Produced
// through the staged builder below and immutable afterwards.
type Measurement struct {
	Candidate  detect.Candidate `json:"candidate"`
	WidthMM    float64          `json:"width_mm"`
	AngleDeg   float64          `json:"angle_deg"`
	Compliant  bool             `json:"is_compliant"`
	Refined    bool             `json:"refined"`
	Page       string           `json:"page"`
	PageNumber int              `json:"page_number"`
}

// WithPage returns a copy stamped with page metadata. This is the final
// builder stage before the record reaches reporting.
func (m Measurement) WithPage(label string, number int) Measurement {
	m.Page = label
	m.PageNumber = number
	return m
}

// Options tunes the orientation-aware refinement.
type Options struct {
	BlockSize       int     // adaptive threshold neighborhood (odd)
	ThresholdC      float32 // adaptive threshold constant
	VerticalBandDeg float64 // within this of vertical, use crop width
	ObliqueLowDeg   float64 // oblique band lower bound
	ObliqueHighDeg  float64 // oblique band upper bound
}

// DefaultOptions returns the refinement defaults.
func DefaultOptions() Options {
	return Options{
		BlockSize:       11,
		ThresholdC:      2,
		VerticalBandDeg: 45,
		ObliqueLowDeg:   15,
		ObliqueHighDeg:  75,
	}
}

// Refiner measures doors against a configured minimum width.
type Refiner struct {
	minWidthMM float64
	opts       Options
}

// NewRefiner creates a refiner for the given compliance threshold.
func NewRefiner(minWidthMM float64, opts Options) *Refiner {
	return &Refiner{minWidthMM: minWidthMM, opts: opts}
}

// builder carries a candidate through the measurement stages. Each
// stage returns a value; nothing downstream mutates a Measurement.
type builder struct {
	cand       detect.Candidate
	mmPerPx    float64
	minWidthMM float64
}

// baseline measures the leaf as the narrower bounding-box dimension.
func (b builder) baseline() Measurement {
	leafPx := float64(b.cand.Box.MinSide())
	return b.finish(leafPx, 0, false)
}

// refined measures with an orientation-derived pixel width.
func (b builder) refined(widthPx, angleDeg float64) Measurement {
	m := b.finish(widthPx, angleDeg, true)
	return m
}

func (b builder) finish(widthPx, angleDeg float64, refined bool) Measurement {
	widthMM := widthPx * b.mmPerPx
	if widthMM < 0 {
		widthMM = 0
	}
	return Measurement{
		Candidate: b.cand,
		WidthMM:   widthMM,
		AngleDeg:  angleDeg,
		Compliant: widthMM >= b.minWidthMM,
		Refined:   refined,
	}
}

// Baseline returns the coarse measurement for a candidate: leaf pixel
// width is the narrower box dimension, converted by the page scale.
func (r *Refiner) Baseline(cand detect.Candidate, mmPerPx float64) Measurement {
	b := builder{cand: cand, mmPerPx: mmPerPx, minWidthMM: r.minWidthMM}
	return b.baseline()
}

// Measure produces the measurement for one candidate. Refinement is
// preferred; any degenerate crop or vanishing statistics degrade to the
// baseline estimate. Measure never fails.
func (r *Refiner) Measure(page gocv.Mat, cand detect.Candidate, mmPerPx float64) Measurement {
	b := builder{cand: cand, mmPerPx: mmPerPx, minWidthMM: r.minWidthMM}

	widthPx, angleDeg, ok := r.refineRegion(page, cand)
	if !ok {
		return b.baseline()
	}
	return b.refined(widthPx, angleDeg)
}

// refineRegion estimates leaf orientation and width from the candidate
// crop. Returns ok=false when the region is degenerate.
func (r *Refiner) refineRegion(page gocv.Mat, cand detect.Candidate) (widthPx, angleDeg float64, ok bool) {
	if page.Empty() {
		return 0, 0, false
	}

	box := cand.Box.ClampTo(page.Cols(), page.Rows())
	if box.Empty() {
		return 0, 0, false
	}

	region := page.Region(box.ToImageRect())
	defer region.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if region.Channels() == 1 {
		region.CopyTo(&gray)
	} else {
		gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(gray, &thresh, 255, gocv.AdaptiveThresholdGaussian,
		gocv.ThresholdBinaryInv, r.opts.BlockSize, r.opts.ThresholdC)

	// Light erosion suppresses speckle before the moment estimate.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(thresh, &eroded, kernel)

	moments := gocv.Moments(eroded, true)
	mu20, mu11, mu02 := moments["mu20"], moments["mu11"], moments["mu02"]
	if mu20+mu02 == 0 {
		return 0, 0, false
	}

	angleDeg = math.Mod(0.5*math.Atan2(2*mu11, mu20-mu02)*180/math.Pi, 180)
	if angleDeg < 0 {
		angleDeg += 180
	}

	// Leaf runs along the dominant axis; the clear width is the
	// perpendicular crop dimension.
	if math.Abs(angleDeg-90) < r.opts.VerticalBandDeg {
		widthPx = float64(box.Width)
	} else {
		widthPx = float64(box.Height)
	}

	// Oblique doors: the axis-aligned estimate overstates thickness, so
	// take the narrow side of the largest contour's rotated rectangle.
	if r.inObliqueBand(angleDeg) {
		if px, found := minRotatedSide(thresh); found {
			widthPx = px
		}
	}

	return widthPx, angleDeg, true
}

func (r *Refiner) inObliqueBand(angleDeg float64) bool {
	low, high := r.opts.ObliqueLowDeg, r.opts.ObliqueHighDeg
	return (angleDeg > low && angleDeg < high) ||
		(angleDeg > low+90 && angleDeg < high+90)
}

// minRotatedSide fits a minimum-area rotated rectangle to the largest
// external contour and returns its smaller side in pixels.
func minRotatedSide(binary gocv.Mat) (float64, bool) {
	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return 0, false
	}

	largest := 0
	largestArea := gocv.ContourArea(contours.At(0))
	for i := 1; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > largestArea {
			largest, largestArea = i, area
		}
	}

	rect := gocv.MinAreaRect(contours.At(largest))
	side := math.Min(float64(rect.Width), float64(rect.Height))
	if side <= 0 {
		return 0, false
	}
	return side, true
}
