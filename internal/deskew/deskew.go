// Package deskew corrects small page rotation introduced by scanning or
// rendering. Skew is estimated from the dominant direction of straight
// near-axis line work.
package deskew

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// Options configures skew estimation.
type Options struct {
	CannyLow       float32 // Canny low threshold
	CannyHigh      float32 // Canny high threshold
	HoughThreshold int     // accumulator votes required for a line
	AxisTolerance  float64 // degrees; lines further from an axis are ignored
}

// DefaultOptions returns options tuned for architectural line art.
func DefaultOptions() Options {
	return Options{
		CannyLow:       50,
		CannyHigh:      150,
		HoughThreshold: 100,
		AxisTolerance:  30,
	}
}

// Deskew estimates the dominant skew of a page and returns the corrected
// image together with the applied angle in degrees. When no qualifying
// lines are found the input is returned unchanged (cloned) with angle 0.
func Deskew(img gocv.Mat, opts Options) (gocv.Mat, float64) {
	angle := EstimateSkew(img, opts)
	if angle == 0 {
		return img.Clone(), 0
	}
	return Rotate(img, angle), angle
}

// EstimateSkew returns the page skew in degrees, in (-45, 45]. Zero
// means no correction is needed or no qualifying lines were found.
func EstimateSkew(img gocv.Mat, opts Options) float64 {
	if img.Empty() {
		return 0
	}

	gray := toGray(img)
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, opts.CannyLow, opts.CannyHigh)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, 1, math.Pi/180, opts.HoughThreshold)

	if lines.Empty() || lines.Rows() == 0 {
		return 0
	}

	// Bin near-axis line angles at one-degree resolution; the modal bin
	// is the dominant skew.
	bins := make([]float64, 180)
	found := false
	for i := 0; i < lines.Rows(); i++ {
		vec := lines.GetVecfAt(i, 0)
		thetaDeg := float64(vec[1]) * 180 / math.Pi

		if !nearAxis(thetaDeg, opts.AxisTolerance) {
			continue
		}
		idx := int(thetaDeg) % 180
		if idx < 0 {
			idx += 180
		}
		bins[idx]++
		found = true
	}
	if !found {
		return 0
	}

	dominant := float64(floats.MaxIdx(bins))

	// Map the Hough normal angle to a signed correction around the
	// nearest axis.
	switch {
	case dominant > 135:
		return dominant - 180
	case dominant > 45:
		return dominant - 90
	default:
		return dominant
	}
}

// Rotate rotates the image by angle degrees about its center, expanding
// the canvas so no content is cropped and padding with white background.
func Rotate(img gocv.Mat, angleDeg float64) gocv.Mat {
	h, w := img.Rows(), img.Cols()

	center := image.Point{X: w / 2, Y: h / 2}
	rotMat := gocv.GetRotationMatrix2D(center, angleDeg, 1.0)
	defer rotMat.Close()

	angleRad := angleDeg * math.Pi / 180
	cos := math.Abs(math.Cos(angleRad))
	sin := math.Abs(math.Sin(angleRad))
	newW := int(float64(h)*sin + float64(w)*cos)
	newH := int(float64(h)*cos + float64(w)*sin)

	// Shift the transform so the rotated content stays centered in the
	// expanded canvas.
	rotMat.SetDoubleAt(0, 2, rotMat.GetDoubleAt(0, 2)+float64(newW-w)/2)
	rotMat.SetDoubleAt(1, 2, rotMat.GetDoubleAt(1, 2)+float64(newH-h)/2)

	rotated := gocv.NewMat()
	gocv.WarpAffineWithParams(img, &rotated, rotMat, image.Point{X: newW, Y: newH},
		gocv.InterpolationCubic, gocv.BorderConstant,
		color.RGBA{R: 255, G: 255, B: 255, A: 255})

	return rotated
}

// nearAxis reports whether a Hough normal angle lies within tol degrees
// of the horizontal or vertical axis.
func nearAxis(thetaDeg, tol float64) bool {
	return thetaDeg < tol || thetaDeg > 180-tol || math.Abs(thetaDeg-90) < tol
}

func toGray(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if img.Channels() == 1 {
		img.CopyTo(&gray)
	} else {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	return gray
}
