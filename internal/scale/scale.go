// Package scale recovers the millimeters-per-pixel factor of a
// floor-plan page, first from printed scale notation, then from a
// graphic scale bar.
package scale

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrNoScale indicates that no strategy could recover a scale for the
// page. The page must be skipped for measurement; there is no default.
var ErrNoScale = errors.New("no recoverable scale on page")

// Recognizer extracts text from an image region. Satisfied by
// *ocr.Engine; tests substitute a canned implementation.
type Recognizer interface {
	RecognizeMat(img gocv.Mat) (string, error)
}

// Options configures scale-bar detection. Values mirror the behavior
// the calibrator was tuned against.
type Options struct {
	CannyLow       float32
	CannyHigh      float32
	HoughThreshold int     // accumulator votes for probabilistic Hough
	MinLineLength  float32 // minimum Hough segment length in pixels
	MaxLineGap     float32 // maximum gap bridged within a segment
	MinBarLength   int     // shortest horizontal run considered a bar
	MaxSlopePx     int     // |dy| below which a segment counts as horizontal
	TopCandidates  int     // longest runs to probe for tick labels
	BandAbove      int     // pixels above the bar where the band starts
	BandHeight     int     // label band height
	BandMargin     int     // extra width around the bar for the band
}

// DefaultOptions returns the calibrator defaults.
func DefaultOptions() Options {
	return Options{
		CannyLow:       50,
		CannyHigh:      150,
		HoughThreshold: 100,
		MinLineLength:  100,
		MaxLineGap:     10,
		MinBarLength:   50,
		MaxSlopePx:     5,
		TopCandidates:  5,
		BandAbove:      20,
		BandHeight:     40,
		BandMargin:     20,
	}
}

// Calibrator recovers mm-per-pixel scale factors from page images.
type Calibrator struct {
	ocr  Recognizer
	opts Options
}

// NewCalibrator creates a calibrator using the given text recognizer.
func NewCalibrator(ocr Recognizer, opts Options) *Calibrator {
	return &Calibrator{ocr: ocr, opts: opts}
}

// Calibrate recovers the page's mm-per-pixel factor. Strategies are
// tried in order - printed notation, then graphic scale bar - and the
// first success wins. Both failing yields ErrNoScale.
func (c *Calibrator) Calibrate(img gocv.Mat) (float64, error) {
	if img.Empty() {
		return 0, fmt.Errorf("calibrate: empty page image")
	}

	if factor, ok, err := c.fromNotation(img); err == nil && ok {
		return factor, nil
	}

	if factor, ok, err := c.fromScaleBar(img); err == nil && ok {
		return factor, nil
	}

	return 0, ErrNoScale
}

// fromNotation runs OCR over the full page and pattern-matches printed
// scale notations.
func (c *Calibrator) fromNotation(img gocv.Mat) (float64, bool, error) {
	text, err := c.ocr.RecognizeMat(img)
	if err != nil {
		return 0, false, fmt.Errorf("notation OCR: %w", err)
	}

	factor, ok := ParseNotation(text)
	return factor, ok, nil
}
