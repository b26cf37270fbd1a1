package scale

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocv.io/x/gocv"
)

// fakeRecognizer returns canned OCR text without touching Tesseract.
type fakeRecognizer struct {
	text string
	err  error
}

func (f *fakeRecognizer) RecognizeMat(img gocv.Mat) (string, error) {
	return f.text, f.err
}

func blankPage(t *testing.T, w, h int) gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), h, w, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })
	return mat
}

func TestCalibrateFromNotation(t *testing.T) {
	page := blankPage(t, 400, 300)
	cal := NewCalibrator(&fakeRecognizer{text: "GROUND FLOOR PLAN Scale 1:50"}, DefaultOptions())

	factor, err := cal.Calibrate(page)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, factor, 1e-12)
}

func TestCalibrateNoScaleIsExplicitFailure(t *testing.T) {
	// Blank page with no notation and no bar: both strategies fail and
	// the caller gets ErrNoScale, never a default factor.
	page := blankPage(t, 400, 300)
	cal := NewCalibrator(&fakeRecognizer{text: "no notation here"}, DefaultOptions())

	_, err := cal.Calibrate(page)
	assert.ErrorIs(t, err, ErrNoScale)
}

func TestCalibrateOCRErrorFallsThrough(t *testing.T) {
	page := blankPage(t, 400, 300)
	cal := NewCalibrator(&fakeRecognizer{err: errors.New("tesseract unavailable")}, DefaultOptions())

	_, err := cal.Calibrate(page)
	assert.ErrorIs(t, err, ErrNoScale)
}

func TestCalibrateEmptyPage(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	cal := NewCalibrator(&fakeRecognizer{}, DefaultOptions())

	_, err := cal.Calibrate(empty)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoScale)
}

func TestFromScaleBarReadsTickLabels(t *testing.T) {
	// Draw a 400px horizontal bar; the fake recognizer reports two tick
	// labels 5 m apart, so the factor is 5000mm / 400px = 12.5 mm/px.
	page := blankPage(t, 800, 600)
	gocv.Line(&page, image.Pt(100, 400), image.Pt(500, 400),
		color.RGBA{A: 255}, 3)

	cal := NewCalibrator(&fakeRecognizer{text: "0 m 5 m"}, DefaultOptions())

	factor, err := cal.Calibrate(page)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, factor, 0.5)
}
