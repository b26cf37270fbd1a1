package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"door-audit/internal/config"
	"door-audit/internal/detect"
	"door-audit/internal/scale"
	"door-audit/pkg/geometry"

	"gocv.io/x/gocv"
)

type fakeDetector struct {
	candidates []detect.Candidate
	err        error
}

func (f *fakeDetector) Detect(ctx context.Context, page gocv.Mat) ([]detect.Candidate, error) {
	return f.candidates, f.err
}

func (f *fakeDetector) Name() string { return "fake" }
func (f *fakeDetector) Close() error { return nil }

type fakeCalibrator struct {
	factor float64
	err    error
}

func (f *fakeCalibrator) Calibrate(img gocv.Mat) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.factor, nil
}

// writeBlankPage creates a white page image file and returns its path.
func writeBlankPage(t *testing.T, dir string, w, h int) string {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), h, w, gocv.MatTypeCV8UC3)
	defer mat.Close()

	path := filepath.Join(dir, "plan-1.png")
	require.True(t, gocv.IMWrite(path, mat))
	return path
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 2
	return cfg
}

func TestProcessInputMeasuresDetectedDoors(t *testing.T) {
	pagePath := writeBlankPage(t, t.TempDir(), 1000, 800)

	detector := &fakeDetector{candidates: []detect.Candidate{
		{Box: geometry.RectInt{X: 100, Y: 100, Width: 40, Height: 120}, Confidence: 0.9, Strategy: "fake"},
		{Box: geometry.RectInt{X: 400, Y: 50, Width: 190, Height: 700}, Confidence: 0.8, Strategy: "fake"},
	}}

	p := New(testConfig(t), detector, &fakeCalibrator{factor: 5}, slog.Default())
	result, err := p.ProcessInput(context.Background(), pagePath)
	require.NoError(t, err)

	require.Len(t, result.Measurements, 2)
	assert.Zero(t, result.PagesSkipped)

	// Blank page crops degrade to baseline: leaf width x scale.
	first := result.Measurements[0]
	assert.Equal(t, 950.0, first.WidthMM) // y=50 sorts first
	assert.True(t, first.Compliant)

	second := result.Measurements[1]
	assert.Equal(t, 200.0, second.WidthMM)
	assert.False(t, second.Compliant)

	assert.Equal(t, 1, first.PageNumber)
	assert.Equal(t, "plan-1_page1", first.Page)
}

func TestProcessInputSkipsUncalibratedPage(t *testing.T) {
	pagePath := writeBlankPage(t, t.TempDir(), 1000, 800)

	detector := &fakeDetector{candidates: []detect.Candidate{
		{Box: geometry.RectInt{X: 100, Y: 100, Width: 40, Height: 120}, Confidence: 0.9, Strategy: "fake"},
	}}

	p := New(testConfig(t), detector, &fakeCalibrator{err: scale.ErrNoScale}, slog.Default())
	result, err := p.ProcessInput(context.Background(), pagePath)
	require.NoError(t, err)

	assert.Empty(t, result.Measurements)
	assert.Equal(t, 1, result.PagesSkipped)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Reason, "no recoverable scale")
}

func TestProcessInputContainsDetectionFailure(t *testing.T) {
	pagePath := writeBlankPage(t, t.TempDir(), 400, 300)

	p := New(testConfig(t), &fakeDetector{err: errors.New("inference exploded")},
		&fakeCalibrator{factor: 5}, slog.Default())
	result, err := p.ProcessInput(context.Background(), pagePath)
	require.NoError(t, err)

	assert.Empty(t, result.Measurements)
	assert.Equal(t, 1, result.PagesSkipped)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Reason, "inference exploded")
}

func TestProcessInputRejectsUnknownExtension(t *testing.T) {
	p := New(testConfig(t), &fakeDetector{}, &fakeCalibrator{factor: 5}, slog.Default())
	_, err := p.ProcessInput(context.Background(), "drawing.dwg")
	assert.Error(t, err)
}

func TestWriteReports(t *testing.T) {
	pagePath := writeBlankPage(t, t.TempDir(), 1000, 800)
	cfg := testConfig(t)

	detector := &fakeDetector{candidates: []detect.Candidate{
		{Box: geometry.RectInt{X: 100, Y: 100, Width: 40, Height: 120}, Confidence: 0.9, Strategy: "fake"},
	}}

	p := New(cfg, detector, &fakeCalibrator{factor: 5}, slog.Default())
	result, err := p.ProcessInput(context.Background(), pagePath)
	require.NoError(t, err)
	require.NoError(t, p.WriteReports(result))

	assert.FileExists(t, filepath.Join(cfg.OutputDir, "plan-1", "plan-1_doors.csv"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "plan-1", "plan-1_doors.json"))
}
