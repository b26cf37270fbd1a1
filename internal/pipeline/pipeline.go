// Package pipeline orchestrates per-page analysis: deskew, scale
// calibration, door detection, and measurement, with page-level error
// containment and a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"door-audit/internal/config"
	"door-audit/internal/deskew"
	"door-audit/internal/detect"
	"door-audit/internal/measure"
	"door-audit/internal/raster"
	"door-audit/internal/report"
	"door-audit/internal/scale"

	"gocv.io/x/gocv"
)

// SkewMateriality is the angle in degrees below which deskew correction
// is not applied.
const SkewMateriality = 1.0

// Calibrator recovers a page's mm-per-pixel factor.
type Calibrator interface {
	Calibrate(img gocv.Mat) (float64, error)
}

// PageFailure records why a page contributed no measurements.
type PageFailure struct {
	Page   int    `json:"page"`
	Reason string `json:"reason"`
}

// DocumentResult aggregates one source document.
type DocumentResult struct {
	Source       string
	Measurements []measure.Measurement
	PagesTotal   int
	PagesSkipped int
	Failures     []PageFailure
}

// Pipeline runs the full analysis for documents and single images.
type Pipeline struct {
	cfg        config.Config
	detector   detect.Detector
	calibrator Calibrator
	refiner    *measure.Refiner
	deskewOpts deskew.Options
	log        *slog.Logger
}

// New assembles a pipeline from its collaborators. Configuration is
// taken by value and fixed for the run.
func New(cfg config.Config, detector detect.Detector, calibrator Calibrator, log *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		detector:   detector,
		calibrator: calibrator,
		refiner:    measure.NewRefiner(cfg.MinWidthMM, measure.DefaultOptions()),
		deskewOpts: deskew.DefaultOptions(),
		log:        log,
	}
}

// ProcessInput analyzes a PDF document or a single page image.
func (p *Pipeline) ProcessInput(ctx context.Context, path string) (*DocumentResult, error) {
	switch {
	case raster.IsPDFPath(path):
		return p.processPDF(ctx, path)
	case raster.IsImagePath(path):
		source := stem(path)
		return p.processPages(ctx, source, []string{path}), nil
	default:
		return nil, fmt.Errorf("unsupported input %s", path)
	}
}

func (p *Pipeline) processPDF(ctx context.Context, pdfPath string) (*DocumentResult, error) {
	source := stem(pdfPath)
	rasterDir := filepath.Join(p.cfg.OutputDir, source, "pages")

	p.log.Info("rasterizing document", "source", source, "dpi", p.cfg.DPI)
	pagePaths, err := raster.RasterizePDF(ctx, pdfPath, rasterDir, p.cfg.DPI)
	if err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", pdfPath, err)
	}
	p.log.Info("rasterized document", "source", source, "pages", len(pagePaths))

	return p.processPages(ctx, source, pagePaths), nil
}

// processPages runs pages through the analysis on a bounded worker
// pool. Pages are independent; failures are contained per page.
func (p *Pipeline) processPages(ctx context.Context, source string, pagePaths []string) *DocumentResult {
	result := &DocumentResult{
		Source:     source,
		PagesTotal: len(pagePaths),
	}

	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, path := range pagePaths {
		wg.Add(1)
		go func(pageNum int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			measurements, err := p.processPageFile(ctx, source, path, pageNum)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.PagesSkipped++
				result.Failures = append(result.Failures, PageFailure{Page: pageNum, Reason: err.Error()})
				return
			}
			result.Measurements = append(result.Measurements, measurements...)
		}(i+1, path)
	}
	wg.Wait()

	// Worker completion order is nondeterministic; restore page order.
	sort.SliceStable(result.Measurements, func(i, j int) bool {
		a, b := result.Measurements[i], result.Measurements[j]
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		if a.Candidate.Box.Y != b.Candidate.Box.Y {
			return a.Candidate.Box.Y < b.Candidate.Box.Y
		}
		return a.Candidate.Box.X < b.Candidate.Box.X
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Page < result.Failures[j].Page
	})

	return result
}

// processPageFile loads one page and analyzes it under the page
// timeout. Errors are reported upward as skip reasons, never fatally.
func (p *Pipeline) processPageFile(ctx context.Context, source, path string, pageNum int) (_ []measure.Measurement, err error) {
	defer func() {
		// Contain any per-page panic from native image code as a page
		// failure rather than killing the batch.
		if r := recover(); r != nil {
			err = fmt.Errorf("page processing panic: %v", r)
		}
	}()

	pageCtx := ctx
	if p.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		pageCtx, cancel = context.WithTimeout(ctx, p.cfg.PageTimeout)
		defer cancel()
	}

	page, err := raster.LoadPage(path, source, pageNum)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	return p.processPage(pageCtx, page)
}

// processPage runs the per-page stages on a loaded page.
func (p *Pipeline) processPage(ctx context.Context, page *raster.Page) ([]measure.Measurement, error) {
	log := p.log.With("page", page.Label())

	// Orientation normalization. Correction is only material above
	// SkewMateriality degrees.
	work := page.Mat
	var corrected gocv.Mat
	if angle := deskew.EstimateSkew(page.Mat, p.deskewOpts); math.Abs(angle) > SkewMateriality {
		corrected = deskew.Rotate(page.Mat, angle)
		defer corrected.Close()
		work = corrected
		log.Info("deskewed page", "angle_deg", angle)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("page deadline before calibration: %w", err)
	}

	// Scale calibration. No scale means the page cannot be measured.
	mmPerPx, err := p.calibrator.Calibrate(work)
	if err != nil {
		if errors.Is(err, scale.ErrNoScale) {
			log.Warn("calibration failed, skipping page", "reason", err)
			return nil, fmt.Errorf("calibration: %w", err)
		}
		return nil, fmt.Errorf("calibration: %w", err)
	}
	log.Info("calibrated page", "mm_per_px", mmPerPx)

	candidates, err := p.detector.Detect(ctx, work)
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}
	log.Info("detected doors", "count", len(candidates), "strategy", p.detector.Name())

	measurements := make([]measure.Measurement, 0, len(candidates))
	for _, cand := range candidates {
		m := p.refiner.Measure(work, cand, mmPerPx).WithPage(page.Label(), page.Number)
		measurements = append(measurements, m)
	}

	if p.cfg.OutputDir != "" && len(measurements) > 0 {
		if err := p.writeAnnotated(work, page, measurements); err != nil {
			// Annotation is a convenience output; its failure does not
			// invalidate the measurements.
			log.Warn("failed to write annotated page", "error", err)
		}
	}

	return measurements, nil
}

func (p *Pipeline) writeAnnotated(work gocv.Mat, page *raster.Page, measurements []measure.Measurement) error {
	dir := filepath.Join(p.cfg.OutputDir, page.Source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_annotated.png", page.Label()))
	records := report.FromMeasurements(measurements)
	return report.WriteAnnotated(path, work, records, p.cfg.MinWidthMM)
}

// WriteReports writes the CSV and JSON projections for a document.
func (p *Pipeline) WriteReports(result *DocumentResult) error {
	dir := filepath.Join(p.cfg.OutputDir, result.Source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	records := report.FromMeasurements(result.Measurements)

	csvPath := filepath.Join(dir, result.Source+"_doors.csv")
	if err := report.WriteCSV(csvPath, records); err != nil {
		return err
	}
	jsonPath := filepath.Join(dir, result.Source+"_doors.json")
	if err := report.WriteJSON(jsonPath, records, p.cfg.MinWidthMM); err != nil {
		return err
	}

	summary := report.BuildSummary(records, p.cfg.MinWidthMM)
	p.log.Info("document complete",
		"source", result.Source,
		"doors", summary.TotalDoors,
		"compliant", summary.CompliantDoors,
		"non_compliant", summary.NonCompliantDoors,
		"pages_skipped", result.PagesSkipped)
	return nil
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
