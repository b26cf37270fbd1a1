package detect

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"sort"

	"door-audit/pkg/geometry"

	"gocv.io/x/gocv"
)

// Options tunes the template-matching strategy. MatchThreshold and
// NMSIoU are tunable parameters, not load-bearing invariants.
type Options struct {
	Scales         []float64 // template resize factors
	MatchThreshold float32   // minimum normalized cross-correlation response
	NMSIoU         float64   // overlap beyond which two hits are one detection
	CannyLow       float32
	CannyHigh      float32
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		Scales:         []float64{0.5, 0.75, 1.0, 1.5, 2.0},
		MatchThreshold: 0.6,
		NMSIoU:         0.5,
		CannyLow:       50,
		CannyHigh:      150,
	}
}

// TemplateDetector matches a small library of binary door-glyph
// templates against the page's edge map. It is the fallback strategy
// when no learned model is available.
type TemplateDetector struct {
	templates []gocv.Mat
	opts      Options
}

// NewTemplateDetector loads glyph templates from dir (PNG, grayscale).
// When dir is empty or yields no usable templates, a single synthetic
// frame-plus-swing-arc template is used instead.
func NewTemplateDetector(dir string, opts Options) (*TemplateDetector, error) {
	if len(opts.Scales) == 0 {
		return nil, fmt.Errorf("template detector: no scales configured")
	}

	var templates []gocv.Mat
	if dir != "" {
		paths, err := filepath.Glob(filepath.Join(dir, "*.png"))
		if err != nil {
			return nil, fmt.Errorf("scan template dir %s: %w", dir, err)
		}
		sort.Strings(paths)
		for _, path := range paths {
			tmpl := gocv.IMRead(path, gocv.IMReadGrayScale)
			if tmpl.Empty() {
				tmpl.Close()
				continue
			}
			templates = append(templates, tmpl)
		}
	}

	if len(templates) == 0 {
		templates = append(templates, syntheticDoorTemplate())
	}

	return &TemplateDetector{templates: templates, opts: opts}, nil
}

// Name implements Detector.
func (d *TemplateDetector) Name() string { return StrategyTemplate }

// TemplateCount returns the number of loaded glyph templates.
func (d *TemplateDetector) TemplateCount() int { return len(d.templates) }

// Close implements Detector.
func (d *TemplateDetector) Close() error {
	for i := range d.templates {
		d.templates[i].Close()
	}
	d.templates = nil
	return nil
}

// Detect implements Detector. Each template is correlated against the
// page's Canny edge map at every configured scale; responses at or
// above the match threshold become raw hits, merged with greedy NMS.
func (d *TemplateDetector) Detect(ctx context.Context, page gocv.Mat) ([]Candidate, error) {
	if page.Empty() {
		return nil, fmt.Errorf("detect: empty page image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if page.Channels() == 1 {
		page.CopyTo(&gray)
	} else {
		gocv.CvtColor(page, &gray, gocv.ColorBGRToGray)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, d.opts.CannyLow, d.opts.CannyHigh)

	var candidates []Candidate
	for _, tmpl := range d.templates {
		for _, scale := range d.opts.Scales {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			candidates = d.matchScaled(edges, tmpl, scale, candidates)
		}
	}
	return candidates, nil
}

// matchScaled correlates one template at one scale and folds the hits
// into the accepted candidate set.
func (d *TemplateDetector) matchScaled(edges, tmpl gocv.Mat, scale float64, candidates []Candidate) []Candidate {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(tmpl, &resized, image.Point{}, scale, scale, gocv.InterpolationArea)

	tmplH, tmplW := resized.Rows(), resized.Cols()
	if tmplH == 0 || tmplW == 0 || tmplH > edges.Rows() || tmplW > edges.Cols() {
		return candidates
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(edges, resized, &result, gocv.TmCcoeffNormed, mask)

	for y := 0; y < result.Rows(); y++ {
		for x := 0; x < result.Cols(); x++ {
			score := result.GetFloatAt(y, x)
			if score < d.opts.MatchThreshold {
				continue
			}
			box := geometry.RectInt{X: x, Y: y, Width: tmplW, Height: tmplH}
			candidates = mergeCandidate(candidates, box, float64(score), StrategyTemplate, d.opts.NMSIoU)
		}
	}
	return candidates
}

// syntheticDoorTemplate draws the canonical plan symbol for a door: a
// short frame rectangle with a quarter-circle swing arc.
func syntheticDoorTemplate() gocv.Mat {
	tmpl := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 50, 50, gocv.MatTypeCV8U)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	// Door frame
	gocv.Rectangle(&tmpl, image.Rect(0, 20, 5, 30), white, 1)
	// Swing arc
	gocv.Ellipse(&tmpl, image.Pt(5, 25), image.Pt(20, 20), 0, 270, 360, white, 1)

	return tmpl
}
