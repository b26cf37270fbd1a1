// Package detect locates door candidates on floor-plan pages. Two
// interchangeable strategies implement the same capability: remote
// learned-model inference and local template matching. The strategy is
// chosen once at startup and fixed for the run.
package detect

import (
	"context"
	"errors"
	"log/slog"

	"door-audit/pkg/geometry"

	"gocv.io/x/gocv"
)

// Strategy tags attached to candidates.
const (
	StrategyModel    = "model"
	StrategyTemplate = "template"
)

// ErrUnavailable indicates that no detection strategy could be
// constructed. This is the only unrecoverable condition for a run.
var ErrUnavailable = errors.New("no detection strategy available")

// Candidate is a detected door bounding box. Read-only downstream.
type Candidate struct {
	Box        geometry.RectInt `json:"box"`
	Confidence float64          `json:"confidence"`
	Strategy   string           `json:"strategy"`
}

// Detector is the door detection capability.
type Detector interface {
	// Detect returns door candidates for one page image.
	Detect(ctx context.Context, page gocv.Mat) ([]Candidate, error)
	// Name identifies the strategy for logs.
	Name() string
	// Close releases strategy resources.
	Close() error
}

// Select constructs the detector for a run. The learned-model strategy
// is preferred when an inference endpoint is configured and its health
// probe succeeds; otherwise the template-matching strategy is built.
// The choice is logged and fixed for the run's lifetime.
func Select(ctx context.Context, inferenceURL, templateDir string, opts Options, log *slog.Logger) (Detector, error) {
	if inferenceURL != "" {
		remote := NewRemoteDetector(inferenceURL)
		if err := remote.Probe(ctx); err == nil {
			log.Info("using learned-model detector", "endpoint", inferenceURL)
			return remote, nil
		} else {
			log.Warn("inference service unavailable, falling back to template matching",
				"endpoint", inferenceURL, "error", err)
		}
	}

	tmpl, err := NewTemplateDetector(templateDir, opts)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	log.Info("using template-matching detector", "templates", tmpl.TemplateCount())
	return tmpl, nil
}

// mergeCandidate folds a raw hit into the accepted set with greedy
// non-maximum suppression: a hit overlapping an accepted candidate
// beyond the IoU threshold is the same detection, and the higher score
// wins with box and score updated in place.
func mergeCandidate(accepted []Candidate, box geometry.RectInt, score float64, strategy string, iouThreshold float64) []Candidate {
	for i := range accepted {
		if accepted[i].Box.IoU(box) > iouThreshold {
			if score > accepted[i].Confidence {
				accepted[i].Box = box
				accepted[i].Confidence = score
			}
			return accepted
		}
	}
	return append(accepted, Candidate{Box: box, Confidence: score, Strategy: strategy})
}
