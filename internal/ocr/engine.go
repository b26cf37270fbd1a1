// Package ocr provides text recognition for scale notations on
// floor-plan drawings.
package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// NotationChars is the character set for drawing-notation OCR: digits,
// scale punctuation, and the unit letters (mm/cm/m/ft/in).
const NotationChars = `0123456789.:/='"-SCALEscaleftinm `

// Engine provides OCR functionality using Tesseract. Safe for
// concurrent use; the underlying client is serialized internally.
type Engine struct {
	mu           sync.Mutex
	client       *gosseract.Client
	notationMode bool
}

// NewEngine creates a new OCR engine.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Disable dictionary-based word correction - scale notations aren't
	// English words and must not be "fixed" into them.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")
	_ = client.SetVariable("language_model_penalty_non_freq_dict_word", "0")

	return &Engine{
		client:       client,
		notationMode: true,
	}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// SetNotationMode enables/disables the drawing-notation character set.
func (e *Engine) SetNotationMode(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notationMode = enabled
}

// RecognizeMat performs OCR on an entire image.
func (e *Engine) RecognizeMat(img gocv.Mat) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("empty image")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	processed := preprocessForOCR(img)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	// PSM 6 = Assume a single uniform block of text
	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("failed to set PSM: %w", err)
	}

	if e.notationMode {
		if err := e.client.SetWhitelist(NotationChars); err != nil {
			return "", fmt.Errorf("failed to set whitelist: %w", err)
		}
	} else if err := e.client.SetWhitelist(""); err != nil {
		// Ignore - some versions don't support an empty whitelist
		_ = err
	}

	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	text = strings.TrimSpace(text)
	text = strings.Join(strings.Fields(text), " ")
	return text, nil
}

// preprocessForOCR prepares an image for OCR: upscale small regions,
// binarize with Otsu, and normalize polarity to dark text on light
// background.
func preprocessForOCR(img gocv.Mat) gocv.Mat {
	h, w := img.Rows(), img.Cols()

	var scaled gocv.Mat
	minDim := min(h, w)
	if minDim > 0 && minDim < 150 {
		scale := 150.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(img, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = img.Clone()
	}

	gray := gocv.NewMat()
	if scaled.Channels() == 1 {
		scaled.CopyTo(&gray)
	} else {
		gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	}
	scaled.Close()

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	gray.Close()

	// Tesseract expects dark text on a light background.
	whiteCount := gocv.CountNonZero(binary)
	totalPixels := binary.Rows() * binary.Cols()
	if totalPixels > 0 && float64(whiteCount)/float64(totalPixels) < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()

	return result
}
