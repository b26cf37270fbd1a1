// Package raster supplies per-page images to the analysis pipeline.
// PDF input is rasterized through poppler's pdftoppm; image input is
// loaded directly.
package raster

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/tiff"
)

// Page is one rasterized floor-plan page. Immutable once loaded.
type Page struct {
	Mat    gocv.Mat // BGR pixel data
	Number int      // 1-based page number within the source
	Source string   // source document or image identifier
}

// Close releases the underlying pixel buffer.
func (p *Page) Close() {
	if !p.Mat.Empty() {
		p.Mat.Close()
	}
}

// Label returns a stable identifier for logs and reports.
func (p *Page) Label() string {
	return fmt.Sprintf("%s_page%d", p.Source, p.Number)
}

// LoadPage reads an image file into a Page. imaging.Open honors EXIF
// orientation, which scanned plans occasionally carry.
func LoadPage(path, source string, number int) (*Page, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load page image %s: %w", path, err)
	}

	mat, err := ToMat(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert page image %s: %w", path, err)
	}

	return &Page{Mat: mat, Number: number, Source: source}, nil
}

// RasterizePDF converts a PDF into per-page PNG files under outDir at
// the requested resolution and returns the page image paths in page
// order. Requires pdftoppm on PATH.
func RasterizePDF(ctx context.Context, pdfPath, outDir string, dpi int) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create raster dir: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	prefix := filepath.Join(outDir, stem)

	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", fmt.Sprint(dpi), pdfPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed for %s: %w (%s)", pdfPath, err, strings.TrimSpace(string(out)))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", pdfPath)
	}

	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(matches)
	return matches, nil
}

// ToMat converts a Go image.Image to a gocv.Mat in BGR format.
func ToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}

	return mat, nil
}

// ToImage converts a Mat back to a Go image.Image.
func ToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty mat")
	}
	return mat.ToImage()
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// IsImagePath reports whether the path has a supported raster image extension.
func IsImagePath(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// IsPDFPath reports whether the path looks like a PDF document.
func IsPDFPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// FindInputs collects PDF and image files under dir. With recursive set
// it descends into subdirectories.
func FindInputs(dir string, recursive bool) ([]string, error) {
	var inputs []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if IsPDFPath(path) || IsImagePath(path) {
			inputs = append(inputs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(inputs)
	return inputs, nil
}
