// Package config holds run configuration for the door audit pipeline.
package config

import (
	"os"
	"runtime"
	"time"
)

// Config is passed by value into component constructors. Zero-config
// callers should start from Default().
type Config struct {
	// MinWidthMM is the smallest door clear width considered compliant.
	MinWidthMM float64

	// DPI used when rasterizing PDF input.
	DPI int

	// OutputDir receives reports and annotated pages.
	OutputDir string

	// InferenceURL points at a detection model service. Empty means the
	// template-matching detector is used.
	InferenceURL string

	// TemplateDir holds door glyph templates for the fallback detector.
	// Empty falls back to the built-in synthetic template.
	TemplateDir string

	// Workers bounds concurrent page processing.
	Workers int

	// PageTimeout bounds the slow stages (OCR, inference) per page.
	PageTimeout time.Duration

	// Recursive processes PDFs in subdirectories of a directory input.
	Recursive bool

	// Verbose enables debug logging.
	Verbose bool
}

// Default returns the configuration used when no flags are given.
// INFERENCE_URL and TEMPLATE_DIR environment variables seed the
// detector settings so batch jobs can configure them without flags.
func Default() Config {
	return Config{
		MinWidthMM:   900.0,
		DPI:          400,
		OutputDir:    "door_audit_output",
		InferenceURL: getEnv("INFERENCE_URL", ""),
		TemplateDir:  getEnv("TEMPLATE_DIR", ""),
		Workers:      runtime.NumCPU(),
		PageTimeout:  2 * time.Minute,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
