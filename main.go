// Package main provides the door-audit command line tool: it scans
// floor-plan PDFs or page images for door openings and reports their
// clear widths against an accessibility threshold.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"door-audit/internal/config"
	"door-audit/internal/detect"
	"door-audit/internal/ocr"
	"door-audit/internal/pipeline"
	"door-audit/internal/raster"
	"door-audit/internal/scale"
	"door-audit/internal/version"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:     "door-audit <pdf-or-image-or-directory>",
		Short:   "Detect and measure doors in floor plans",
		Long:    "door-audit locates door openings on rasterized floor-plan pages,\nrecovers the drawing scale, and measures door clear widths in\nmillimeters against a minimum accessibility threshold.",
		Version: version.Version,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], cfg)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&cfg.MinWidthMM, "min-width", cfg.MinWidthMM, "minimum acceptable door width in mm")
	flags.IntVar(&cfg.DPI, "dpi", cfg.DPI, "resolution for PDF rasterization")
	flags.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for reports and annotated pages")
	flags.StringVar(&cfg.InferenceURL, "inference-url", cfg.InferenceURL, "detection model service endpoint (empty uses template matching)")
	flags.StringVar(&cfg.TemplateDir, "template-dir", cfg.TemplateDir, "directory of door glyph templates for the fallback detector")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent page workers")
	flags.BoolVar(&cfg.Recursive, "recursive", cfg.Recursive, "process documents in subdirectories")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "enable debug logging")

	cmd.SetContext(rootContext())
	return cmd
}

// rootContext cancels the run on SIGINT/SIGTERM.
func rootContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

func run(ctx context.Context, input string, cfg config.Config) error {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	inputs, err := resolveInputs(input, cfg.Recursive)
	if err != nil {
		return err
	}
	log.Info("starting audit", "inputs", len(inputs), "min_width_mm", cfg.MinWidthMM)

	// The OCR engine backs scale calibration; without it no page can be
	// measured, so its absence is fatal up front.
	engine, err := ocr.NewEngine()
	if err != nil {
		return fmt.Errorf("initialize OCR engine: %w", err)
	}
	defer engine.Close()

	detector, err := detect.Select(ctx, cfg.InferenceURL, cfg.TemplateDir, detect.DefaultOptions(), log)
	if err != nil {
		return err
	}
	defer detector.Close()

	calibrator := scale.NewCalibrator(engine, scale.DefaultOptions())
	p := pipeline.New(cfg, detector, calibrator, log)

	failed := 0
	for _, path := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := p.ProcessInput(ctx, path)
		if err != nil {
			log.Error("document failed", "input", path, "error", err)
			failed++
			continue
		}
		if err := p.WriteReports(result); err != nil {
			log.Error("report writing failed", "input", path, "error", err)
			failed++
		}
	}

	if failed == len(inputs) {
		return fmt.Errorf("all %d inputs failed", failed)
	}
	return nil
}

// resolveInputs expands a file or directory argument into the list of
// documents to process.
func resolveInputs(input string, recursive bool) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input not found: %w", err)
	}

	if !info.IsDir() {
		if !raster.IsPDFPath(input) && !raster.IsImagePath(input) {
			return nil, fmt.Errorf("unsupported input type: %s", input)
		}
		return []string{input}, nil
	}

	inputs, err := raster.FindInputs(input, recursive)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no PDF or image files found in %s", input)
	}
	return inputs, nil
}
