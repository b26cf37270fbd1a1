// Package report projects door measurements into tabular, structured,
// and annotated-image forms. Pure projections; width values are rounded
// to one decimal here and nowhere else.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"door-audit/internal/measure"
	"door-audit/pkg/geometry"

	"gonum.org/v1/gonum/stat"
)

// Record is one reported door.
type Record struct {
	Page       string           `json:"page"`
	PageNumber int              `json:"page_number"`
	Box        geometry.RectInt `json:"box"`
	Confidence float64          `json:"confidence"`
	Strategy   string           `json:"strategy"`
	WidthMM    float64          `json:"width_mm"`
	AngleDeg   float64          `json:"angle_deg"`
	Compliant  bool             `json:"is_compliant"`
}

// Summary aggregates a batch of door records.
type Summary struct {
	TotalDoors           int     `json:"total_doors"`
	CompliantDoors       int     `json:"compliant_doors"`
	NonCompliantDoors    int     `json:"non_compliant_doors"`
	CompliancePercentage float64 `json:"compliance_percentage"`
	MeanWidthMM          float64 `json:"mean_width_mm"`
	MinWidthMM           float64 `json:"min_width_mm"`
}

// Report is the structured output form.
type Report struct {
	Summary Summary  `json:"summary"`
	Doors   []Record `json:"doors"`
}

// FromMeasurements converts measurements into reported records,
// applying the one-decimal rounding of the reporting boundary.
func FromMeasurements(measurements []measure.Measurement) []Record {
	records := make([]Record, len(measurements))
	for i, m := range measurements {
		records[i] = Record{
			Page:       m.Page,
			PageNumber: m.PageNumber,
			Box:        m.Candidate.Box,
			Confidence: m.Candidate.Confidence,
			Strategy:   m.Candidate.Strategy,
			WidthMM:    round1(m.WidthMM),
			AngleDeg:   round1(m.AngleDeg),
			Compliant:  m.Compliant,
		}
	}
	return records
}

// BuildSummary computes batch statistics against the configured
// threshold.
func BuildSummary(records []Record, minWidthMM float64) Summary {
	s := Summary{
		TotalDoors: len(records),
		MinWidthMM: minWidthMM,
	}
	if len(records) == 0 {
		return s
	}

	widths := make([]float64, len(records))
	for i, r := range records {
		widths[i] = r.WidthMM
		if r.Compliant {
			s.CompliantDoors++
		}
	}
	s.NonCompliantDoors = s.TotalDoors - s.CompliantDoors
	s.CompliancePercentage = round1(float64(s.CompliantDoors) / float64(s.TotalDoors) * 100)
	s.MeanWidthMM = round1(stat.Mean(widths, nil))
	return s
}

// WriteCSV writes the tabular form.
func WriteCSV(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create CSV report: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"page", "x", "y", "width_mm", "angle_deg", "is_compliant"}); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Page,
			strconv.Itoa(r.Box.X),
			strconv.Itoa(r.Box.Y),
			strconv.FormatFloat(r.WidthMM, 'f', 1, 64),
			strconv.FormatFloat(r.AngleDeg, 'f', 1, 64),
			strconv.FormatBool(r.Compliant),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteJSON writes the structured form.
func WriteJSON(path string, records []Record, minWidthMM float64) error {
	report := Report{
		Summary: BuildSummary(records, minWidthMM),
		Doors:   records,
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create JSON report: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode JSON report: %w", err)
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
