package measure

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"door-audit/internal/detect"
	"door-audit/pkg/geometry"

	"gocv.io/x/gocv"
)

func candidateAt(x, y, w, h int) detect.Candidate {
	return detect.Candidate{
		Box:        geometry.RectInt{X: x, Y: y, Width: w, Height: h},
		Confidence: 0.9,
		Strategy:   detect.StrategyTemplate,
	}
}

func TestBaselineLeafWidth(t *testing.T) {
	r := NewRefiner(900, DefaultOptions())

	tests := []struct {
		name      string
		w, h      int
		scale     float64
		wantMM    float64
		compliant bool
	}{
		{"narrow door fails", 40, 120, 5, 200, false},
		{"wide door passes", 190, 800, 5, 950, true},
		{"exactly at threshold", 180, 500, 5, 900, true},
		{"landscape box uses height", 120, 40, 5, 200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := r.Baseline(candidateAt(0, 0, tt.w, tt.h), tt.scale)
			assert.Equal(t, tt.wantMM, m.WidthMM)
			assert.Equal(t, tt.compliant, m.Compliant)
			assert.False(t, m.Refined)
		})
	}
}

// Growing leaf width at a fixed scale never shrinks width_mm, and
// compliance never flips from true to false.
func TestBaselineMonotonic(t *testing.T) {
	r := NewRefiner(900, DefaultOptions())

	prevMM := -1.0
	prevCompliant := false
	for leaf := 0; leaf <= 400; leaf += 10 {
		m := r.Baseline(candidateAt(0, 0, leaf, 1000), 5)
		require.GreaterOrEqual(t, m.WidthMM, prevMM)
		if prevCompliant {
			require.True(t, m.Compliant, "compliance flipped at leaf %d", leaf)
		}
		prevMM = m.WidthMM
		prevCompliant = m.Compliant
	}
}

func TestMeasureDegradesOnDegenerateRegion(t *testing.T) {
	r := NewRefiner(900, DefaultOptions())
	empty := gocv.NewMat()
	defer empty.Close()

	// Empty page: refinement infeasible, baseline semantics hold.
	m := r.Measure(empty, candidateAt(10, 10, 40, 120), 5)
	assert.Equal(t, 200.0, m.WidthMM)
	assert.False(t, m.Refined)
	assert.False(t, m.Compliant)
}

func TestMeasureOutOfBoundsBoxFallsBack(t *testing.T) {
	r := NewRefiner(900, DefaultOptions())
	page := whitePage(t, 200, 200)

	m := r.Measure(page, candidateAt(500, 500, 40, 120), 5)
	assert.Equal(t, 200.0, m.WidthMM)
	assert.False(t, m.Refined)
}

func TestMeasureBlankCropFallsBack(t *testing.T) {
	// A uniform crop yields zero central moments after thresholding.
	r := NewRefiner(900, DefaultOptions())
	page := whitePage(t, 400, 400)

	m := r.Measure(page, candidateAt(50, 50, 40, 120), 5)
	assert.Equal(t, 200.0, m.WidthMM)
	assert.False(t, m.Refined)
}

func TestMeasureVerticalLeaf(t *testing.T) {
	// A solid vertical bar inside the crop: orientation near vertical,
	// so the refined width is the crop's pixel width.
	r := NewRefiner(900, DefaultOptions())
	page := whitePage(t, 400, 400)
	gocv.Rectangle(&page, image.Rect(115, 60, 125, 260), color.RGBA{A: 255}, -1)

	m := r.Measure(page, candidateAt(100, 50, 40, 220), 5)
	require.True(t, m.Refined)
	assert.InDelta(t, 90, m.AngleDeg, 20)
	assert.Equal(t, 200.0, m.WidthMM) // 40 px crop width at 5 mm/px
	assert.False(t, m.Compliant)
}

func TestMeasureNeverNegative(t *testing.T) {
	r := NewRefiner(900, DefaultOptions())
	m := r.Baseline(candidateAt(0, 0, 0, 0), 5)
	assert.GreaterOrEqual(t, m.WidthMM, 0.0)
}

func TestWithPageStampsMetadata(t *testing.T) {
	r := NewRefiner(900, DefaultOptions())
	m := r.Baseline(candidateAt(0, 0, 40, 120), 5)

	stamped := m.WithPage("plan_page3", 3)
	assert.Equal(t, "plan_page3", stamped.Page)
	assert.Equal(t, 3, stamped.PageNumber)
	// Original value untouched.
	assert.Empty(t, m.Page)
}

func whitePage(t *testing.T, w, h int) gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), h, w, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })
	return mat
}
