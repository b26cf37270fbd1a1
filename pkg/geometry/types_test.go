package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectFromCorners(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 int
		want           RectInt
	}{
		{"ordered", 10, 20, 50, 140, RectInt{X: 10, Y: 20, Width: 40, Height: 120}},
		{"swapped x", 50, 20, 10, 140, RectInt{X: 10, Y: 20, Width: 40, Height: 120}},
		{"swapped both", 50, 140, 10, 20, RectInt{X: 10, Y: 20, Width: 40, Height: 120}},
		{"degenerate", 5, 5, 5, 5, RectInt{X: 5, Y: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RectFromCorners(tt.x1, tt.y1, tt.x2, tt.y2))
		})
	}
}

func TestRectIntMinSide(t *testing.T) {
	assert.Equal(t, 40, RectInt{Width: 40, Height: 120}.MinSide())
	assert.Equal(t, 40, RectInt{Width: 120, Height: 40}.MinSide())
	assert.Equal(t, 7, RectInt{Width: 7, Height: 7}.MinSide())
}

func TestRectIntIoU(t *testing.T) {
	a := RectInt{X: 0, Y: 0, Width: 100, Height: 100}

	t.Run("identical boxes", func(t *testing.T) {
		assert.InDelta(t, 1.0, a.IoU(a), 1e-9)
	})

	t.Run("disjoint boxes", func(t *testing.T) {
		b := RectInt{X: 200, Y: 200, Width: 50, Height: 50}
		assert.Zero(t, a.IoU(b))
	})

	t.Run("heavy overlap exceeds half", func(t *testing.T) {
		// Shifted by 10px in one axis: inter 90*100, union 110*100.
		b := RectInt{X: 10, Y: 0, Width: 100, Height: 100}
		iou := a.IoU(b)
		assert.Greater(t, iou, 0.5)
		assert.InDelta(t, 9000.0/11000.0, iou, 1e-9)
	})

	t.Run("light overlap stays below half", func(t *testing.T) {
		b := RectInt{X: 70, Y: 70, Width: 100, Height: 100}
		assert.Less(t, a.IoU(b), 0.5)
	})

	t.Run("symmetric", func(t *testing.T) {
		b := RectInt{X: 30, Y: 15, Width: 80, Height: 90}
		assert.Equal(t, a.IoU(b), b.IoU(a))
	})
}

func TestRectIntClampTo(t *testing.T) {
	r := RectInt{X: -10, Y: 5, Width: 50, Height: 200}
	got := r.ClampTo(100, 100)
	assert.Equal(t, RectInt{X: 0, Y: 5, Width: 40, Height: 95}, got)

	outside := RectInt{X: 150, Y: 150, Width: 20, Height: 20}
	assert.True(t, outside.ClampTo(100, 100).Empty())
}

func TestPointDistance(t *testing.T) {
	a := NewPoint2D(0, 0)
	b := NewPoint2D(3, 4)
	assert.InDelta(t, 5.0, a.Distance(b), 1e-9)
	assert.Equal(t, Point2D{X: 2, Y: 3}, PointInt{X: 2, Y: 3}.ToFloat())
}
