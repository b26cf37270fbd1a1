package scale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotationRatio(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"Scale 1:50", 0.02},
		{"SCALE 1 : 100", 0.01},
		{"drawing at 1:200 on A1", 0.005},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseNotation(tt.text)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseNotationImperial(t *testing.T) {
	// 1/4" on the drawing represents 1 foot: 12 inches real per 0.25
	// inch drawn, so the drawing ratio is 1/48.
	got, ok := ParseNotation(`1/4" = 1'-0"`)
	require.True(t, ok)
	assert.InDelta(t, 1.0/48.0, got, 1e-12)

	// 1/8" = 1' doubles the reduction.
	got, ok = ParseNotation(`1/8" = 1'`)
	require.True(t, ok)
	assert.InDelta(t, 1.0/96.0, got, 1e-12)
}

func TestParseNotationBareFraction(t *testing.T) {
	got, ok := ParseNotation("plan 1/50")
	require.True(t, ok)
	assert.InDelta(t, 0.02, got, 1e-12)
}

func TestParseNotationPriority(t *testing.T) {
	// Ratio notation wins over a bare fraction elsewhere in the text.
	got, ok := ParseNotation("1:50 detail, see sheet 1/200")
	require.True(t, ok)
	assert.InDelta(t, 0.02, got, 1e-12)
}

func TestParseNotationNoMatch(t *testing.T) {
	for _, text := range []string{"", "ground floor plan", "room 1 area 50", "1:0"} {
		_, ok := ParseNotation(text)
		assert.False(t, ok, "text %q", text)
	}
}

func TestLabelPattern(t *testing.T) {
	matches := labelPattern.FindAllStringSubmatch("0 m 1 m 2 m", -1)
	require.Len(t, matches, 3)
	assert.Equal(t, "0", matches[0][1])
	assert.Equal(t, "m", matches[0][2])
	assert.Equal(t, "2", matches[2][1])

	// "mm" must not decompose into a bare "m" label.
	matches = labelPattern.FindAllStringSubmatch("500 mm", -1)
	require.Len(t, matches, 1)
	assert.Equal(t, "mm", matches[0][2])
}
