package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ranges := []struct{ start, end float64 }{
		{0, 1},
		{0, 100},
		{-12, 12},
		{20, 20000},
		{10, -10}, // inverted
	}
	skews := []float64{0.25, 0.5, 1, 2, 3.7}

	for _, r := range ranges {
		for _, skew := range skews {
			for i := 0; i <= 20; i++ {
				n := float64(i) / 20
				scaled := ToScaled(n, r.start, r.end, skew, 0)
				got := ToNormalized(scaled, r.start, r.end, skew)
				assert.InDeltaf(t, n, got, 1e-9, "start=%v end=%v skew=%v n=%v", r.start, r.end, skew, n)
			}
		}
	}
}

func TestToNormalized_DegenerateRange(t *testing.T) {
	for _, scaled := range []float64{-1, 0, 5, 1e9} {
		assert.Equal(t, 0.0, ToNormalized(scaled, 5, 5, 2))
	}
}

func TestToNormalized_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, 0.0, ToNormalized(-50, 0, 100, 1))
	assert.Equal(t, 1.0, ToNormalized(150, 0, 100, 1))
}

func TestToNormalized_AppliesSkew(t *testing.T) {
	// Linear proportion 0.25 raised to skew 0.5.
	assert.InDelta(t, 0.5, ToNormalized(25, 0, 100, 0.5), 1e-12)
}

func TestToScaled_Quantization(t *testing.T) {
	assert.Equal(t, 4.0, ToScaled(0.47, 0, 10, 1, 2))
	assert.Equal(t, 6.0, ToScaled(0.51, 0, 10, 1, 2))
}

func TestToScaled_QuantizationIsLossy(t *testing.T) {
	scaled := ToScaled(0.47, 0, 10, 1, 2)
	back := ToNormalized(scaled, 0, 10, 1)
	assert.InDelta(t, 0.4, back, 1e-12)
	assert.NotEqual(t, 0.47, back)
}

func TestToScaled_QuantizationStaysInRange(t *testing.T) {
	assert.Equal(t, 1.0, ToScaled(1, 0, 1, 1, 0.4))
}

func TestToScaled_RangeEndBeatsGrid(t *testing.T) {
	assert.Equal(t, 9.0, ToScaled(1, 0, 9, 1, 2))
	assert.Equal(t, 8.0, ToScaled(0.85, 0, 9, 1, 2))
	assert.Equal(t, 0.0, ToScaled(0, 0, 9, 1, 2))
}

func TestToScaled_ClampsInput(t *testing.T) {
	assert.Equal(t, 100.0, ToScaled(3, 0, 100, 1, 0))
	assert.Equal(t, 0.0, ToScaled(-3, 0, 100, 1, 0))
}

func TestToScaled_InvertedRange(t *testing.T) {
	assert.Equal(t, 10.0, ToScaled(0, 10, -10, 1, 0))
	assert.Equal(t, -10.0, ToScaled(1, 10, -10, 1, 0))
	assert.InDelta(t, 0.0, ToScaled(0.5, 10, -10, 1, 0), 1e-12)
}

func TestInvalidSkewFallsBackToLinear(t *testing.T) {
	for _, skew := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.InDelta(t, 50.0, ToScaled(0.5, 0, 100, skew, 0), 1e-12)
		assert.InDelta(t, 0.5, ToNormalized(50, 0, 100, skew), 1e-12)
	}
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, 0.3, Quantize(0.3, 0))
	assert.Equal(t, 0.3, Quantize(0.3, -1))
	assert.InDelta(t, 0.25, Quantize(0.26, 0.05), 1e-12)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 1))
	assert.Equal(t, 1.0, Clamp(2, 0, 1))
	assert.Equal(t, 5.0, ClampRange(7, 5, -5))
	assert.Equal(t, -5.0, ClampRange(-7, 5, -5))
}
