// Package curve maps normalized control positions in [0,1] to scaled engine
// values and back under a skewed response curve.
//
// A skew below 1 expands the low end of the range, a skew above 1
// compresses it. ToNormalized and ToScaled are inverses of each other as long
// as no step interval is applied.
package curve

import "math"

// ToNormalized returns the normalized position of scaled in the range
// [start, end]. A degenerate range (start == end) yields 0.
func ToNormalized(scaled, start, end, skew float64) float64 {
	if end == start {
		return 0
	}
	proportion := Clamp((scaled-start)/(end-start), 0, 1)
	return math.Pow(proportion, effectiveSkew(skew))
}

// ToScaled returns the scaled value of normalized. When interval > 0 the
// result is rounded to the nearest multiple of interval after the curve is
// applied, then kept inside the range. The range bound wins over the grid:
// a range that is not a whole number of intervals reaches its end value,
// which is then off the grid (ToScaled(1, 0, 9, 1, 2) == 9).
func ToScaled(normalized, start, end, skew, interval float64) float64 {
	normalized = Clamp(normalized, 0, 1)
	scaled := math.Pow(normalized, 1/effectiveSkew(skew))*(end-start) + start
	if interval > 0 {
		scaled = ClampRange(Quantize(scaled, interval), start, end)
	}
	return scaled
}

// Quantize rounds v to the nearest multiple of interval. A non-positive
// interval returns v unchanged.
func Quantize(v, interval float64) float64 {
	if interval <= 0 || math.IsNaN(interval) || math.IsInf(interval, 0) {
		return v
	}
	return math.Round(v/interval) * interval
}

// Clamp limits v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampRange limits v to the range spanned by start and end, in either order.
func ClampRange(v, start, end float64) float64 {
	return Clamp(v, math.Min(start, end), math.Max(start, end))
}

// effectiveSkew falls back to a linear curve for skews that would produce
// NaN or infinite results.
func effectiveSkew(skew float64) float64 {
	if skew <= 0 || math.IsNaN(skew) || math.IsInf(skew, 0) {
		return 1
	}
	return skew
}
