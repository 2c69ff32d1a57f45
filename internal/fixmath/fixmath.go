package fixmath

import "math"

// Scaled integer math shared by the estimator and the coordinate reference.
//
// RMAX represents 1.0, so an int16 covers [-2, 2). Angles are byte-circular:
// 256 units per full turn.

const (
	RMAX = 16384

	// RShift is log2(RMAX).
	RShift = 14
)

// Vector is a Q14 (or raw sensor count) 3-vector.
type Vector [3]int16

var sineTable = func() [256]int16 {
	var table [256]int16
	for i := 0; i < 256; i++ {
		table[i] = int16(math.Round(RMAX * math.Sin(2*math.Pi*float64(i)/256)))
	}
	return table
}()

// Sine returns RMAX*sin(angle) for a byte-circular angle.
func Sine(angle uint8) int16 {
	return sineTable[angle]
}

// Cosine returns RMAX*cos(angle) for a byte-circular angle.
func Cosine(angle uint8) int16 {
	return sineTable[angle+64]
}

// Sat16 clamps to the int16 range instead of wrapping.
func Sat16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Sat16L is Sat16 for 64-bit intermediates.
func Sat16L(v int64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Sat32 clamps to the int32 range instead of wrapping.
func Sat32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// MulQ14 multiplies two Q14 values.
func MulQ14(a, b int16) int16 {
	return Sat16((int32(a) * int32(b)) >> RShift)
}

// LongScale scales loc by cos/RMAX, rounding toward zero so that east and
// west offsets shrink symmetrically.
func LongScale(loc int32, cos int16) int32 {
	neg := false
	l := int64(loc)
	c := int64(cos)
	if l < 0 {
		l = -l
		neg = !neg
	}
	if c < 0 {
		c = -c
		neg = !neg
	}
	r := (l * c) >> RShift
	if neg {
		r = -r
	}
	return Sat32(r)
}

// Isqrt returns floor(sqrt(v)).
func Isqrt(v uint64) uint64 {
	if v < 2 {
		return v
	}
	x := v
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + v/x) / 2
	}
	return x
}

// Atan2 returns the byte-circular angle a such that (x, y) points along
// (cos a, sin a). Resolution is one table step. (0, 0) yields 0.
func Atan2(y, x int32) uint8 {
	if x == 0 && y == 0 {
		return 0
	}
	best := uint8(0)
	bestDot := int64(math.MinInt64)
	for i := 0; i < 256; i++ {
		a := uint8(i)
		d := int64(x)*int64(Cosine(a)) + int64(y)*int64(Sine(a))
		if d > bestDot {
			bestDot = d
			best = a
		}
	}
	return best
}
