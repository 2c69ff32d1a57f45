package fixmath

// Dot returns the Q14 dot product. The result can exceed the int16 range.
func Dot(a, b Vector) int32 {
	sum := int64(a[0])*int64(b[0]) + int64(a[1])*int64(b[1]) + int64(a[2])*int64(b[2])
	return int32(sum >> RShift)
}

// Cross returns a x b in Q14, saturated.
func Cross(a, b Vector) Vector {
	return Vector{
		Sat16L((int64(a[1])*int64(b[2]) - int64(a[2])*int64(b[1])) >> RShift),
		Sat16L((int64(a[2])*int64(b[0]) - int64(a[0])*int64(b[2])) >> RShift),
		Sat16L((int64(a[0])*int64(b[1]) - int64(a[1])*int64(b[0])) >> RShift),
	}
}

func Add(a, b Vector) Vector {
	return Vector{
		Sat16(int32(a[0]) + int32(b[0])),
		Sat16(int32(a[1]) + int32(b[1])),
		Sat16(int32(a[2]) + int32(b[2])),
	}
}

func Sub(a, b Vector) Vector {
	return Vector{
		Sat16(int32(a[0]) - int32(b[0])),
		Sat16(int32(a[1]) - int32(b[1])),
		Sat16(int32(a[2]) - int32(b[2])),
	}
}

// Scale multiplies each component by the Q14 factor k.
func Scale(v Vector, k int16) Vector {
	return Vector{MulQ14(v[0], k), MulQ14(v[1], k), MulQ14(v[2], k)}
}

// Neg negates v; -32768 saturates to 32767.
func Neg(v Vector) Vector {
	return Vector{Sat16(-int32(v[0])), Sat16(-int32(v[1])), Sat16(-int32(v[2]))}
}

// Norm returns the Euclidean length in the vector's own units.
func Norm(v Vector) int32 {
	sum := int64(v[0])*int64(v[0]) + int64(v[1])*int64(v[1]) + int64(v[2])*int64(v[2])
	return int32(Isqrt(uint64(sum)))
}

// Normalize scales v to length RMAX. ok is false for the zero vector.
func Normalize(v Vector) (out Vector, ok bool) {
	n := int64(Norm(v))
	if n == 0 {
		return Vector{}, false
	}
	for i := range v {
		out[i] = Sat16L(int64(v[i]) * RMAX / n)
	}
	return out, true
}
