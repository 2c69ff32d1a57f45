package dcm

import "navcore/internal/fixmath"

// Matrix is a row-major 3x3 Q14 rotation matrix mapping body vectors into
// the earth frame (x north, y west, z up). Body axes are x nose, y left
// wing, z top.
type Matrix [9]int16

var identity = Matrix{
	fixmath.RMAX, 0, 0,
	0, fixmath.RMAX, 0,
	0, 0, fixmath.RMAX,
}

// Identity returns the reference orientation: level, nose north.
func Identity() Matrix {
	return identity
}

func (m Matrix) Row(i int) fixmath.Vector {
	return fixmath.Vector{m[3*i], m[3*i+1], m[3*i+2]}
}

func (m Matrix) Col(j int) fixmath.Vector {
	return fixmath.Vector{m[j], m[3+j], m[6+j]}
}

func (m *Matrix) setRow(i int, v fixmath.Vector) {
	m[3*i], m[3*i+1], m[3*i+2] = v[0], v[1], v[2]
}

// Mul returns m*n with saturating Q14 products.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum int64
			for k := 0; k < 3; k++ {
				sum += int64(m[3*i+k]) * int64(n[3*k+j])
			}
			out[3*i+j] = fixmath.Sat16L(sum >> fixmath.RShift)
		}
	}
	return out
}

// Apply returns m*v (body -> earth).
func (m Matrix) Apply(v fixmath.Vector) fixmath.Vector {
	return fixmath.Vector{
		fixmath.Sat16(fixmath.Dot(m.Row(0), v)),
		fixmath.Sat16(fixmath.Dot(m.Row(1), v)),
		fixmath.Sat16(fixmath.Dot(m.Row(2), v)),
	}
}

// ApplyT returns transpose(m)*v (earth -> body).
func (m Matrix) ApplyT(v fixmath.Vector) fixmath.Vector {
	return fixmath.Vector{
		fixmath.Sat16(fixmath.Dot(m.Col(0), v)),
		fixmath.Sat16(fixmath.Dot(m.Col(1), v)),
		fixmath.Sat16(fixmath.Dot(m.Col(2), v)),
	}
}

// rotation returns I + [theta]x for a small Q14 rotation vector.
func rotation(theta fixmath.Vector) Matrix {
	tx, ty, tz := theta[0], theta[1], theta[2]
	return Matrix{
		fixmath.RMAX, fixmath.Sat16(-int32(tz)), ty,
		tz, fixmath.RMAX, fixmath.Sat16(-int32(tx)),
		fixmath.Sat16(-int32(ty)), tx, fixmath.RMAX,
	}
}
