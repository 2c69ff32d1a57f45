package dcm

import "navcore/internal/fixmath"

// splitLimit is the largest row0.row1 error (Q14) corrected by splitting it
// between both rows. Larger errors fall back to Gram-Schmidt.
const splitLimit = fixmath.RMAX / 16

// minResidual is the shortest Gram-Schmidt residual trusted for direction.
const minResidual = fixmath.RMAX / 64

// Renormalize restores orthonormal rows.
func (e *Estimator) Renormalize() {
	r0 := unitOr(e.rmat.Row(0), 0)
	r1 := unitOr(e.rmat.Row(1), 1)

	dot := fixmath.Dot(r0, r1)
	if dot > -splitLimit && dot < splitLimit {
		half := int16(dot / 2)
		n0 := fixmath.Sub(r0, fixmath.Scale(r1, half))
		n1 := fixmath.Sub(r1, fixmath.Scale(r0, half))
		r0, r1 = unitOr(n0, 0), unitOr(n1, 1)
	} else {
		r1 = orthogonalize(r0, r1)
	}

	r2, ok := fixmath.Normalize(fixmath.Cross(r0, r1))
	if !ok {
		e.rmat = Identity()
		return
	}

	e.rmat.setRow(0, r0)
	e.rmat.setRow(1, r1)
	e.rmat.setRow(2, r2)
}

// orthogonalize removes the u component from v by Gram-Schmidt. A second
// pass cleans up rounding left by the first. If v is (nearly) parallel to u
// any perpendicular unit vector is returned.
func orthogonalize(u, v fixmath.Vector) fixmath.Vector {
	for pass := 0; pass < 2; pass++ {
		v = fixmath.Sub(v, fixmath.Scale(u, fixmath.Sat16(fixmath.Dot(u, v))))
		if fixmath.Norm(v) < minResidual {
			return perpendicular(u)
		}
		v, _ = fixmath.Normalize(v)
	}
	return v
}

// unitOr normalizes v, or returns the identity row i for a zero vector.
func unitOr(v fixmath.Vector, i int) fixmath.Vector {
	if u, ok := fixmath.Normalize(v); ok {
		return u
	}
	return identity.Row(i)
}

// perpendicular returns a unit vector orthogonal to the unit vector u.
func perpendicular(u fixmath.Vector) fixmath.Vector {
	axis := 0
	for i := 1; i < 3; i++ {
		if abs16(u[i]) < abs16(u[axis]) {
			axis = i
		}
	}
	var e fixmath.Vector
	e[axis] = fixmath.RMAX
	p, ok := fixmath.Normalize(fixmath.Cross(u, e))
	if !ok {
		return identity.Row((axis + 1) % 3)
	}
	return p
}

func abs16(v int16) int32 {
	if v < 0 {
		return -int32(v)
	}
	return int32(v)
}
