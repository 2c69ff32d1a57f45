package dcm

import "navcore/internal/fixmath"

// Units:
//   - gyro rates are Q12 rad/s (4096 = 1 rad/s)
//   - dt is Q16 seconds (65536 = 1 s)
//   - rotation angles are Q14 radians

const (
	// RenormEvery is the number of integration steps between renormalizations.
	RenormEvery = 4

	// Drift correction gains, Q14 fractions applied once per correction.
	KpRollPitch = 328 // ~0.02
	KpYaw       = 164 // ~0.01
	KiRollPitch = 32
	KiYaw       = 16

	// MaxBias bounds the learned gyro bias (Q12 rad/s, ~0.25 rad/s).
	MaxBias = 1024

	biasShift = 8
)

// Source identifies which independent reference a drift correction uses.
type Source int

const (
	// Gravity: body-frame accelerometer vector (specific force, up at rest).
	Gravity Source = iota
	// Magnetic: body-frame magnetometer vector.
	Magnetic
	// GPSCourse: earth-frame velocity vector (north, west, up).
	GPSCourse
)

func (s Source) String() string {
	switch s {
	case Gravity:
		return "gravity"
	case Magnetic:
		return "magnetic"
	case GPSCourse:
		return "gps_course"
	default:
		return "unknown"
	}
}

// Reference is one drift-correction input. An invalid reference is skipped,
// never replaced by a default.
type Reference struct {
	Source Source
	Vector fixmath.Vector
	Valid  bool
}

var (
	up    = fixmath.Vector{0, 0, fixmath.RMAX}
	north = fixmath.Vector{fixmath.RMAX, 0, 0}
)

// Estimator owns the rotation estimate. It is not safe for concurrent use;
// the heartbeat is its only caller.
type Estimator struct {
	rmat Matrix

	// offsets are the zero-rate gyro readings captured at calibration.
	offsets fixmath.Vector
	// biasAcc is the learned drift bias in Q12 << biasShift.
	biasAcc [3]int32

	steps uint32
}

func New() *Estimator {
	e := &Estimator{}
	e.Initialize()
	return e
}

// Initialize resets to the reference orientation and forgets offsets and
// learned bias.
func (e *Estimator) Initialize() {
	e.rmat = Identity()
	e.offsets = fixmath.Vector{}
	e.biasAcc = [3]int32{}
	e.steps = 0
}

func (e *Estimator) Matrix() Matrix {
	return e.rmat
}

// SetMatrix seeds the estimate with a known orientation.
func (e *Estimator) SetMatrix(m Matrix) {
	e.rmat = m
}

func (e *Estimator) Offsets() fixmath.Vector {
	return e.offsets
}

// RecordOffsets stores the zero-rate gyro reading. Guarding against an
// unwanted recapture is the caller's job.
func (e *Estimator) RecordOffsets(v fixmath.Vector) {
	e.offsets = v
}

// Bias returns the learned drift bias in Q12 rad/s.
func (e *Estimator) Bias() fixmath.Vector {
	var b fixmath.Vector
	for i := range b {
		b[i] = fixmath.Sat16(e.biasAcc[i] >> biasShift)
	}
	return b
}

func (e *Estimator) Steps() uint32 {
	return e.steps
}

// Integrate advances the matrix by one gyro sample held for dt.
func (e *Estimator) Integrate(gyro fixmath.Vector, dt uint32) {
	bias := e.Bias()
	var theta fixmath.Vector
	for i := range gyro {
		rate := int64(gyro[i]) - int64(e.offsets[i]) - int64(bias[i])
		rate = int64(fixmath.Sat16L(rate))
		theta[i] = fixmath.Sat16L((rate * int64(dt)) >> fixmath.RShift)
	}
	e.rmat = e.rmat.Mul(rotation(theta))

	e.steps++
	if e.steps%RenormEvery == 0 {
		e.Renormalize()
	}
}

// ApplyDriftCorrection nudges the matrix toward agreement with ref and
// feeds the residual into the bias estimate. It reports whether a
// correction was applied.
func (e *Estimator) ApplyDriftCorrection(ref Reference) bool {
	if !ref.Valid {
		return false
	}
	errEarth, kp, ki, ok := e.earthError(ref)
	if !ok {
		return false
	}
	errBody := e.rmat.ApplyT(errEarth)

	var theta fixmath.Vector
	for i := range errBody {
		theta[i] = fixmath.MulQ14(errBody[i], kp)
		acc := e.biasAcc[i] - (int32(errBody[i])*int32(ki))>>(fixmath.RShift+2-biasShift)
		if acc > MaxBias<<biasShift {
			acc = MaxBias << biasShift
		}
		if acc < -MaxBias<<biasShift {
			acc = -MaxBias << biasShift
		}
		e.biasAcc[i] = acc
	}
	e.rmat = e.rmat.Mul(rotation(theta))
	return true
}

// earthError returns h x ref in the earth frame, where h is the estimated
// earth-frame direction of the measured quantity.
func (e *Estimator) earthError(ref Reference) (fixmath.Vector, int16, int16, bool) {
	switch ref.Source {
	case Gravity:
		m, ok := fixmath.Normalize(ref.Vector)
		if !ok {
			return fixmath.Vector{}, 0, 0, false
		}
		h := e.rmat.Apply(m)
		return fixmath.Cross(h, up), KpRollPitch, KiRollPitch, true

	case Magnetic:
		m, ok := fixmath.Normalize(ref.Vector)
		if !ok {
			return fixmath.Vector{}, 0, 0, false
		}
		h := e.rmat.Apply(m)
		h[2] = 0
		h, ok = fixmath.Normalize(h)
		if !ok {
			return fixmath.Vector{}, 0, 0, false
		}
		return yawOnly(fixmath.Cross(h, north)), KpYaw, KiYaw, true

	case GPSCourse:
		c := ref.Vector
		c[2] = 0
		c, ok := fixmath.Normalize(c)
		if !ok {
			return fixmath.Vector{}, 0, 0, false
		}
		f := e.rmat.Col(0)
		f[2] = 0
		f, ok = fixmath.Normalize(f)
		if !ok {
			return fixmath.Vector{}, 0, 0, false
		}
		return yawOnly(fixmath.Cross(f, c)), KpYaw, KiYaw, true
	}
	return fixmath.Vector{}, 0, 0, false
}

func yawOnly(v fixmath.Vector) fixmath.Vector {
	return fixmath.Vector{0, 0, v[2]}
}

// CourseVector builds an earth-frame velocity reference from a
// byte-circular course over ground (clockwise from north) and a speed.
func CourseVector(course uint8, speed int16) fixmath.Vector {
	return fixmath.Vector{
		fixmath.MulQ14(fixmath.Cosine(course), speed),
		fixmath.Sat16(-int32(fixmath.MulQ14(fixmath.Sine(course), speed))),
		0,
	}
}
