package sim

import (
	"math"
	"time"

	"navcore/internal/fixmath"
)

const (
	metersPerDegLat = 111319.49

	// Earth field in sensor counts: horizontal component toward north,
	// vertical component pointing down.
	magHorizontal = 300
	magDown       = 500
)

// Circle describes an aircraft parked for Hold, then flying a level,
// clockwise circle at constant speed. Altitude oscillates gently while
// circling so barometer altitude has something to track.
type Circle struct {
	CenterLatDeg float64
	CenterLonDeg float64
	AltM         float64
	RadiusM      float64
	Period       time.Duration
	Hold         time.Duration

	// GyroOffset is a constant zero-rate error added to every gyro sample
	// (Q12 rad/s).
	GyroOffset fixmath.Vector
}

// State is the true kinematic state at one instant.
type State struct {
	NorthM, EastM float64
	AltM          float64
	HeadingRad    float64 // clockwise from north
	SpeedMS       float64
	YawRate       float64 // rad/s, positive clockwise
	ClimbMS       float64
}

func (c Circle) withDefaults() Circle {
	if c.RadiusM <= 0 {
		c.RadiusM = 200
	}
	if c.Period <= 0 {
		c.Period = 60 * time.Second
	}
	if c.Hold < 0 {
		c.Hold = 0
	}
	return c
}

// Kinematics returns the state at elapsed time t since power-on. Position
// is relative to the circle's center.
func (c Circle) Kinematics(t time.Duration) State {
	c = c.withDefaults()

	st := State{AltM: c.AltM}
	if t < c.Hold {
		// Parked at the start of the circle, nose north.
		st.EastM = -c.RadiusM
		return st
	}
	flying := (t - c.Hold).Seconds()
	omega := 2 * math.Pi / c.Period.Seconds()
	psi := math.Mod(omega*flying, 2*math.Pi)

	// The center is off the right wing.
	st.NorthM = c.RadiusM * math.Sin(psi)
	st.EastM = -c.RadiusM * math.Cos(psi)
	st.HeadingRad = psi
	st.SpeedMS = omega * c.RadiusM
	st.YawRate = omega

	// Vertical period is decoupled from horizontal to avoid repetitive sync.
	vp := 2 * c.Period.Seconds()
	const amp = 10.0 // m
	w := 2 * math.Pi * flying / vp
	st.AltM = c.AltM + amp*math.Sin(w)
	st.ClimbMS = amp * (2 * math.Pi / vp) * math.Cos(w)
	return st
}

// Position converts a state to geodetic degrees.
func (c Circle) Position(st State) (latDeg, lonDeg float64) {
	latDeg = c.CenterLatDeg + st.NorthM/metersPerDegLat
	lonDeg = c.CenterLonDeg + st.EastM/(metersPerDegLat*math.Cos(c.CenterLatDeg*math.Pi/180.0))
	return latDeg, lonDeg
}

// Gyro is the body-frame angular rate in Q12 rad/s. Body z points up, so a
// clockwise turn is a negative z rate. The turn is flat: no bank, and the
// centripetal term is left out of Accel.
func (c Circle) Gyro(st State) fixmath.Vector {
	z := int32(math.Round(-st.YawRate * 4096))
	return fixmath.Vector{
		c.GyroOffset[0],
		c.GyroOffset[1],
		fixmath.Sat16(z + int32(c.GyroOffset[2])),
	}
}

// Accel is the specific force in counts at accelOneG per g.
func (c Circle) Accel(accelOneG int16) fixmath.Vector {
	return fixmath.Vector{0, 0, accelOneG}
}

// Mag is the body-frame magnetometer reading for a level aircraft.
func (c Circle) Mag(st State) fixmath.Vector {
	s, co := math.Sincos(st.HeadingRad)
	return fixmath.Vector{
		int16(math.Round(magHorizontal * co)),
		int16(math.Round(magHorizontal * s)),
		-magDown,
	}
}

// PressurePa inverts the standard atmosphere for altM.
func PressurePa(altM float64) float64 {
	return 101325.0 * math.Pow(1-altM/44330.0, 5.255)
}
