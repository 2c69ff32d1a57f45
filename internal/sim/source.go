package sim

import (
	"fmt"
	"math"
	"time"

	"navcore/internal/fixmath"
	"navcore/internal/fusion"
	"navcore/internal/gps"
	"navcore/internal/sensors/icm20948"
)

const (
	// FixHz is the simulated receiver's solution rate.
	FixHz = 5

	// baroPollsPerReading mimics a driver that needs a calibration call
	// followed by trigger and collect calls.
	baroPollsPerReading = 2
)

// Source stands in for the IMU, magnetometer, barometer and GPS receiver.
// Time advances only through NextIMU, one heartbeat per call, so runs are
// repeatable.
type Source struct {
	circle Circle
	hz     int
	start  time.Time

	tick      uint64
	fixTick   uint64
	baroCalls int
}

var (
	_ fusion.Magnetometer = (*Source)(nil)
	_ fusion.Barometer    = (*Source)(nil)
)

func NewSource(c Circle, hz int, start time.Time) (*Source, error) {
	if hz <= 0 {
		return nil, fmt.Errorf("sim: heartbeat %d Hz invalid", hz)
	}
	if hz%FixHz != 0 {
		return nil, fmt.Errorf("sim: heartbeat %d Hz is not a multiple of %d", hz, FixHz)
	}
	return &Source{circle: c.withDefaults(), hz: hz, start: start}, nil
}

func (s *Source) Elapsed() time.Duration {
	return time.Duration(s.tick) * time.Second / time.Duration(s.hz)
}

func (s *Source) State() State {
	return s.circle.Kinematics(s.Elapsed())
}

// NextIMU advances one heartbeat and returns the sample for it.
func (s *Source) NextIMU() fusion.IMUSample {
	s.tick++
	st := s.State()
	return fusion.IMUSample{
		Gyro:  s.circle.Gyro(st),
		Accel: s.circle.Accel(icm20948.AccelOneG),
	}
}

// Read completes immediately with the current field.
func (s *Source) Read(done func(fixmath.Vector)) error {
	done(s.circle.Mag(s.State()))
	return nil
}

// Poll mimics the hardware driver: the first call loads calibration, after
// that every baroPollsPerReading calls complete a reading.
func (s *Source) Poll(done func(fusion.BaroReading)) error {
	s.baroCalls++
	if s.baroCalls == 1 {
		return nil
	}
	if (s.baroCalls-1)%baroPollsPerReading != 0 {
		return nil
	}
	done(fusion.BaroReading{
		CentiC:     1500,
		PressureQ8: uint32(math.Round(PressurePa(s.State().AltM) * 256)),
	})
	return nil
}

// NextFix reports a receiver epoch at FixHz, at most once per heartbeat.
func (s *Source) NextFix() (gps.Fix, bool) {
	if s.tick == 0 || s.tick == s.fixTick || s.tick%uint64(s.hz/FixHz) != 0 {
		return gps.Fix{}, false
	}
	s.fixTick = s.tick
	return s.Fix(), true
}

// Fix is the receiver's view of the current state.
func (s *Source) Fix() gps.Fix {
	st := s.State()
	lat, lon := s.circle.Position(st)
	course := math.Mod(st.HeadingRad*180/math.Pi+360, 360)
	return gps.Fix{
		Lat:            int32(math.Round(lat * 1e7)),
		Lon:            int32(math.Round(lon * 1e7)),
		AltCm:          int32(math.Round(st.AltM * 100)),
		AltOK:          true,
		SpeedCmS:       int32(math.Round(st.SpeedMS * 100)),
		CourseCentiDeg: int32(math.Round(course*100)) % 36000,
		Sats:           9,
		HDOP:           0.9,
		Valid:          true,
		At:             s.start.Add(s.Elapsed()),
	}
}
