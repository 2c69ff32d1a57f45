package gps

import (
	"math"
	"time"

	"navcore/internal/fusion"
)

const feetPerMeter = 3.280839895013123

// Fix is one receiver epoch in integer units.
type Fix struct {
	Lat int32 // 1e-7 degrees
	Lon int32 // 1e-7 degrees

	AltCm int32
	AltOK bool

	SpeedCmS       int32
	CourseCentiDeg int32

	Sats int
	HDOP float64

	Valid bool
	At    time.Time
}

// Fusion converts to the estimator's fix type.
func (f Fix) Fusion() fusion.Fix {
	return fusion.Fix{
		Lon:      f.Lon,
		Lat:      f.Lat,
		AltCm:    f.AltCm,
		Course:   CourseByteCir(f.CourseCentiDeg),
		SpeedCmS: f.SpeedCmS,
		Valid:    f.Valid,
	}
}

// AltFeet is the altitude rounded to feet, for logging.
func (f Fix) AltFeet() int {
	return int(math.Round(float64(f.AltCm) / 100 * feetPerMeter))
}

// CourseByteCir maps a course in hundredths of a degree onto the
// byte circle, rounding to the nearest unit.
func CourseByteCir(centiDeg int32) uint8 {
	cd := (int64(centiDeg)%36000 + 36000) % 36000
	return uint8((cd*256 + 18000) / 36000)
}

func degToE7(deg float64) int32 {
	return int32(math.Round(deg * 1e7))
}
