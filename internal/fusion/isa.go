package fusion

import "math"

// Standard atmosphere altitude in cm, tabulated every isaStepPa from
// isaMinPa. Between entries the altitude is interpolated linearly in
// Pa/256; the worst-case error is under 3 cm at the low-pressure end.
const (
	isaMinPa   = 20000
	isaStepPa  = 125
	isaEntries = 721 // through 110000 Pa
)

var isaAltCm = func() (t [isaEntries]int32) {
	const p0 = 101325.0
	for i := range t {
		p := float64(isaMinPa + i*isaStepPa)
		t[i] = int32(math.Round(44330.0 * (1 - math.Pow(p/p0, 1/5.255)) * 100))
	}
	return t
}()

// pressureToAltitudeCm maps pressure in Pa/256 to standard atmosphere
// altitude. Pressures outside the table clamp to its ends.
func pressureToAltitudeCm(pQ8 uint32) int32 {
	const (
		lo   = int64(isaMinPa) << 8
		step = int64(isaStepPa) << 8
	)
	off := int64(pQ8) - lo
	if off <= 0 {
		return isaAltCm[0]
	}
	i := off / step
	if i >= isaEntries-1 {
		return isaAltCm[isaEntries-1]
	}
	frac := off % step
	d := int64(isaAltCm[i+1] - isaAltCm[i])
	num := d * frac
	// d is never positive; round half away from zero.
	if num < 0 {
		num -= step / 2
	} else {
		num += step / 2
	}
	return isaAltCm[i] + int32(num/step)
}
