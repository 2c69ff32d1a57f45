package dcm

import (
	"fmt"
	"strings"

	"navcore/internal/fixmath"
)

// BoardOrientation describes how the sensor board is mounted relative to
// the airframe. Apply maps sensor-frame vectors into the body frame.
type BoardOrientation int

const (
	OrientationForwards BoardOrientation = iota
	OrientationBackwards
	OrientationInverted
	OrientationFlipped
	OrientationRollCW
	OrientationRollCW180
	OrientationYawCW
	OrientationYawCCW
)

var orientationNames = map[BoardOrientation]string{
	OrientationForwards:  "forwards",
	OrientationBackwards: "backwards",
	OrientationInverted:  "inverted",
	OrientationFlipped:   "flipped",
	OrientationRollCW:    "roll_cw",
	OrientationRollCW180: "roll_cw180",
	OrientationYawCW:     "yaw_cw",
	OrientationYawCCW:    "yaw_ccw",
}

func (o BoardOrientation) String() string {
	if s, ok := orientationNames[o]; ok {
		return s
	}
	return fmt.Sprintf("orientation(%d)", int(o))
}

// ParseBoardOrientation accepts the names produced by String.
func ParseBoardOrientation(s string) (BoardOrientation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return OrientationForwards, nil
	}
	for o, name := range orientationNames {
		if name == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown board orientation %q", s)
}

// Apply maps a sensor-frame vector into the body frame.
func (o BoardOrientation) Apply(v fixmath.Vector) fixmath.Vector {
	x, y, z := v[0], v[1], v[2]
	switch o {
	case OrientationBackwards:
		return fixmath.Vector{neg(x), neg(y), z}
	case OrientationInverted:
		return fixmath.Vector{x, neg(y), neg(z)}
	case OrientationFlipped:
		return fixmath.Vector{neg(x), y, neg(z)}
	case OrientationRollCW:
		return fixmath.Vector{x, neg(z), y}
	case OrientationRollCW180:
		return fixmath.Vector{neg(x), z, y}
	case OrientationYawCW:
		return fixmath.Vector{y, neg(x), z}
	case OrientationYawCCW:
		return fixmath.Vector{neg(y), x, z}
	default:
		return v
	}
}

func neg(v int16) int16 {
	return fixmath.Sat16(-int32(v))
}

// Heading returns the byte-circular compass heading of the nose,
// clockwise from north.
func (m Matrix) Heading() uint8 {
	// Column 0 is the nose in earth coordinates (north, west, up).
	return fixmath.Atan2(-int32(m[3]), int32(m[0]))
}

// Euler returns byte-circular roll and pitch (signed) and heading.
// Roll is positive right wing down, pitch positive nose up.
func (m Matrix) Euler() (roll, pitch int8, heading uint8) {
	// Row 2 is earth-up in body coordinates.
	ux, uy, uz := int32(m[6]), int32(m[7]), int32(m[8])
	roll = int8(fixmath.Atan2(uy, uz))
	horiz := int32(fixmath.Isqrt(uint64(int64(uy)*int64(uy) + int64(uz)*int64(uz))))
	pitch = int8(fixmath.Atan2(ux, horiz))
	return roll, pitch, m.Heading()
}
