package navref

import (
	"sync/atomic"

	"navcore/internal/fixmath"
)

// Flat-earth local frame centred on an origin fix.
//
// Geodetic inputs follow the GPS receiver's integer units: latitude and
// longitude in 1e-7 degrees. Altitude passes through untouched.

const (
	// LongDegToByteCir converts the high word of a 1e-7 degree latitude
	// into a byte-circular angle: (256/360) * 2^32 / 1e7.
	LongDegToByteCir = 305

	// UnitsPerMeter is the number of 1e-7 degree latitude units in one
	// metre, rounded to the integer the navigation gains were tuned with.
	UnitsPerMeter = 90
)

// Waypoint is an absolute geodetic point.
type Waypoint struct {
	X int32 // longitude, 1e-7 degrees
	Y int32 // latitude, 1e-7 degrees
	Z int32 // altitude, whole metres
}

// Relative is the compact local position: X east and Y north of the origin
// in metres. Z is the Waypoint altitude carried through unchanged (whole
// metres, not relative to Origin.Alt).
type Relative struct {
	X int16
	Y int16
	Z int16
}

// Relative32 is the extended-range form of Relative, same units.
type Relative32 struct {
	X int32
	Y int32
	Z int32
}

// Origin is published as a whole, so CosLat always belongs to Lat.
type Origin struct {
	Lon int32
	Lat int32
	// Alt is in centimetres, as reported by the receiver. Waypoint and
	// Relative altitudes are whole metres.
	Alt int32

	CosLat int16
}

var zeroOrigin = Origin{CosLat: fixmath.RMAX}

// Reference holds the current origin. SetOrigin may be called from the
// heartbeat while navigation consumers read from elsewhere.
type Reference struct {
	origin atomic.Pointer[Origin]
}

func New() *Reference {
	return &Reference{}
}

// SetOrigin redefines the local frame. Every relative position computed
// against the previous origin is invalid afterwards.
func (r *Reference) SetOrigin(lon, lat, alt int32) Origin {
	o := Origin{
		Lon:    lon,
		Lat:    lat,
		Alt:    alt,
		CosLat: fixmath.Cosine(LatToByteCir(lat)),
	}
	r.origin.Store(&o)
	return o
}

// Origin returns the current origin, or the zero origin with unit
// longitude scale if none has been set.
func (r *Reference) Origin() Origin {
	if o := r.origin.Load(); o != nil {
		return *o
	}
	return zeroOrigin
}

func (r *Reference) HasOrigin() bool {
	return r.origin.Load() != nil
}

// ToRelative converts to the compact form, saturating each axis to int16.
func (r *Reference) ToRelative(abs Waypoint) Relative {
	rel := r.ToRelative32(abs)
	return Relative{
		X: fixmath.Sat16(rel.X),
		Y: fixmath.Sat16(rel.Y),
		Z: fixmath.Sat16(rel.Z),
	}
}

func (r *Reference) ToRelative32(abs Waypoint) Relative32 {
	o := r.Origin()
	dy := (int64(abs.Y) - int64(o.Lat)) / UnitsPerMeter
	dx := (int64(abs.X) - int64(o.Lon)) / UnitsPerMeter
	return Relative32{
		X: fixmath.LongScale(fixmath.Sat32(dx), o.CosLat),
		Y: fixmath.Sat32(dy),
		Z: abs.Z,
	}
}

// ToAbsolute inverts ToRelative32 on the north axis only. The east axis
// does not undo the cos(lat) shrink, so away from the equator the
// round trip pulls longitudes toward the origin.
func (r *Reference) ToAbsolute(rel Relative32) Waypoint {
	o := r.Origin()
	return Waypoint{
		X: fixmath.Sat32(int64(rel.X)*UnitsPerMeter + int64(o.Lon)),
		Y: fixmath.Sat32(int64(rel.Y)*UnitsPerMeter + int64(o.Lat)),
		Z: rel.Z,
	}
}

// LatToByteCir maps a 1e-7 degree latitude onto the byte circle using only
// its high 16 bits.
func LatToByteCir(lat int32) uint8 {
	hi := int32(int16(lat >> 16))
	return uint8((LongDegToByteCir * hi) >> 16)
}
