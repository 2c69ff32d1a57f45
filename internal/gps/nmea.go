package gps

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	errNoStart    = errors.New("nmea: line does not start with '$'")
	errNoChecksum = errors.New("nmea: no checksum")
	errChecksum   = errors.New("nmea: checksum mismatch")
	errShortType  = errors.New("nmea: address field too short")
	errTruncated  = errors.New("nmea: too few fields")
)

// minFields is the field count, address included, through the last field
// an epoch reads.
var minFields = map[string]int{
	"RMC": 10, // through date
	"GGA": 10, // through altitude
}

// sentence is one checksummed NMEA 0183 line. kind drops the talker, so
// GPRMC and GNRMC are both "RMC". f[0] is the address field.
type sentence struct {
	kind string
	f    []string
}

// field returns f[i] trimmed, or "" past the end.
func (s sentence) field(i int) string {
	if i >= len(s.f) {
		return ""
	}
	return strings.TrimSpace(s.f[i])
}

func parseSentence(line string) (sentence, error) {
	line = strings.TrimSpace(line)
	if len(line) == 0 || line[0] != '$' {
		return sentence{}, errNoStart
	}
	body, sum, ok := strings.Cut(line[1:], "*")
	if !ok || len(sum) < 2 {
		return sentence{}, errNoChecksum
	}
	want, err := strconv.ParseUint(sum[:2], 16, 8)
	if err != nil {
		return sentence{}, errNoChecksum
	}
	if nmeaChecksum(body) != byte(want) {
		return sentence{}, errChecksum
	}

	f := strings.Split(body, ",")
	if len(f[0]) < 3 {
		return sentence{}, errShortType
	}
	kind := strings.ToUpper(f[0][len(f[0])-3:])
	if len(f) < minFields[kind] {
		return sentence{}, errTruncated
	}
	return sentence{kind: kind, f: f}, nil
}

// nmeaChecksum is the XOR of every byte between '$' and '*'.
func nmeaChecksum(body string) byte {
	var x byte
	for i := 0; i < len(body); i++ {
		x ^= body[i]
	}
	return x
}

// epoch merges GGA into the fix being built; RMC closes it.
type epoch struct {
	fix     Fix
	havePos bool
}

// apply reports whether s closed an epoch worth publishing.
func (e *epoch) apply(now time.Time, s sentence) bool {
	switch s.kind {
	case "GGA":
		e.gga(s)
	case "RMC":
		return e.rmc(now, s)
	}
	return false
}

// RMC: 1 time, 2 status A/V, 3-4 lat, 5-6 lon, 7 knots, 8 course, 9 date.
func (e *epoch) rmc(now time.Time, s sentence) bool {
	if s.field(2) != "A" {
		// Publish the loss once so course and position stop being trusted.
		if e.fix.Valid {
			e.fix.Valid = false
			e.fix.At = now
			return true
		}
		return false
	}

	lat, latOK := parseCoord(s.field(3), s.field(4))
	lon, lonOK := parseCoord(s.field(5), s.field(6))
	if latOK && lonOK {
		e.fix.Lat, e.fix.Lon = lat, lon
		e.havePos = true
	}
	if mkt, ok := parseFixed(s.field(7), 3); ok {
		e.fix.SpeedCmS = knotsToCmS(mkt)
	}
	if cd, ok := parseFixed(s.field(8), 2); ok {
		e.fix.CourseCentiDeg = int32((cd%36000 + 36000) % 36000)
	}
	if !e.havePos {
		return false
	}
	e.fix.Valid = true
	e.fix.At = now
	return true
}

// GGA: 2-3 lat, 4-5 lon, 6 quality, 7 sats, 8 HDOP, 9 altitude (m).
func (e *epoch) gga(s sentence) {
	if q := s.field(6); q == "" || q == "0" {
		return
	}
	if n, err := strconv.Atoi(s.field(7)); err == nil {
		e.fix.Sats = n
	}
	if h, err := strconv.ParseFloat(s.field(8), 64); err == nil {
		e.fix.HDOP = h
	}
	lat, latOK := parseCoord(s.field(2), s.field(3))
	lon, lonOK := parseCoord(s.field(4), s.field(5))
	if latOK && lonOK {
		e.fix.Lat, e.fix.Lon = lat, lon
		e.havePos = true
	}
	if cm, ok := parseFixed(s.field(9), 2); ok {
		e.fix.AltCm = int32(cm)
		e.fix.AltOK = true
	}
}

// knotsToCmS converts thousandths of a knot to cm/s, rounded.
func knotsToCmS(mkt int64) int32 {
	return int32((mkt*51444 + 500000) / 1000000)
}

// parseCoord turns ddmm.mmmm / dddmm.mmmm plus hemisphere into 1e-7
// degrees without going through floating point.
func parseCoord(v, hemi string) (int32, bool) {
	dot := strings.IndexByte(v, '.')
	if dot < 0 {
		dot = len(v)
	}
	if dot < 3 || strings.HasPrefix(v, "-") {
		return 0, false
	}
	deg, err := strconv.Atoi(v[:dot-2])
	if err != nil {
		return 0, false
	}
	// Minutes in 1e-6; one millionth of a minute is 1/6 of 1e-7 degree.
	umin, ok := parseFixed(v[dot-2:], 6)
	if !ok || umin >= 60_000_000 {
		return 0, false
	}
	e7 := int64(deg)*10_000_000 + (umin+3)/6

	switch strings.ToUpper(hemi) {
	case "N", "E":
	case "S", "W":
		e7 = -e7
	default:
		return 0, false
	}
	return int32(e7), true
}

// parseFixed parses a decimal string into an integer scaled by 10^places,
// truncating extra digits.
func parseFixed(v string, places int) (int64, bool) {
	if v == "" {
		return 0, false
	}
	neg := v[0] == '-'
	if neg {
		v = v[1:]
	}
	whole, frac, _ := strings.Cut(v, ".")
	if whole == "" && frac == "" {
		return 0, false
	}
	if len(frac) > places {
		frac = frac[:places]
	}
	frac += strings.Repeat("0", places-len(frac))

	var n int64
	for _, c := range whole + frac {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}
